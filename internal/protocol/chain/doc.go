// Package chain implements the per-sender symmetric ratchet.
//
// Each participant owns one hash chain per epoch, seeded from the group
// key and its peer id. Every message key is a one-step HKDF derivation;
// out-of-order delivery within an epoch is absorbed by a bounded
// skipped-key cache with FIFO eviction.
package chain
