// Package group implements the group key manager.
//
// The manager owns the long-term signing key pair, the session KEM key
// pair, the peer registry, the TreeKEM tree and the per-sender chains.
// It validates every key-material announcement (key length, ML-DSA
// signature over the KEM key, TOFU binding), sequences tree operations,
// rotates chains on epoch change while retaining the previous epoch's
// chains for a bounded grace window, and turns plaintext into wire
// frames and back.
package group
