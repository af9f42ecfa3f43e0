// Package treekem implements group key agreement on a left-balanced
// binary tree of ML-KEM-768 key pairs.
//
// The tree is a flat node array using the standard MLS indexing: leaf p
// sits at node 2p, internal nodes at odd indices. The root secret is the
// group secret; commits rotate the committer's leaf and direct path and
// deliver each fresh path secret to the opposite subtree with a single
// KEM encapsulation to that subtree's resolution. Members a single
// encapsulation cannot reach are reported by GenerateCommit so the caller
// can follow up with targeted Welcomes, the same mechanism that initialises
// joiners.
//
// All derivations are HKDF-SHA-256 under the protocol labels in
// internal/crypto; path secrets travel AEAD-sealed under a key wrapped
// from the KEM shared secret.
package treekem
