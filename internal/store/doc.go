// Package store persists Parrhesia's local state as small JSON files in
// the home directory: the long-term signing key pair (optionally
// password-wrapped), trust-on-first-use records per room and
// fingerprint, and optionally sealed message history.
//
// The session KEM key pair is deliberately never persisted.
package store
