// Package crypto exposes the minimal primitives used by Parrhesia.
//
// Contents
//
//   - ML-KEM-768 key generation, encapsulation and decapsulation
//     (GenerateKEMKeyPair, Encapsulate, Decapsulate)
//   - ML-DSA-65 key generation, signing and verification
//     (GenerateSigningKeyPair, Sign, Verify)
//   - HKDF-SHA-256 derivation with the protocol's domain-separation labels
//     (HKDF and the Info* constants)
//   - AES-256-GCM sealing with the IV prepended to the ciphertext
//     (Seal, Open)
//   - Identity fingerprints and base64 helpers (Fingerprint, B64, UnB64)
//
// # Notes
//
// All functions operate on plain byte slices sized per FIPS 203/204; the
// size constants are re-exported so callers can validate wire input before
// handing it to the primitives. Callers should treat returned secrets as
// sensitive and rely on memzero when practical to reduce lifetime in memory.
package crypto
