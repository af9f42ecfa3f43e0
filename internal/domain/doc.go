// Package domain defines the types shared across Parrhesia's layers.
//
// It holds the wire frame envelope and the TreeKEM commit/welcome message
// bodies (§ frame schemas are JSON with base64 binary fields), the peer
// registry and TOFU record types, the protocol's sentinel errors, and the
// narrow interfaces the services consume (Transport, TrustStore,
// IdentityStore, HistoryStore).
//
// Nothing in this package performs cryptography; it only shapes data so the
// protocol, service, relay and store layers can depend on it without
// depending on each other.
package domain
