package domain

import "context"

// Transport is the single bidirectional ordered frame stream to the relay.
type Transport interface {
	Send(ctx context.Context, f Frame) error
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

// RoomClient is the REST collaborator for room lifecycle.
type RoomClient interface {
	CreateRoom(ctx context.Context) (RoomID, error)
	RoomExists(ctx context.Context, id RoomID) (bool, error)
}

// IdentityStore persists the long-term signing key pair, optionally
// password-wrapped.
type IdentityStore interface {
	Save(password string, kp SigningKeyPair) error
	Load(password string) (SigningKeyPair, error)
	Exists() (bool, error)
}

// TrustStore keeps trust-on-first-use records keyed by room and
// fingerprint.
type TrustStore interface {
	// Record inserts or refreshes the binding fingerprint → peerID and
	// returns its status. It fails with ErrTofuConflict when the
	// fingerprint is already bound to a different peer identity or is
	// marked key_changed.
	Record(room RoomID, fp Fingerprint, peer PeerID) (TrustStatus, error)
	Lookup(room RoomID, fp Fingerprint) (TofuRecord, bool, error)
	MarkVerified(room RoomID, fp Fingerprint) error
	MarkKeyChanged(room RoomID, fp Fingerprint) error
}

// HistoryStore persists decrypted messages per room.
type HistoryStore interface {
	Append(room RoomID, rec HistoryRecord) error
	Load(room RoomID) ([]HistoryRecord, error)
}
