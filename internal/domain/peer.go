package domain

// TrustStatus is the TOFU state of an identity fingerprint.
type TrustStatus string

const (
	TrustUnverified TrustStatus = "unverified"
	TrustVerified   TrustStatus = "verified"
	TrustKeyChanged TrustStatus = "key_changed"
)

// TofuRecord binds a fingerprint to the peer identity first seen using it.
type TofuRecord struct {
	PeerID     PeerID      `json:"peer_id"`
	Status     TrustStatus `json:"status"`
	FirstSeen  int64       `json:"first_seen"`
	LastSeen   int64       `json:"last_seen"`
	VerifiedAt int64       `json:"verified_at,omitempty"`
}

// PeerRecord is one remote participant as the group key manager sees it.
type PeerRecord struct {
	ID          PeerID
	Fingerprint Fingerprint
	SigningPub  []byte
	KEMPub      []byte
	KEMPubSig   []byte
	LeafPos     int
	Color       string
}

// HistoryRecord is one decrypted message as persisted locally.
type HistoryRecord struct {
	PeerID    PeerID `json:"peer_id"`
	Direction string `json:"direction"` // "in" or "out"
	Plaintext string `json:"plaintext"`
	Timestamp int64  `json:"timestamp"`
}
