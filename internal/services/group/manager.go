package group

import (
	"time"

	"github.com/sirupsen/logrus"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/protocol/chain"
	"parrhesia/internal/protocol/treekem"
	"parrhesia/internal/util/memzero"
)

// GraceWindow is how long the previous epoch's chains stay usable after
// a rekey, absorbing messages in flight across the commit boundary.
const GraceWindow = 30 * time.Second

// Manager is the group key manager for one room.
type Manager struct {
	log   *logrus.Entry
	room  domain.RoomID
	trust domain.TrustStore
	now   func() time.Time

	selfID  domain.PeerID
	signing domain.SigningKeyPair
	kem     domain.KEMKeyPair
	fp      domain.Fingerprint
	color   string

	peers     map[domain.PeerID]*domain.PeerRecord
	joinOrder []domain.PeerID

	tree     *treekem.Tree
	groupKey []byte

	// sendChain is the local copy of the self chain used for outbound
	// messages; the receive set below carries an identically seeded self
	// chain so the local frames can be decrypted like anyone else's.
	sendChain        *chain.Chain
	current          *chain.Set
	previous         *chain.Set
	previousEpoch    uint64
	previousDeadline time.Time
	awaitingWelcome  bool
}

// New builds a manager around a loaded signing key pair, generating the
// session's ephemeral KEM key pair.
func New(room domain.RoomID, signing domain.SigningKeyPair, trust domain.TrustStore, log *logrus.Entry) (*Manager, error) {
	kemPub, kemPriv, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		log:     log,
		room:    room,
		trust:   trust,
		now:     time.Now,
		signing: signing,
		kem:     domain.KEMKeyPair{Public: kemPub, Private: kemPriv},
		fp:      crypto.Fingerprint(signing.Public),
		peers:   make(map[domain.PeerID]*domain.PeerRecord),
	}
	m.recomputeColors()
	return m, nil
}

// SetClock overrides the time source. Tests use it to step through the
// grace window.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// SetSelfID records the server-assigned participant id.
func (m *Manager) SetSelfID(id domain.PeerID) { m.selfID = id }

// SelfID returns the server-assigned participant id.
func (m *Manager) SelfID() domain.PeerID { return m.selfID }

// Fingerprint returns the local identity fingerprint.
func (m *Manager) Fingerprint() domain.Fingerprint { return m.fp }

// SelfColor returns the local display color.
func (m *Manager) SelfColor() string { return m.color }

// Epoch returns the current group epoch, zero before any tree exists.
func (m *Manager) Epoch() uint64 {
	if m.tree == nil {
		return 0
	}
	return m.tree.Epoch()
}

// Announce returns the key_announce frame binding the session KEM key to
// the long-term identity.
func (m *Manager) Announce() (domain.Frame, error) {
	sig, err := crypto.Sign(m.signing.Private, m.kem.Public)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{
		Type:        domain.FrameKeyAnnounce,
		PublicKey:   crypto.B64(m.signing.Public),
		PQPublicKey: crypto.B64(m.kem.Public),
		Sig:         crypto.B64(sig),
	}, nil
}

// CreateTree initialises the creator's single-leaf tree and seeds the
// self chain so the creator can encrypt alone.
func (m *Manager) CreateTree() error {
	t, err := treekem.NewCreatorTree(m.kem)
	if err != nil {
		return err
	}
	m.tree = t
	key, err := t.GroupKey()
	if err != nil {
		return err
	}
	m.installGroupKey(key)
	return nil
}

// HasTree reports whether a local tree view exists.
func (m *Manager) HasTree() bool { return m.tree != nil }

// AddPeer validates and installs a peer announcement. The checks run in
// order — key lengths, signature over the KEM key, TOFU binding — and a
// failure leaves the registry and tree untouched.
func (m *Manager) AddPeer(id domain.PeerID, signingPub, kemPub, sig []byte) error {
	if len(signingPub) != crypto.SigningPublicKeySize {
		return domain.ErrInvalidKey
	}
	if len(kemPub) != crypto.KEMPublicKeySize {
		return domain.ErrInvalidKey
	}
	if !crypto.Verify(signingPub, kemPub, sig) {
		return domain.ErrInvalidSignature
	}
	fp := crypto.Fingerprint(signingPub)
	if _, err := m.trust.Record(m.room, fp, id); err != nil {
		return err
	}

	rec := &domain.PeerRecord{
		ID:          id,
		Fingerprint: fp,
		SigningPub:  signingPub,
		KEMPub:      kemPub,
		KEMPubSig:   sig,
		LeafPos:     -1,
	}
	if m.tree != nil {
		pos, err := m.tree.AddLeaf(kemPub)
		if err != nil {
			return err
		}
		rec.LeafPos = pos
	}
	m.peers[id] = rec
	m.joinOrder = append(m.joinOrder, id)
	m.recomputeColors()
	m.log.WithField("peer", id).Info("peer admitted")
	return nil
}

// RemovePeer drops a peer's registry entry, chains and tree leaf.
func (m *Manager) RemovePeer(id domain.PeerID) error {
	rec, ok := m.peers[id]
	if !ok {
		return domain.ErrUnknownPeer
	}
	delete(m.peers, id)
	for i, p := range m.joinOrder {
		if p == id {
			m.joinOrder = append(m.joinOrder[:i], m.joinOrder[i+1:]...)
			break
		}
	}
	if m.current != nil {
		m.current.Drop(id)
	}
	if m.previous != nil {
		m.previous.Drop(id)
	}
	if m.tree != nil && rec.LeafPos >= 0 {
		if err := m.tree.RemoveLeaf(rec.LeafPos); err != nil {
			return err
		}
	}
	m.recomputeColors()
	m.log.WithField("peer", id).Info("peer removed")
	return nil
}

// Peer returns the registry record for id.
func (m *Manager) Peer(id domain.PeerID) (*domain.PeerRecord, bool) {
	rec, ok := m.peers[id]
	return rec, ok
}

// Peers returns the registry records in join order.
func (m *Manager) Peers() []*domain.PeerRecord {
	out := make([]*domain.PeerRecord, 0, len(m.peers))
	for _, id := range m.joinOrder {
		if rec, ok := m.peers[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// peerAtLeaf finds the registry peer occupying a leaf position.
func (m *Manager) peerAtLeaf(pos int) (domain.PeerID, bool) {
	for id, rec := range m.peers {
		if rec.LeafPos == pos {
			return id, true
		}
	}
	return "", false
}

// ShouldInitiateRekey applies the deterministic election rule: the
// lexicographically smallest fingerprint among connected participants
// initiates. For an add, the joining peer is not yet eligible.
func (m *Manager) ShouldInitiateRekey(context string, newPeer domain.PeerID) bool {
	min := m.fp
	for id, rec := range m.peers {
		if context == "add" && id == newPeer {
			continue
		}
		if rec.Fingerprint < min {
			min = rec.Fingerprint
		}
	}
	return min == m.fp
}

// recomputeColors reassigns display colors across self and all peers.
func (m *Manager) recomputeColors() {
	pubs := map[domain.Fingerprint][]byte{m.fp: m.signing.Public}
	for _, rec := range m.peers {
		pubs[rec.Fingerprint] = rec.SigningPub
	}
	colors := domain.AssignColors(pubs)
	m.color = colors[m.fp]
	for _, rec := range m.peers {
		rec.Color = colors[rec.Fingerprint]
	}
}

// retireChains moves the current chains into the grace window. The tree
// has already advanced when this runs, so the retiring chains belong to
// the epoch just below it.
func (m *Manager) retireChains() {
	if m.current == nil {
		return
	}
	if m.previous != nil {
		m.previous.Wipe()
	}
	m.previous = m.current
	m.current = nil
	m.previousEpoch = m.tree.Epoch() - 1
	m.previousDeadline = m.now().Add(GraceWindow)
}

// installGroupKey swaps in a new epoch's group key, retiring the current
// chains and seeding one chain per participant.
func (m *Manager) installGroupKey(key []byte) {
	m.retireChains()
	memzero.Zero(m.groupKey)
	m.groupKey = key
	ids := make([]domain.PeerID, 0, len(m.peers)+1)
	ids = append(ids, m.selfID)
	for id := range m.peers {
		ids = append(ids, id)
	}
	if m.sendChain != nil {
		m.sendChain.Wipe()
	}
	m.sendChain = chain.New(key, m.selfID)
	m.current = chain.NewSet(key, ids)
	m.awaitingWelcome = false
}

// DropPreviousChains wipes the grace-window chains. Idempotent; the
// session calls it from the grace timer.
func (m *Manager) DropPreviousChains() {
	if m.previous != nil {
		m.previous.Wipe()
		m.previous = nil
	}
}

// Teardown zeroizes all key material on disconnect.
func (m *Manager) Teardown() {
	memzero.Zero(m.kem.Private)
	memzero.Zero(m.groupKey)
	m.groupKey = nil
	if m.tree != nil {
		m.tree.Wipe()
		m.tree = nil
	}
	if m.sendChain != nil {
		m.sendChain.Wipe()
		m.sendChain = nil
	}
	if m.current != nil {
		m.current.Wipe()
		m.current = nil
	}
	m.DropPreviousChains()
	memzero.Zero(m.signing.Private)
}
