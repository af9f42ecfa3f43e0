package store

import (
	"path/filepath"
	"sync"
	"time"

	"parrhesia/internal/domain"
)

const tofuFile = "tofu.json"

// VerifiedTTL is how long a verified TOFU record stays verified before
// demoting back to unverified.
const VerifiedTTL = 30 * 24 * time.Hour

// TofuStore keeps trust-on-first-use records keyed by room and
// fingerprint.
type TofuStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ domain.TrustStore = (*TofuStore)(nil)

// NewTofuStore stores records under dir.
func NewTofuStore(dir string) *TofuStore {
	return &TofuStore{dir: dir, now: time.Now}
}

// SetClock overrides the time source for tests.
func (s *TofuStore) SetClock(now func() time.Time) { s.now = now }

func tofuKey(room domain.RoomID, fp domain.Fingerprint) string {
	return room.String() + "|" + fp.String()
}

func (s *TofuStore) load() (map[string]domain.TofuRecord, error) {
	m := make(map[string]domain.TofuRecord)
	if err := readJSON(filepath.Join(s.dir, tofuFile), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *TofuStore) save(m map[string]domain.TofuRecord) error {
	return writeJSON(filepath.Join(s.dir, tofuFile), m, 0o600)
}

// Record inserts or refreshes the binding fingerprint → peer, failing
// ErrTofuConflict on an identity mismatch or a key_changed mark.
func (s *TofuStore) Record(room domain.RoomID, fp domain.Fingerprint, peer domain.PeerID) (domain.TrustStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", err
	}
	now := s.now().Unix()
	key := tofuKey(room, fp)
	rec, ok := m[key]
	if !ok {
		rec = domain.TofuRecord{
			PeerID:    peer,
			Status:    domain.TrustUnverified,
			FirstSeen: now,
			LastSeen:  now,
		}
		m[key] = rec
		return rec.Status, s.save(m)
	}
	if rec.Status == domain.TrustKeyChanged || rec.PeerID != peer {
		return "", domain.ErrTofuConflict
	}
	rec = s.demoteExpired(rec)
	rec.LastSeen = now
	m[key] = rec
	return rec.Status, s.save(m)
}

// Lookup returns the record for (room, fp), demoting stale verification.
func (s *TofuStore) Lookup(room domain.RoomID, fp domain.Fingerprint) (domain.TofuRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return domain.TofuRecord{}, false, err
	}
	rec, ok := m[tofuKey(room, fp)]
	if !ok {
		return domain.TofuRecord{}, false, nil
	}
	return s.demoteExpired(rec), true, nil
}

// MarkVerified records a successful safety-number comparison.
func (s *TofuStore) MarkVerified(room domain.RoomID, fp domain.Fingerprint) error {
	return s.setStatus(room, fp, domain.TrustVerified)
}

// MarkKeyChanged pins the fingerprint as conflicted until a human
// resolves it.
func (s *TofuStore) MarkKeyChanged(room domain.RoomID, fp domain.Fingerprint) error {
	return s.setStatus(room, fp, domain.TrustKeyChanged)
}

func (s *TofuStore) setStatus(room domain.RoomID, fp domain.Fingerprint, status domain.TrustStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	key := tofuKey(room, fp)
	rec, ok := m[key]
	if !ok {
		return domain.ErrUnknownPeer
	}
	rec.Status = status
	if status == domain.TrustVerified {
		rec.VerifiedAt = s.now().Unix()
	}
	m[key] = rec
	return s.save(m)
}

func (s *TofuStore) demoteExpired(rec domain.TofuRecord) domain.TofuRecord {
	if rec.Status == domain.TrustVerified &&
		time.Unix(rec.VerifiedAt, 0).Add(VerifiedTTL).Before(s.now()) {
		rec.Status = domain.TrustUnverified
		rec.VerifiedAt = 0
	}
	return rec
}
