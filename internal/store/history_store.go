package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/util/memzero"
)

// historyEnvelope is the sealed on-disk form: the record array encrypted
// under a key derived from the history password with its own salt.
type historyEnvelope struct {
	Salt    string `json:"salt"`
	Payload string `json:"payload"` // base64 iv ∥ ct ∥ tag
}

// HistoryStore persists decrypted messages per room, sealed when a
// password is set.
type HistoryStore struct {
	dir      string
	password string
	mu       sync.Mutex
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore stores history under dir; password "" keeps records in
// the clear.
func NewHistoryStore(dir, password string) *HistoryStore {
	return &HistoryStore{dir: dir, password: password}
}

func (s *HistoryStore) path(room domain.RoomID) string {
	return filepath.Join(s.dir, "history_"+room.String()+".json")
}

// historyKey derives the sealing key. The "-messages" suffix keeps it
// independent from the identity wrapping key under the same password.
func historyKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password+"-messages"), salt, kdfIterations, crypto.AEADKeySize, sha256.New)
}

// Append adds one record to the room's history.
func (s *HistoryStore) Append(room domain.RoomID, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.loadLocked(room)
	if err != nil {
		return err
	}
	return s.saveLocked(room, append(recs, rec))
}

// Load returns the room's history.
func (s *HistoryStore) Load(room domain.RoomID) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(room)
}

func (s *HistoryStore) loadLocked(room domain.RoomID) ([]domain.HistoryRecord, error) {
	if s.password == "" {
		var recs []domain.HistoryRecord
		if err := readJSON(s.path(room), &recs); err != nil {
			return nil, err
		}
		return recs, nil
	}

	var env historyEnvelope
	if err := readJSON(s.path(room), &env); err != nil {
		return nil, err
	}
	if env.Payload == "" {
		return nil, nil
	}
	salt, err := crypto.UnB64(env.Salt)
	if err != nil || len(salt) != kdfSaltBytes {
		return nil, domain.ErrInvalidPassword
	}
	blob, err := crypto.UnB64(env.Payload)
	if err != nil {
		return nil, domain.ErrInvalidPassword
	}
	key := historyKey(s.password, salt)
	defer memzero.Zero(key)
	raw, err := crypto.Open(key, blob)
	if err != nil {
		return nil, domain.ErrInvalidPassword
	}
	var recs []domain.HistoryRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *HistoryStore) saveLocked(room domain.RoomID, recs []domain.HistoryRecord) error {
	if s.password == "" {
		return writeJSON(s.path(room), recs, 0o600)
	}

	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	salt := make([]byte, kdfSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := historyKey(s.password, salt)
	defer memzero.Zero(key)
	sealed, err := crypto.Seal(key, raw)
	if err != nil {
		return err
	}
	env := historyEnvelope{Salt: crypto.B64(salt), Payload: crypto.B64(sealed)}
	return writeJSON(s.path(room), env, 0o600)
}
