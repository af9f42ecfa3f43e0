package store

import (
	"crypto/rand"
	"crypto/sha256"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/util/memzero"
)

const (
	rawIdentityFile     = "identity.json"
	wrappedIdentityFile = "identity.enc"

	// PBKDF2-SHA-256 parameters for password wrapping.
	kdfIterations = 600_000
	kdfSaltBytes  = 16
)

// wrappedIdentity is the on-disk password-wrapped form. All fields are
// base64.
type wrappedIdentity struct {
	EncryptedKey string `json:"encryptedKey"`
	Salt         string `json:"salt"`
	IV           string `json:"iv"`
	PublicKey    string `json:"publicKey"`
}

// IdentityStore keeps the long-term ML-DSA-65 key pair on disk.
type IdentityStore struct {
	dir string
	mu  sync.Mutex
}

var _ domain.IdentityStore = (*IdentityStore)(nil)

// NewIdentityStore stores identity files under dir.
func NewIdentityStore(dir string) *IdentityStore { return &IdentityStore{dir: dir} }

// Exists reports whether an identity has been initialised.
func (s *IdentityStore) Exists() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range []string{wrappedIdentityFile, rawIdentityFile} {
		ok, err := fileExists(filepath.Join(s.dir, f))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Save writes the key pair, wrapped when password is non-empty.
func (s *IdentityStore) Save(password string, kp domain.SigningKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if password == "" {
		return writeJSON(filepath.Join(s.dir, rawIdentityFile), kp, 0o600)
	}

	salt := make([]byte, kdfSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, crypto.AEADKeySize, sha256.New)
	defer memzero.Zero(key)

	sealed, err := crypto.Seal(key, kp.Private)
	if err != nil {
		return err
	}
	w := wrappedIdentity{
		EncryptedKey: crypto.B64(sealed[crypto.IVSize:]),
		Salt:         crypto.B64(salt),
		IV:           crypto.B64(sealed[:crypto.IVSize]),
		PublicKey:    crypto.B64(kp.Public),
	}
	return writeJSON(filepath.Join(s.dir, wrappedIdentityFile), w, 0o600)
}

// Load reads the key pair back, failing ErrPasswordRequired when the
// stored form is wrapped and no password was given, and
// ErrInvalidPassword when unwrapping does not authenticate.
func (s *IdentityStore) Load(password string) (domain.SigningKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrappedPath := filepath.Join(s.dir, wrappedIdentityFile)
	if ok, err := fileExists(wrappedPath); err != nil {
		return domain.SigningKeyPair{}, err
	} else if ok {
		return s.loadWrapped(wrappedPath, password)
	}

	var kp domain.SigningKeyPair
	if err := readJSON(filepath.Join(s.dir, rawIdentityFile), &kp); err != nil {
		return domain.SigningKeyPair{}, err
	}
	if len(kp.Public) != crypto.SigningPublicKeySize || len(kp.Private) != crypto.SigningPrivateKeySize {
		return domain.SigningKeyPair{}, domain.ErrInvalidKey
	}
	return kp, nil
}

func (s *IdentityStore) loadWrapped(path, password string) (domain.SigningKeyPair, error) {
	if password == "" {
		return domain.SigningKeyPair{}, domain.ErrPasswordRequired
	}
	var w wrappedIdentity
	if err := readJSON(path, &w); err != nil {
		return domain.SigningKeyPair{}, err
	}
	salt, err1 := crypto.UnB64(w.Salt)
	iv, err2 := crypto.UnB64(w.IV)
	ct, err3 := crypto.UnB64(w.EncryptedKey)
	pub, err4 := crypto.UnB64(w.PublicKey)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || len(salt) != kdfSaltBytes || len(iv) != crypto.IVSize {
		return domain.SigningKeyPair{}, domain.ErrInvalidPassword
	}

	key := pbkdf2.Key([]byte(password), salt, kdfIterations, crypto.AEADKeySize, sha256.New)
	defer memzero.Zero(key)

	priv, err := crypto.Open(key, append(iv, ct...))
	if err != nil {
		return domain.SigningKeyPair{}, domain.ErrInvalidPassword
	}
	if len(pub) != crypto.SigningPublicKeySize || len(priv) != crypto.SigningPrivateKeySize {
		return domain.SigningKeyPair{}, domain.ErrInvalidPassword
	}
	return domain.SigningKeyPair{Public: pub, Private: priv}, nil
}
