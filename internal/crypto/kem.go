package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"parrhesia/internal/domain"
)

var kemScheme = mlkem768.Scheme()

// ML-KEM-768 sizes, per FIPS 203.
const (
	KEMPublicKeySize  = 1184
	KEMPrivateKeySize = 2400
	KEMCiphertextSize = 1088
	KEMSharedKeySize  = 32
)

// GenerateKEMKeyPair returns a fresh ML-KEM-768 key pair as raw bytes.
func GenerateKEMKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	pub, err = pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	priv, err = sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// Encapsulate derives a fresh shared secret to peerPub and returns the
// ciphertext alongside it.
func Encapsulate(peerPub []byte) (ct, shared []byte, err error) {
	if len(peerPub) != KEMPublicKeySize {
		return nil, nil, domain.ErrInvalidKey
	}
	pk, err := kemScheme.UnmarshalBinaryPublicKey(peerPub)
	if err != nil {
		return nil, nil, domain.ErrInvalidKey
	}
	return kemScheme.Encapsulate(pk)
}

// Decapsulate recovers the shared secret from ct. ML-KEM has implicit
// rejection: a mauled ciphertext yields a random-looking secret rather
// than an error, so callers must not treat a nil error as authentication.
func Decapsulate(ct, priv []byte) ([]byte, error) {
	if len(ct) != KEMCiphertextSize || len(priv) != KEMPrivateKeySize {
		return nil, domain.ErrKemDecapFailure
	}
	sk, err := kemScheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, domain.ErrKemDecapFailure
	}
	shared, err := kemScheme.Decapsulate(sk, ct)
	if err != nil {
		return nil, domain.ErrKemDecapFailure
	}
	return shared, nil
}
