package crypto

import (
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"parrhesia/internal/domain"
)

var sigScheme = mldsa65.Scheme()

// ML-DSA-65 sizes, per FIPS 204.
const (
	SigningPublicKeySize  = 1952
	SigningPrivateKeySize = 4032
	SignatureSize         = 3309
)

// GenerateSigningKeyPair returns a fresh ML-DSA-65 key pair as raw bytes.
func GenerateSigningKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := sigScheme.GenerateKey()
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

// Sign signs msg with the raw ML-DSA-65 private key.
func Sign(priv, msg []byte) ([]byte, error) {
	if len(priv) != SigningPrivateKeySize {
		return nil, domain.ErrInvalidKey
	}
	sk, err := sigScheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, domain.ErrInvalidKey
	}
	return sigScheme.Sign(sk, msg, nil), nil
}

// Verify reports whether sig is a valid ML-DSA-65 signature over msg.
func Verify(pub, msg, sig []byte) bool {
	if len(pub) != SigningPublicKeySize {
		return false
	}
	pk, err := sigScheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return false
	}
	return sigScheme.Verify(pk, msg, sig, nil)
}
