package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
)

func TestKEM_RoundTrip(t *testing.T) {
	pub, priv, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("GenerateKEMKeyPair: %v", err)
	}
	if len(pub) != crypto.KEMPublicKeySize {
		t.Fatalf("public key size %d, want %d", len(pub), crypto.KEMPublicKeySize)
	}
	if len(priv) != crypto.KEMPrivateKeySize {
		t.Fatalf("private key size %d, want %d", len(priv), crypto.KEMPrivateKeySize)
	}

	ct, shared, err := crypto.Encapsulate(pub)
	if err != nil {
		t.Fatalf("Encapsulate: %v", err)
	}
	if len(ct) != crypto.KEMCiphertextSize {
		t.Fatalf("ciphertext size %d, want %d", len(ct), crypto.KEMCiphertextSize)
	}
	got, err := crypto.Decapsulate(ct, priv)
	if err != nil {
		t.Fatalf("Decapsulate: %v", err)
	}
	if !bytes.Equal(shared, got) {
		t.Fatal("shared secret mismatch")
	}
}

func TestKEM_RejectsWrongSizes(t *testing.T) {
	if _, _, err := crypto.Encapsulate(make([]byte, 10)); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
	if _, err := crypto.Decapsulate(make([]byte, 10), make([]byte, crypto.KEMPrivateKeySize)); !errors.Is(err, domain.ErrKemDecapFailure) {
		t.Fatalf("want ErrKemDecapFailure, got %v", err)
	}
}

func TestSign_VerifyAndReject(t *testing.T) {
	pub, priv, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	if len(pub) != crypto.SigningPublicKeySize || len(priv) != crypto.SigningPrivateKeySize {
		t.Fatalf("key sizes %d/%d", len(pub), len(priv))
	}

	msg := []byte("kem public key bytes")
	sig, err := crypto.Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !crypto.Verify(pub, msg, sig) {
		t.Fatal("valid signature rejected")
	}
	// Same key, different payload: must fail.
	if crypto.Verify(pub, []byte("different payload"), sig) {
		t.Fatal("signature over wrong payload accepted")
	}
	// Different key: must fail.
	otherPub, _, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	if crypto.Verify(otherPub, msg, sig) {
		t.Fatal("signature accepted under wrong key")
	}
}

func TestSeal_OpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, crypto.AEADKeySize)
	sealed, err := crypto.Seal(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := crypto.Open(key, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q, want %q", pt, "hello")
	}
}

func TestOpen_FailsOnTamper(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, crypto.AEADKeySize)
	sealed, err := crypto.Seal(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 1
	if _, err := crypto.Open(key, sealed); !errors.Is(err, domain.ErrAeadAuthFailure) {
		t.Fatalf("want ErrAeadAuthFailure, got %v", err)
	}
}

func TestHKDF_DeterministicAndSeparated(t *testing.T) {
	ikm := bytes.Repeat([]byte{7}, 32)
	a := crypto.HKDF(ikm, crypto.InfoTreeNode, crypto.KeySize)
	b := crypto.HKDF(ikm, crypto.InfoTreeNode, crypto.KeySize)
	c := crypto.HKDF(ikm, crypto.InfoTreeRoot, crypto.KeySize)
	if !bytes.Equal(a, b) {
		t.Fatal("HKDF not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Fatal("HKDF ignores info label")
	}
}

func TestFingerprint_IsStdBase64(t *testing.T) {
	pub := bytes.Repeat([]byte{1}, crypto.SigningPublicKeySize)
	fp := crypto.Fingerprint(pub)
	raw, err := crypto.UnB64(fp.String())
	if err != nil {
		t.Fatalf("fingerprint not base64: %v", err)
	}
	if !bytes.Equal(raw, pub) {
		t.Fatal("fingerprint does not round-trip the key")
	}
}
