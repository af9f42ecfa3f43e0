package store_test

import (
	"errors"
	"testing"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/store"
)

func newSigningPair(t *testing.T) domain.SigningKeyPair {
	t.Helper()
	pub, priv, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	return domain.SigningKeyPair{Public: pub, Private: priv}
}

func TestIdentity_RawSaveLoad(t *testing.T) {
	s := store.NewIdentityStore(t.TempDir())
	kp := newSigningPair(t)

	if err := s.Save("", kp); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := s.Exists()
	if err != nil || !ok {
		t.Fatalf("exists: %v %v", ok, err)
	}
	got, err := s.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got.Public) != string(kp.Public) || string(got.Private) != string(kp.Private) {
		t.Fatal("mismatch after raw load")
	}
}

func TestIdentity_WrappedSaveLoad(t *testing.T) {
	s := store.NewIdentityStore(t.TempDir())
	kp := newSigningPair(t)

	if err := s.Save("hunter2", kp); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got.Private) != string(kp.Private) {
		t.Fatal("mismatch after unwrap")
	}
}

func TestIdentity_WrongPassword(t *testing.T) {
	s := store.NewIdentityStore(t.TempDir())
	kp := newSigningPair(t)

	if err := s.Save("correct", kp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Load("wrong"); !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
	if _, err := s.Load(""); !errors.Is(err, domain.ErrPasswordRequired) {
		t.Fatalf("want ErrPasswordRequired, got %v", err)
	}
}
