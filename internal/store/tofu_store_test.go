package store_test

import (
	"errors"
	"testing"
	"time"

	"parrhesia/internal/domain"
	"parrhesia/internal/store"
)

func TestTofu_FirstUseThenRefresh(t *testing.T) {
	s := store.NewTofuStore(t.TempDir())

	status, err := s.Record("room1", "fpA", "p1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if status != domain.TrustUnverified {
		t.Fatalf("status %q, want unverified", status)
	}

	// Same binding refreshes.
	if _, err := s.Record("room1", "fpA", "p1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestTofu_ConflictOnRebinding(t *testing.T) {
	s := store.NewTofuStore(t.TempDir())
	if _, err := s.Record("room1", "fpA", "p1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := s.Record("room1", "fpA", "p2"); !errors.Is(err, domain.ErrTofuConflict) {
		t.Fatalf("want ErrTofuConflict, got %v", err)
	}
	// Other rooms are independent.
	if _, err := s.Record("room2", "fpA", "p2"); err != nil {
		t.Fatalf("other room: %v", err)
	}
}

func TestTofu_KeyChangedBlocks(t *testing.T) {
	s := store.NewTofuStore(t.TempDir())
	if _, err := s.Record("room1", "fpA", "p1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.MarkKeyChanged("room1", "fpA"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, err := s.Record("room1", "fpA", "p1"); !errors.Is(err, domain.ErrTofuConflict) {
		t.Fatalf("want ErrTofuConflict after key_changed, got %v", err)
	}
}

func TestTofu_VerifiedExpires(t *testing.T) {
	s := store.NewTofuStore(t.TempDir())
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if _, err := s.Record("room1", "fpA", "p1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.MarkVerified("room1", "fpA"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	rec, ok, err := s.Lookup("room1", "fpA")
	if err != nil || !ok {
		t.Fatalf("lookup: %v %v", ok, err)
	}
	if rec.Status != domain.TrustVerified {
		t.Fatalf("status %q, want verified", rec.Status)
	}

	now = now.Add(store.VerifiedTTL + time.Hour)
	rec, ok, err = s.Lookup("room1", "fpA")
	if err != nil || !ok {
		t.Fatalf("lookup after expiry: %v %v", ok, err)
	}
	if rec.Status != domain.TrustUnverified {
		t.Fatalf("status %q, want demoted to unverified", rec.Status)
	}
}
