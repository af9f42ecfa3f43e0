package chain_test

import (
	"bytes"
	"errors"
	"testing"

	"parrhesia/internal/domain"
	"parrhesia/internal/protocol/chain"
)

var groupKey = bytes.Repeat([]byte{0x11}, 32)

// accept returns an open callback that succeeds and records the key.
func accept(got *[]byte) func([]byte) ([]byte, error) {
	return func(key []byte) ([]byte, error) {
		*got = append([]byte(nil), key...)
		return []byte("ok"), nil
	}
}

func TestChain_SenderReceiverAgree(t *testing.T) {
	send := chain.New(groupKey, "p1")
	recv := chain.New(groupKey, "p1")

	for i := 0; i < 5; i++ {
		key, counter := send.Next()
		if counter != uint64(i) {
			t.Fatalf("send counter %d, want %d", counter, i)
		}
		var got []byte
		if _, err := recv.Open(counter, accept(&got)); err != nil {
			t.Fatalf("Open(%d): %v", counter, err)
		}
		if !bytes.Equal(key, got) {
			t.Fatalf("key mismatch at counter %d", counter)
		}
	}
}

func TestChain_DifferentPeersDiverge(t *testing.T) {
	a := chain.New(groupKey, "p1")
	b := chain.New(groupKey, "p2")
	ka, _ := a.Next()
	kb, _ := b.Next()
	if bytes.Equal(ka, kb) {
		t.Fatal("chains for different peers must diverge")
	}
}

func TestChain_OutOfOrderWithinEpoch(t *testing.T) {
	send := chain.New(groupKey, "p1")
	recv := chain.New(groupKey, "p1")

	keys := make([][]byte, 5)
	for i := range keys {
		keys[i], _ = send.Next()
	}

	// Delivery order m2, m0, m4, m1, m3.
	for _, n := range []uint64{2, 0, 4, 1, 3} {
		var got []byte
		if _, err := recv.Open(n, accept(&got)); err != nil {
			t.Fatalf("Open(%d): %v", n, err)
		}
		if !bytes.Equal(keys[n], got) {
			t.Fatalf("wrong key for counter %d", n)
		}
	}
	if recv.SkippedLen() != 0 {
		t.Fatalf("skipped cache not drained: %d", recv.SkippedLen())
	}
}

func TestChain_ReplayRejected(t *testing.T) {
	send := chain.New(groupKey, "p1")
	recv := chain.New(groupKey, "p1")
	_, counter := send.Next()
	var got []byte
	if _, err := recv.Open(counter, accept(&got)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := recv.Open(counter, accept(&got)); !errors.Is(err, domain.ErrOutOfOrder) {
		t.Fatalf("replay: want ErrOutOfOrder, got %v", err)
	}
}

func TestChain_SkippedCacheEviction(t *testing.T) {
	recv := chain.New(groupKey, "p1")

	// Jump to counter 101: counters 0..100 are skipped, the cache holds
	// 100 and the oldest (0) is evicted.
	var got []byte
	if _, err := recv.Open(101, accept(&got)); err != nil {
		t.Fatalf("Open(101): %v", err)
	}
	if recv.SkippedLen() != chain.MaxSkipped {
		t.Fatalf("cache size %d, want %d", recv.SkippedLen(), chain.MaxSkipped)
	}
	if _, err := recv.Open(0, accept(&got)); !errors.Is(err, domain.ErrOutOfOrder) {
		t.Fatalf("evicted key: want ErrOutOfOrder, got %v", err)
	}
	if _, err := recv.Open(1, accept(&got)); err != nil {
		t.Fatalf("retained key: %v", err)
	}
}

func TestChain_FailedOpenLeavesStateUntouched(t *testing.T) {
	send := chain.New(groupKey, "p1")
	recv := chain.New(groupKey, "p1")
	key0, _ := send.Next()

	fail := errors.New("bad tag")
	if _, err := recv.Open(0, func([]byte) ([]byte, error) { return nil, fail }); !errors.Is(err, fail) {
		t.Fatalf("want open error, got %v", err)
	}
	if recv.Counter() != 0 {
		t.Fatalf("counter advanced to %d on failure", recv.Counter())
	}
	if recv.SkippedLen() != 0 {
		t.Fatal("failed open polluted the cache")
	}

	// The genuine message still decrypts.
	var got []byte
	if _, err := recv.Open(0, accept(&got)); err != nil {
		t.Fatalf("Open after failure: %v", err)
	}
	if !bytes.Equal(key0, got) {
		t.Fatal("key mismatch after failed attempt")
	}
}
