package chain

import (
	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/util/memzero"
)

// MaxSkipped bounds the skipped-key cache per chain; the oldest entry is
// evicted first.
const MaxSkipped = 100

// Chain is one sender's hash chain within a single epoch.
type Chain struct {
	key     []byte
	counter uint64
	skipped map[uint64][]byte
	order   []uint64
}

// New seeds a chain from the epoch's group key and the sender's peer id.
func New(groupKey []byte, peer domain.PeerID) *Chain {
	return &Chain{
		key:     crypto.HKDF(groupKey, crypto.InfoChain+peer.String(), crypto.KeySize),
		skipped: make(map[uint64][]byte),
	}
}

// Counter returns the next counter this chain will use.
func (c *Chain) Counter() uint64 { return c.counter }

func step(key []byte) (msgKey, next []byte) {
	return crypto.HKDF(key, crypto.InfoMsgKey, crypto.KeySize),
		crypto.HKDF(key, crypto.InfoChainKey, crypto.KeySize)
}

// Next returns the message key for the chain's next counter value,
// advancing the chain. Senders call this once per message.
func (c *Chain) Next() (key []byte, counter uint64) {
	counter = c.counter
	key, next := step(c.key)
	memzero.Zero(c.key)
	c.key = next
	c.counter++
	return key, counter
}

// Open locates the message key for counter n and hands it to open. Chain
// state moves forward only when open succeeds; a failed open leaves the
// chain untouched so the genuine message for n still decrypts later.
//
// A counter ahead of the chain ratchets forward, caching every skipped
// key on the way; a counter behind the chain is served from the cache
// exactly once, failing ErrOutOfOrder on a miss.
func (c *Chain) Open(n uint64, open func(key []byte) ([]byte, error)) ([]byte, error) {
	if n < c.counter {
		key, ok := c.skipped[n]
		if !ok {
			return nil, domain.ErrOutOfOrder
		}
		pt, err := open(key)
		if err != nil {
			return nil, err
		}
		memzero.Zero(key)
		delete(c.skipped, n)
		for i, v := range c.order {
			if v == n {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return pt, nil
	}

	// Derive forward on scratch state; commit only after a good open.
	work := append([]byte(nil), c.key...)
	type cached struct {
		n   uint64
		key []byte
	}
	var toCache []cached
	for i := c.counter; i < n; i++ {
		msgKey, next := step(work)
		toCache = append(toCache, cached{n: i, key: msgKey})
		memzero.Zero(work)
		work = next
	}
	msgKey, next := step(work)
	memzero.Zero(work)

	pt, err := open(msgKey)
	if err != nil {
		memzero.Zero(msgKey)
		memzero.Zero(next)
		for _, s := range toCache {
			memzero.Zero(s.key)
		}
		return nil, err
	}
	memzero.Zero(msgKey)
	for _, s := range toCache {
		c.cacheSkipped(s.n, s.key)
	}
	memzero.Zero(c.key)
	c.key = next
	c.counter = n + 1
	return pt, nil
}

func (c *Chain) cacheSkipped(n uint64, key []byte) {
	if len(c.order) >= MaxSkipped {
		oldest := c.order[0]
		c.order = c.order[1:]
		memzero.Zero(c.skipped[oldest])
		delete(c.skipped, oldest)
	}
	c.skipped[n] = key
	c.order = append(c.order, n)
}

// SkippedLen reports the cache occupancy.
func (c *Chain) SkippedLen() int { return len(c.skipped) }

// Wipe zeroizes the chain key and every cached message key.
func (c *Chain) Wipe() {
	memzero.Zero(c.key)
	c.key = nil
	for n, k := range c.skipped {
		memzero.Zero(k)
		delete(c.skipped, n)
	}
	c.order = nil
}

// Set holds one chain per participant for a single epoch.
type Set struct {
	chains map[domain.PeerID]*Chain
}

// NewSet seeds a chain for every listed participant from the epoch's
// group key.
func NewSet(groupKey []byte, peers []domain.PeerID) *Set {
	s := &Set{chains: make(map[domain.PeerID]*Chain, len(peers))}
	for _, p := range peers {
		s.chains[p] = New(groupKey, p)
	}
	return s
}

// Get returns the chain for peer, if seeded.
func (s *Set) Get(peer domain.PeerID) (*Chain, bool) {
	c, ok := s.chains[peer]
	return c, ok
}

// Drop wipes and removes a participant's chain.
func (s *Set) Drop(peer domain.PeerID) {
	if c, ok := s.chains[peer]; ok {
		c.Wipe()
		delete(s.chains, peer)
	}
}

// Wipe zeroizes every chain in the set.
func (s *Set) Wipe() {
	for p, c := range s.chains {
		c.Wipe()
		delete(s.chains, p)
	}
}
