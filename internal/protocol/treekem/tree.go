package treekem

import (
	"crypto/rand"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/util/memzero"
)

// MaxLeaves bounds the room size.
const MaxLeaves = 16

// node is one slot in the tree arena. Any field may be blank. installer
// remembers which leaf position last installed the key pair, so a
// committer can tell which members a single encapsulation reaches.
type node struct {
	pub       []byte
	priv      []byte
	secret    []byte
	installer int
}

func (nd *node) blank() {
	memzero.Zero(nd.priv)
	memzero.Zero(nd.secret)
	nd.pub, nd.priv, nd.secret = nil, nil, nil
	nd.installer = -1
}

// Tree is the local TreeKEM state: a flat arena of nodes, the local leaf
// position, and the current epoch.
type Tree struct {
	nodes     []node
	numLeaves int
	myLeaf    int
	epoch     uint64
}

// NewCreatorTree returns a single-leaf tree at position 0 holding the
// creator's session KEM key pair and a fresh random leaf secret.
func NewCreatorTree(kp domain.KEMKeyPair) (*Tree, error) {
	secret := make([]byte, crypto.KeySize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	t := &Tree{
		nodes:     make([]node, 1),
		numLeaves: 1,
		myLeaf:    0,
	}
	t.nodes[0] = node{
		pub:       append([]byte(nil), kp.Public...),
		priv:      append([]byte(nil), kp.Private...),
		secret:    secret,
		installer: 0,
	}
	return t, nil
}

// Epoch returns the current epoch.
func (t *Tree) Epoch() uint64 { return t.epoch }

// NumLeaves returns the leaf count, blank slots included.
func (t *Tree) NumLeaves() int { return t.numLeaves }

// MyLeaf returns the local leaf position.
func (t *Tree) MyLeaf() int { return t.myLeaf }

// LeafPublicKey returns the KEM public key at leaf p, or nil when blank.
func (t *Tree) LeafPublicKey(p int) []byte {
	if p < 0 || p >= t.numLeaves {
		return nil
	}
	return t.nodes[LeafNode(p)].pub
}

// LeafKeyPair returns the local leaf's current KEM key pair.
func (t *Tree) LeafKeyPair() domain.KEMKeyPair {
	nd := t.nodes[LeafNode(t.myLeaf)]
	return domain.KEMKeyPair{Public: nd.pub, Private: nd.priv}
}

// OccupiedLeaves returns the non-blank leaf positions in ascending order.
func (t *Tree) OccupiedLeaves() []int {
	var out []int
	for p := 0; p < t.numLeaves; p++ {
		if t.nodes[LeafNode(p)].pub != nil {
			out = append(out, p)
		}
	}
	return out
}

// AddLeaf appends a leaf for a new member and blanks the nodes on its
// direct path. It returns the assigned leaf position.
func (t *Tree) AddLeaf(peerKEMPub []byte) (int, error) {
	if t.numLeaves >= MaxLeaves {
		return 0, domain.ErrRoomFull
	}
	pos := t.numLeaves
	t.numLeaves++
	grown := make([]node, NodeWidth(t.numLeaves))
	copy(grown, t.nodes)
	for i := len(t.nodes); i < len(grown); i++ {
		grown[i].installer = -1
	}
	t.nodes = grown

	t.nodes[LeafNode(pos)] = node{pub: peerKEMPub, installer: pos}
	for _, x := range DirectPath(pos, t.numLeaves) {
		t.nodes[x].blank()
	}
	return pos, nil
}

// RemoveLeaf blanks a member's leaf and its direct path. The leaf count
// stays fixed; the slot remains permanently blank.
func (t *Tree) RemoveLeaf(pos int) error {
	if pos < 0 || pos >= t.numLeaves {
		return domain.ErrUnknownPeer
	}
	t.nodes[LeafNode(pos)].blank()
	for _, x := range DirectPath(pos, t.numLeaves) {
		t.nodes[x].blank()
	}
	return nil
}

// resolve returns the node index of x's leftmost non-blank descendant,
// or -1 when the whole subtree is blank.
func (t *Tree) resolve(x int) int {
	if t.nodes[x].pub != nil {
		return x
	}
	if IsLeaf(x) {
		return -1
	}
	if r := t.resolve(LeftChild(x)); r >= 0 {
		return r
	}
	return t.resolve(RightChild(x, t.numLeaves))
}

// RootSecret returns the current root secret, or nil when the local view
// has not derived one.
func (t *Tree) RootSecret() []byte {
	return t.nodes[Root(t.numLeaves)].secret
}

// GroupKey derives the 256-bit AES group key from the root secret.
func (t *Tree) GroupKey() ([]byte, error) {
	rs := t.RootSecret()
	if rs == nil {
		return nil, domain.ErrRekeyFailed
	}
	return crypto.HKDF(rs, crypto.InfoTreeRoot, crypto.KeySize), nil
}

// clearSecrets wipes every node secret so only the next commit's
// derivations are authoritative.
func (t *Tree) clearSecrets() {
	for i := range t.nodes {
		memzero.Zero(t.nodes[i].secret)
		t.nodes[i].secret = nil
	}
}

// Wipe zeroizes all secret material in the tree.
func (t *Tree) Wipe() {
	for i := range t.nodes {
		memzero.Zero(t.nodes[i].priv)
		memzero.Zero(t.nodes[i].secret)
	}
	t.nodes = nil
}

// wrapSecret seals secret for the holder of pub: a KEM encapsulation plus
// an AEAD under the wrapped shared secret.
func wrapSecret(pub, secret []byte) (kemCT, aeadCT []byte, err error) {
	kemCT, shared, err := crypto.Encapsulate(pub)
	if err != nil {
		return nil, nil, err
	}
	wrap := crypto.HKDF(shared, crypto.InfoKEMWrap, crypto.KeySize)
	memzero.Zero(shared)
	aeadCT, err = crypto.Seal(wrap, secret)
	memzero.Zero(wrap)
	if err != nil {
		return nil, nil, err
	}
	return kemCT, aeadCT, nil
}

// unwrapSecret reverses wrapSecret with the matching KEM private key.
func unwrapSecret(priv, kemCT, aeadCT []byte) ([]byte, error) {
	shared, err := crypto.Decapsulate(kemCT, priv)
	if err != nil {
		return nil, err
	}
	wrap := crypto.HKDF(shared, crypto.InfoKEMWrap, crypto.KeySize)
	memzero.Zero(shared)
	secret, err := crypto.Open(wrap, aeadCT)
	memzero.Zero(wrap)
	if err != nil {
		// An implicit-rejection decapsulation surfaces here, as a wrap
		// key that cannot authenticate the sealed secret.
		return nil, domain.ErrKemDecapFailure
	}
	return secret, nil
}
