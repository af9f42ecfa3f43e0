package treekem

import (
	"crypto/rand"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
)

// CommitResult carries a freshly generated commit plus the leaf positions
// its encapsulations cannot reach. The caller sends each uncovered member
// a targeted Welcome built from the post-commit tree.
type CommitResult struct {
	Commit    domain.Commit
	Uncovered []int
}

// GenerateCommit rotates the local leaf and direct path, advancing the
// tree one epoch. The fresh secret of every path node is encapsulated to
// the resolution of the opposite subtree; a blank opposite subtree yields
// an empty entry.
func (t *Tree) GenerateCommit() (*CommitResult, error) {
	leafSecret := make([]byte, crypto.KeySize)
	if _, err := rand.Read(leafSecret); err != nil {
		return nil, err
	}
	leafPub, leafPriv, err := crypto.GenerateKEMKeyPair()
	if err != nil {
		return nil, err
	}

	path := DirectPath(t.myLeaf, t.numLeaves)
	cop := Copath(t.myLeaf, t.numLeaves)

	// Resolutions are computed against the pre-commit tree; installing
	// our own path keys below never changes the opposite subtrees.
	targets := make([]int, len(cop))
	for i, sib := range cop {
		targets[i] = t.resolve(sib)
	}

	t.clearSecrets()
	t.nodes[LeafNode(t.myLeaf)].blank()
	t.nodes[LeafNode(t.myLeaf)] = node{
		pub:       leafPub,
		priv:      leafPriv,
		secret:    leafSecret,
		installer: t.myLeaf,
	}

	commit := domain.Commit{
		CommitterLeafPos: t.myLeaf,
		NewLeafPublicKey: leafPub,
		Epoch:            t.epoch + 1,
	}

	prev := leafSecret
	for i, x := range path {
		secret := crypto.HKDF(prev, crypto.InfoTreeNode, crypto.KeySize)
		pub, priv, err := crypto.GenerateKEMKeyPair()
		if err != nil {
			return nil, err
		}
		t.nodes[x].blank()
		t.nodes[x] = node{pub: pub, priv: priv, secret: secret, installer: t.myLeaf}

		entry := domain.CommitPathEntry{NodeIndex: x, NewPublicKey: pub}
		if targets[i] >= 0 {
			entry.KEMCiphertext, entry.AEADCiphertext, err = wrapSecret(t.nodes[targets[i]].pub, secret)
			if err != nil {
				return nil, err
			}
		}
		commit.Path = append(commit.Path, entry)
		prev = secret
	}

	t.epoch++

	return &CommitResult{
		Commit:    commit,
		Uncovered: t.uncovered(path, cop, targets),
	}, nil
}

// uncovered lists the occupied leaves (other than ours) whose member
// cannot decapsulate any path entry: the entry serving their subtree was
// either empty or addressed to a key some other member holds.
func (t *Tree) uncovered(path, cop, targets []int) []int {
	var out []int
	for q := 0; q < t.numLeaves; q++ {
		if q == t.myLeaf || t.nodes[LeafNode(q)].pub == nil {
			continue
		}
		covered := false
		for i := range path {
			if !SubtreeContains(cop[i], q, t.numLeaves) {
				continue
			}
			covered = targets[i] >= 0 && t.nodes[targets[i]].installer == q
			break
		}
		if !covered {
			out = append(out, q)
		}
	}
	return out
}

// ProcessCommit applies another member's commit and returns the new root
// secret. A commit whose epoch is not exactly current+1 is rejected with
// ErrStaleCommit; a commit whose encapsulations this member cannot open
// fails with ErrNoDecapPath, after which the committer's targeted Welcome
// rebuilds the local view.
func (t *Tree) ProcessCommit(c domain.Commit) ([]byte, error) {
	if c.Epoch != t.epoch+1 {
		return nil, domain.ErrStaleCommit
	}
	if c.CommitterLeafPos < 0 || c.CommitterLeafPos >= t.numLeaves || c.CommitterLeafPos == t.myLeaf {
		return nil, domain.ErrRekeyFailed
	}
	path := DirectPath(c.CommitterLeafPos, t.numLeaves)
	cop := Copath(c.CommitterLeafPos, t.numLeaves)
	if len(c.Path) != len(path) {
		return nil, domain.ErrRekeyFailed
	}
	for i, entry := range c.Path {
		if entry.NodeIndex != path[i] {
			return nil, domain.ErrRekeyFailed
		}
	}

	// Locate and open our entry against the pre-commit tree.
	entryIdx := -1
	var entrySecret []byte
	for i := range path {
		if !SubtreeContains(cop[i], t.myLeaf, t.numLeaves) {
			continue
		}
		entry := c.Path[i]
		if len(entry.KEMCiphertext) == 0 {
			break
		}
		target := t.resolve(cop[i])
		if target < 0 || t.nodes[target].priv == nil {
			break
		}
		secret, err := unwrapSecret(t.nodes[target].priv, entry.KEMCiphertext, entry.AEADCiphertext)
		if err != nil {
			return nil, err
		}
		entryIdx, entrySecret = i, secret
		break
	}

	// Install the committer's new public keys regardless: even a member
	// awaiting a Welcome must stop trusting the rotated keys.
	t.clearSecrets()
	committerLeaf := LeafNode(c.CommitterLeafPos)
	t.nodes[committerLeaf].blank()
	t.nodes[committerLeaf] = node{pub: c.NewLeafPublicKey, installer: c.CommitterLeafPos}
	for i, x := range path {
		t.nodes[x].blank()
		t.nodes[x] = node{pub: c.Path[i].NewPublicKey, installer: c.CommitterLeafPos}
	}
	t.epoch++

	if entryIdx < 0 {
		return nil, domain.ErrNoDecapPath
	}

	// Derive upward from the entry point to the root.
	secret := entrySecret
	t.nodes[path[entryIdx]].secret = secret
	for j := entryIdx + 1; j < len(path); j++ {
		secret = crypto.HKDF(secret, crypto.InfoTreeNode, crypto.KeySize)
		t.nodes[path[j]].secret = secret
	}
	return t.RootSecret(), nil
}
