package treekem

import (
	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
)

// GenerateWelcome snapshots the tree for the member at targetLeafPos and
// encapsulates the lowest secret on that member's direct path to
// targetKEMPub. The committer calls this right after its own commit, for
// joiners and for members its commit could not reach.
func (t *Tree) GenerateWelcome(targetLeafPos int, targetKEMPub []byte) (*domain.Welcome, error) {
	if targetLeafPos < 0 || targetLeafPos >= t.numLeaves {
		return nil, domain.ErrUnknownPeer
	}
	pubs := make([][]byte, len(t.nodes))
	for i := range t.nodes {
		if t.nodes[i].pub != nil {
			pubs[i] = append([]byte(nil), t.nodes[i].pub...)
		}
	}
	pubs[LeafNode(targetLeafPos)] = append([]byte(nil), targetKEMPub...)

	w := &domain.Welcome{
		TreePublicKeys: pubs,
		NumLeaves:      t.numLeaves,
		MyLeafPos:      targetLeafPos,
		Epoch:          t.epoch,
	}

	// One entry suffices: the lowest direct-path node whose secret we
	// hold lets the target derive everything above it.
	for _, x := range DirectPath(targetLeafPos, t.numLeaves) {
		if t.nodes[x].secret == nil {
			continue
		}
		kemCT, aeadCT, err := wrapSecret(targetKEMPub, t.nodes[x].secret)
		if err != nil {
			return nil, err
		}
		w.PathSecrets = append(w.PathSecrets, domain.WelcomePathSecret{
			NodeIndex:      x,
			KEMCiphertext:  kemCT,
			AEADCiphertext: aeadCT,
		})
		break
	}
	if len(w.PathSecrets) == 0 {
		return nil, domain.ErrRekeyFailed
	}
	return w, nil
}

// FromWelcome builds a fresh tree from a targeted Welcome: installs the
// advertised public keys and the local key pair, opens the delivered path
// secret, and derives every higher path secret up to the root.
func FromWelcome(w domain.Welcome, kp domain.KEMKeyPair) (*Tree, error) {
	if w.NumLeaves < 1 || w.NumLeaves > MaxLeaves ||
		len(w.TreePublicKeys) != NodeWidth(w.NumLeaves) ||
		w.MyLeafPos < 0 || w.MyLeafPos >= w.NumLeaves ||
		len(w.PathSecrets) == 0 {
		return nil, domain.ErrRekeyFailed
	}

	t := &Tree{
		nodes:     make([]node, NodeWidth(w.NumLeaves)),
		numLeaves: w.NumLeaves,
		myLeaf:    w.MyLeafPos,
		epoch:     w.Epoch,
	}
	for i, pub := range w.TreePublicKeys {
		t.nodes[i].installer = -1
		if pub != nil {
			t.nodes[i].pub = append([]byte(nil), pub...)
			if IsLeaf(i) {
				t.nodes[i].installer = LeafIndex(i)
			}
		}
	}
	me := LeafNode(w.MyLeafPos)
	t.nodes[me].pub = append([]byte(nil), kp.Public...)
	t.nodes[me].priv = append([]byte(nil), kp.Private...)
	t.nodes[me].installer = w.MyLeafPos

	entry := w.PathSecrets[0]
	path := DirectPath(w.MyLeafPos, w.NumLeaves)
	entryIdx := -1
	for i, x := range path {
		if x == entry.NodeIndex {
			entryIdx = i
			break
		}
	}
	if entryIdx < 0 {
		return nil, domain.ErrRekeyFailed
	}
	secret, err := unwrapSecret(kp.Private, entry.KEMCiphertext, entry.AEADCiphertext)
	if err != nil {
		return nil, err
	}
	t.nodes[path[entryIdx]].secret = secret
	for j := entryIdx + 1; j < len(path); j++ {
		secret = crypto.HKDF(secret, crypto.InfoTreeNode, crypto.KeySize)
		t.nodes[path[j]].secret = secret
	}
	return t, nil
}
