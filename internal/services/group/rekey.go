package group

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"parrhesia/internal/domain"
	"parrhesia/internal/protocol/treekem"
)

// InitiateRekey rotates the local path and returns the commit broadcast
// plus one targeted welcome per member the commit's encapsulations could
// not reach.
func (m *Manager) InitiateRekey() (commit domain.Frame, welcomes []domain.Frame, err error) {
	if m.tree == nil {
		return domain.Frame{}, nil, domain.ErrRekeyFailed
	}
	res, err := m.tree.GenerateCommit()
	if err != nil {
		return domain.Frame{}, nil, domain.ErrRekeyFailed
	}
	key, err := m.tree.GroupKey()
	if err != nil {
		return domain.Frame{}, nil, domain.ErrRekeyFailed
	}
	m.installGroupKey(key)

	raw, err := json.Marshal(res.Commit)
	if err != nil {
		return domain.Frame{}, nil, err
	}
	commit = domain.Frame{Type: domain.FrameTreeCommit, TreeCommit: raw}

	for _, pos := range res.Uncovered {
		id, ok := m.peerAtLeaf(pos)
		if !ok {
			continue
		}
		wf, err := m.welcomeFrame(id, pos, m.tree.LeafPublicKey(pos))
		if err != nil {
			return domain.Frame{}, nil, err
		}
		welcomes = append(welcomes, wf)
	}
	m.log.WithFields(logrus.Fields{"epoch": m.tree.Epoch(), "welcomes": len(welcomes)}).
		Info("rekey committed")
	return commit, welcomes, nil
}

// WelcomeFor builds the targeted welcome for a freshly admitted peer,
// encapsulating to its announced KEM key.
func (m *Manager) WelcomeFor(id domain.PeerID) (domain.Frame, error) {
	rec, ok := m.peers[id]
	if !ok || rec.LeafPos < 0 || m.tree == nil {
		return domain.Frame{}, domain.ErrUnknownPeer
	}
	return m.welcomeFrame(id, rec.LeafPos, rec.KEMPub)
}

func (m *Manager) welcomeFrame(id domain.PeerID, pos int, kemPub []byte) (domain.Frame, error) {
	w, err := m.tree.GenerateWelcome(pos, kemPub)
	if err != nil {
		return domain.Frame{}, err
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{
		Type:         domain.FrameTreeWelcome,
		TargetPeerID: id,
		TreeWelcome:  raw,
	}, nil
}

// ReceiveCommit applies a peer's commit: rotate the tree, retire the old
// chains into the grace window and seed the new epoch's chains. A commit
// this member cannot decrypt leaves it awaiting the committer's welcome.
func (m *Manager) ReceiveCommit(from domain.PeerID, raw json.RawMessage) error {
	if m.tree == nil {
		// No tree yet: we are a joiner and our state arrives in the
		// targeted welcome that follows this commit.
		return nil
	}
	var c domain.Commit
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.ErrRekeyFailed
	}
	if rec, ok := m.peers[from]; ok {
		if rec.LeafPos < 0 {
			rec.LeafPos = c.CommitterLeafPos
		} else if rec.LeafPos != c.CommitterLeafPos {
			return domain.ErrRekeyFailed
		}
	}
	_, err := m.tree.ProcessCommit(c)
	switch {
	case errors.Is(err, domain.ErrNoDecapPath):
		m.retireChains()
		m.awaitingWelcome = true
		m.log.WithField("epoch", m.tree.Epoch()).Debug("commit not addressed to us, awaiting welcome")
		return nil
	case err != nil:
		return err
	}
	key, err := m.tree.GroupKey()
	if err != nil {
		return domain.ErrRekeyFailed
	}
	m.installGroupKey(key)
	m.log.WithField("epoch", m.tree.Epoch()).Info("commit applied")
	return nil
}

// ReceiveWelcome installs a targeted welcome, replacing the local tree
// view. Joiners use their announced session KEM key; an existing member
// reached over the welcome path keeps its current leaf key pair.
func (m *Manager) ReceiveWelcome(raw json.RawMessage) error {
	var w domain.Welcome
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.ErrRekeyFailed
	}
	kp := m.kem
	if m.tree != nil {
		if cur := m.tree.LeafKeyPair(); cur.Private != nil && m.tree.MyLeaf() == w.MyLeafPos {
			kp = cur
		}
	}
	t, err := treekem.FromWelcome(w, kp)
	if err != nil {
		return err
	}
	if m.tree != nil {
		m.tree.Wipe()
	}
	m.tree = t
	m.reconcileLeafPositions()
	key, err := m.tree.GroupKey()
	if err != nil {
		return domain.ErrRekeyFailed
	}
	m.installGroupKey(key)
	m.log.WithFields(logrus.Fields{"epoch": m.tree.Epoch(), "leaf": m.tree.MyLeaf()}).
		Info("welcome installed")
	return nil
}

// reconcileLeafPositions maps registry peers onto occupied leaves.
// Leaves are assigned monotonically and never reused, so peers in join
// order occupy the occupied leaf slots in ascending order.
func (m *Manager) reconcileLeafPositions() {
	assigned := map[int]bool{m.tree.MyLeaf(): true}
	for _, rec := range m.peers {
		if rec.LeafPos >= 0 {
			assigned[rec.LeafPos] = true
		}
	}
	free := make([]int, 0)
	for _, pos := range m.tree.OccupiedLeaves() {
		if !assigned[pos] {
			free = append(free, pos)
		}
	}
	i := 0
	for _, id := range m.joinOrder {
		rec := m.peers[id]
		if rec == nil || rec.LeafPos >= 0 {
			continue
		}
		if i < len(free) {
			rec.LeafPos = free[i]
			i++
		}
	}
}
