package group

import (
	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/protocol/chain"
	"parrhesia/internal/util/memzero"
)

// Encrypt ratchets the self chain once and seals plaintext into a
// message frame tagged with the current epoch and counter.
func (m *Manager) Encrypt(plaintext []byte) (domain.Frame, error) {
	if m.tree == nil || m.sendChain == nil {
		return domain.Frame{}, domain.ErrRekeyFailed
	}
	key, counter := m.sendChain.Next()
	sealed, err := crypto.Seal(key, plaintext)
	memzero.Zero(key)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{
		Type:    domain.FrameMessage,
		Payload: crypto.B64(sealed),
		Epoch:   m.tree.Epoch(),
		Counter: counter,
	}, nil
}

// Decrypt opens a message from peer. Current-epoch messages use the live
// chains; messages tagged one epoch back are accepted against the
// retired chains while the grace window is open.
func (m *Manager) Decrypt(peer domain.PeerID, payload string, epoch, counter uint64) ([]byte, error) {
	blob, err := crypto.UnB64(payload)
	if err != nil {
		return nil, domain.ErrAeadAuthFailure
	}
	set, err := m.chainsFor(epoch)
	if err != nil {
		return nil, err
	}
	c, ok := set.Get(peer)
	if !ok {
		return nil, domain.ErrUnknownPeer
	}
	return c.Open(counter, func(key []byte) ([]byte, error) {
		return crypto.Open(key, blob)
	})
}

func (m *Manager) chainsFor(epoch uint64) (*chain.Set, error) {
	if m.tree != nil && m.current != nil && epoch == m.tree.Epoch() {
		return m.current, nil
	}
	if m.previous != nil && epoch == m.previousEpoch {
		if m.now().After(m.previousDeadline) {
			m.DropPreviousChains()
			return nil, domain.ErrEpochOutOfWindow
		}
		return m.previous, nil
	}
	return nil, domain.ErrEpochOutOfWindow
}
