package group_test

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/services/group"
	"parrhesia/internal/store"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

func newManager(t *testing.T, id domain.PeerID) *group.Manager {
	t.Helper()
	pub, priv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	trust := store.NewTofuStore(t.TempDir())
	m, err := group.New("room1", domain.SigningKeyPair{Public: pub, Private: priv}, trust, testLog())
	require.NoError(t, err)
	m.SetSelfID(id)
	return m
}

// announceParts decodes a key_announce frame back into raw bytes.
func announceParts(t *testing.T, m *group.Manager) (signingPub, kemPub, sig []byte) {
	t.Helper()
	f, err := m.Announce()
	require.NoError(t, err)
	signingPub, err = crypto.UnB64(f.PublicKey)
	require.NoError(t, err)
	kemPub, err = crypto.UnB64(f.PQPublicKey)
	require.NoError(t, err)
	sig, err = crypto.UnB64(f.Sig)
	require.NoError(t, err)
	return signingPub, kemPub, sig
}

// admit wires m to accept peer's announcement.
func admit(t *testing.T, m *group.Manager, peer *group.Manager) {
	t.Helper()
	signingPub, kemPub, sig := announceParts(t, peer)
	require.NoError(t, m.AddPeer(peer.SelfID(), signingPub, kemPub, sig))
}

func TestScenario_CreatorEncryptsAlone(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())

	f, err := a.Encrypt([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), f.Counter)
	require.Equal(t, uint64(0), f.Epoch)

	pt, err := a.Decrypt("p1", f.Payload, f.Epoch, f.Counter)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))

	f2, err := a.Encrypt([]byte("again"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), f2.Counter)
}

func TestAddPeer_ValidationLadder(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	signingPub, kemPub, sig := announceParts(t, b)

	// Wrong signing key length.
	err := a.AddPeer("p2", signingPub[:100], kemPub, sig)
	require.ErrorIs(t, err, domain.ErrInvalidKey)

	// Wrong KEM key length.
	err = a.AddPeer("p2", signingPub, kemPub[:100], sig)
	require.ErrorIs(t, err, domain.ErrInvalidKey)

	// Signature under the wrong identity key.
	x := newManager(t, "px")
	xSigningPub, _, _ := announceParts(t, x)
	err = a.AddPeer("p2", xSigningPub, kemPub, sig)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	// Nothing was admitted along the way.
	require.Empty(t, a.Peers())

	// The genuine announcement passes.
	require.NoError(t, a.AddPeer("p2", signingPub, kemPub, sig))
	require.Len(t, a.Peers(), 1)
}

func TestAddPeer_SignatureOverWrongMessage(t *testing.T) {
	// peer_joined forgery: the signature verifies under the announced
	// identity key but covers the signing key instead of the KEM key.
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())

	signingPub, signingPriv, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	kemPub, _, err := crypto.GenerateKEMKeyPair()
	require.NoError(t, err)

	sig, err := crypto.Sign(signingPriv, signingPub)
	require.NoError(t, err)

	err = a.AddPeer("p2", signingPub, kemPub, sig)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	require.Empty(t, a.Peers())
}

func TestAddPeer_TofuConflict(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	signingPub, kemPub, sig := announceParts(t, b)

	require.NoError(t, a.AddPeer("p2", signingPub, kemPub, sig))
	require.NoError(t, a.RemovePeer("p2"))

	// The same fingerprint reappearing under a different peer identity
	// is a conflict, and the registry stays clean.
	err := a.AddPeer("p9", signingPub, kemPub, sig)
	require.ErrorIs(t, err, domain.ErrTofuConflict)
	require.Empty(t, a.Peers())
}

func TestElection_AddAlwaysPicksExistingMember(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	admit(t, a, b)

	// Only the creator was present before the join.
	require.True(t, a.ShouldInitiateRekey("add", "p2"))
}

func TestElection_ExactlyOneInitiator(t *testing.T) {
	a := newManager(t, "p1")
	b := newManager(t, "p2")
	admit(t, a, b)
	admit(t, b, a)

	aWins := a.ShouldInitiateRekey("interval", "")
	bWins := b.ShouldInitiateRekey("interval", "")
	require.NotEqual(t, aWins, bWins, "election must yield exactly one initiator")

	winner := a.Fingerprint()
	if b.Fingerprint() < winner {
		winner = b.Fingerprint()
	}
	if aWins {
		require.Equal(t, winner, a.Fingerprint())
	} else {
		require.Equal(t, winner, b.Fingerprint())
	}
}

// joinPeer runs the wire flow that admits joiner into a's group and
// returns after both sides converged.
func joinPeer(t *testing.T, a, joiner *group.Manager, others ...*group.Manager) {
	t.Helper()
	admit(t, a, joiner)
	for _, o := range others {
		admit(t, o, joiner)
	}
	admit(t, joiner, a)
	for _, o := range others {
		admit(t, joiner, o)
	}

	commit, welcomes, err := a.InitiateRekey()
	require.NoError(t, err)
	for _, o := range others {
		require.NoError(t, o.ReceiveCommit(a.SelfID(), commit.TreeCommit))
	}
	require.NoError(t, joiner.ReceiveCommit(a.SelfID(), commit.TreeCommit))

	wf, err := a.WelcomeFor(joiner.SelfID())
	require.NoError(t, err)
	require.NoError(t, joiner.ReceiveWelcome(wf.TreeWelcome))

	// Members the commit could not reach get their welcome too.
	for _, w := range welcomes {
		for _, o := range others {
			if o.SelfID() == w.TargetPeerID {
				require.NoError(t, o.ReceiveWelcome(w.TreeWelcome))
			}
		}
	}
}

func TestScenario_TwoPeerJoinAndChat(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")

	joinPeer(t, a, b)
	require.Equal(t, uint64(1), a.Epoch())
	require.Equal(t, uint64(1), b.Epoch())

	f, err := a.Encrypt([]byte("hi B"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.Epoch)
	require.Equal(t, uint64(0), f.Counter)
	pt, err := b.Decrypt("p1", f.Payload, f.Epoch, f.Counter)
	require.NoError(t, err)
	require.Equal(t, "hi B", string(pt))

	f, err = b.Encrypt([]byte("hi A"))
	require.NoError(t, err)
	pt, err = a.Decrypt("p2", f.Payload, f.Epoch, f.Counter)
	require.NoError(t, err)
	require.Equal(t, "hi A", string(pt))
}

func TestScenario_ThreePeerJoinThenRemove(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	c := newManager(t, "p3")

	joinPeer(t, a, b)
	joinPeer(t, a, c, b)
	require.Equal(t, uint64(2), a.Epoch())
	require.Equal(t, uint64(2), b.Epoch())
	require.Equal(t, uint64(2), c.Epoch())

	// An epoch-2 message from A, captured for the replay below.
	captured, err := a.Encrypt([]byte("epoch two"))
	require.NoError(t, err)
	pt, err := c.Decrypt("p1", captured.Payload, captured.Epoch, captured.Counter)
	require.NoError(t, err)
	require.Equal(t, "epoch two", string(pt))

	// B disconnects; A commits the removal.
	require.NoError(t, a.RemovePeer("p2"))
	require.NoError(t, c.RemovePeer("p2"))
	commit, welcomes, err := a.InitiateRekey()
	require.NoError(t, err)
	require.Empty(t, welcomes)
	require.NoError(t, c.ReceiveCommit("p1", commit.TreeCommit))
	require.Equal(t, uint64(3), c.Epoch())

	// Replaying the captured ciphertext relabeled with the new epoch
	// hits a freshly seeded chain and fails authentication.
	_, err = c.Decrypt("p1", captured.Payload, 3, 0)
	require.ErrorIs(t, err, domain.ErrAeadAuthFailure)

	// The removed member has no chain at all anymore.
	f, err := a.Encrypt([]byte("post-removal"))
	require.NoError(t, err)
	pt, err = c.Decrypt("p1", f.Payload, f.Epoch, f.Counter)
	require.NoError(t, err)
	require.Equal(t, "post-removal", string(pt))
}

func TestGraceWindow_PreviousEpochMessages(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	a := newManager(t, "p1")
	a.SetClock(clock)
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	b.SetClock(clock)
	joinPeer(t, a, b)

	// B sends at epoch 1 just before A rekeys.
	inFlight, err := b.Encrypt([]byte("late"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), inFlight.Epoch)

	_, _, err = a.InitiateRekey()
	require.NoError(t, err)
	require.Equal(t, uint64(2), a.Epoch())

	// Within the grace window the previous chains still serve it.
	pt, err := a.Decrypt("p2", inFlight.Payload, inFlight.Epoch, inFlight.Counter)
	require.NoError(t, err)
	require.Equal(t, "late", string(pt))

	// Past the window the epoch is closed.
	late2, err := b.Encrypt([]byte("too late"))
	require.NoError(t, err)
	now = now.Add(group.GraceWindow + time.Second)
	_, err = a.Decrypt("p2", late2.Payload, late2.Epoch, late2.Counter)
	require.ErrorIs(t, err, domain.ErrEpochOutOfWindow)

	// Anything older than one epoch is rejected outright.
	_, err = a.Decrypt("p2", inFlight.Payload, 0, 0)
	require.ErrorIs(t, err, domain.ErrEpochOutOfWindow)
}

func TestColors_DeterministicAndDistinct(t *testing.T) {
	a := newManager(t, "p1")
	require.NoError(t, a.CreateTree())
	b := newManager(t, "p2")
	c := newManager(t, "p3")
	admit(t, a, b)
	admit(t, a, c)

	seen := map[string]bool{a.SelfColor(): true}
	for _, rec := range a.Peers() {
		require.NotEmpty(t, rec.Color)
		require.False(t, seen[rec.Color], "color %s assigned twice", rec.Color)
		seen[rec.Color] = true
	}
}
