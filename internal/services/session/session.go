package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"parrhesia/internal/crypto"
	"parrhesia/internal/domain"
	"parrhesia/internal/services/group"
)

// RekeyInterval is the number of locally sent messages between automatic
// rekeys.
const RekeyInterval = 50

// Events is how the session surfaces activity to the shell.
type Events interface {
	MessageReceived(peer domain.PeerID, color string, plaintext []byte)
	PeerJoined(peer domain.PeerID, fingerprint domain.Fingerprint, color string)
	PeerLeft(peer domain.PeerID)
	PeerRejected(peer domain.PeerID, reason error)
	RoomClosed(reason error)
}

// Session owns one room connection.
type Session struct {
	log       *logrus.Entry
	mgr       *group.Manager
	transport domain.Transport
	history   domain.HistoryStore
	events    Events
	room      domain.RoomID

	messagesSinceRekey int

	sendCh  chan []byte
	graceCh chan struct{}
	frameCh chan domain.Frame
	errCh   chan error
}

// New wires a session. history may be nil to disable local retention.
func New(room domain.RoomID, mgr *group.Manager, transport domain.Transport, history domain.HistoryStore, events Events, log *logrus.Entry) *Session {
	return &Session{
		log:       log,
		mgr:       mgr,
		transport: transport,
		history:   history,
		events:    events,
		room:      room,
		sendCh:    make(chan []byte, 16),
		graceCh:   make(chan struct{}, 1),
		frameCh:   make(chan domain.Frame),
		errCh:     make(chan error, 1),
	}
}

// Send queues plaintext for encryption on the dispatcher. It is the only
// method safe to call from outside the Run goroutine.
func (s *Session) Send(ctx context.Context, plaintext []byte) error {
	select {
	case s.sendCh <- plaintext:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run receives and dispatches until the context ends, the room closes or
// the transport fails. Key material is zeroized on the way out.
func (s *Session) Run(ctx context.Context) error {
	defer s.mgr.Teardown()
	defer s.transport.Close()

	go s.readLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errCh:
			return err
		case <-s.graceCh:
			s.mgr.DropPreviousChains()
		case pt := <-s.sendCh:
			if err := s.sendMessage(ctx, pt); err != nil {
				return err
			}
		case f := <-s.frameCh:
			done, err := s.dispatch(ctx, f)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		f, err := s.transport.Receive(ctx)
		if err != nil {
			select {
			case s.errCh <- err:
			case <-ctx.Done():
			}
			return
		}
		select {
		case s.frameCh <- f:
		case <-ctx.Done():
			return
		}
	}
}

// dispatch handles one server frame. The returned bool reports a clean
// room shutdown.
func (s *Session) dispatch(ctx context.Context, f domain.Frame) (bool, error) {
	switch f.Type {
	case domain.FrameWelcome:
		return false, s.handleWelcome(ctx, f)
	case domain.FramePeerKey, domain.FramePeerJoined:
		return false, s.handlePeerKey(ctx, f)
	case domain.FramePeerLeft:
		return false, s.handlePeerLeft(ctx, f)
	case domain.FrameTreeCommit:
		s.handleCommit(f)
		return false, nil
	case domain.FrameTreeWelcome:
		s.handleTreeWelcome(f)
		return false, nil
	case domain.FrameMessage:
		s.handleMessage(f)
		return false, nil
	case domain.FrameRoomExpired:
		s.events.RoomClosed(domain.ErrRoomExpired)
		return true, nil
	case domain.FrameRoomFull:
		s.events.RoomClosed(domain.ErrRoomFull)
		return true, nil
	default:
		s.log.WithField("type", f.Type).Debug("unknown frame dropped")
		return false, nil
	}
}

func (s *Session) handleWelcome(ctx context.Context, f domain.Frame) error {
	s.mgr.SetSelfID(f.PeerID)
	if f.IsCreator {
		if err := s.mgr.CreateTree(); err != nil {
			return err
		}
	}
	announce, err := s.mgr.Announce()
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, announce)
}

func (s *Session) handlePeerKey(ctx context.Context, f domain.Frame) error {
	signingPub, err1 := crypto.UnB64(f.PublicKey)
	kemPub, err2 := crypto.UnB64(f.PQPublicKey)
	sig, err3 := crypto.UnB64(f.Sig)
	if err1 != nil || err2 != nil || err3 != nil {
		s.events.PeerRejected(f.PeerID, domain.ErrInvalidKey)
		return nil
	}
	if err := s.mgr.AddPeer(f.PeerID, signingPub, kemPub, sig); err != nil {
		s.log.WithField("peer", f.PeerID).WithError(err).Warn("peer rejected")
		s.events.PeerRejected(f.PeerID, err)
		return nil
	}
	rec, _ := s.mgr.Peer(f.PeerID)
	s.events.PeerJoined(f.PeerID, rec.Fingerprint, rec.Color)

	if s.mgr.HasTree() && s.mgr.ShouldInitiateRekey("add", f.PeerID) {
		if err := s.rekey(ctx); err != nil {
			return err
		}
		welcome, err := s.mgr.WelcomeFor(f.PeerID)
		if err != nil {
			return err
		}
		if err := s.transport.Send(ctx, welcome); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handlePeerLeft(ctx context.Context, f domain.Frame) error {
	if err := s.mgr.RemovePeer(f.PeerID); err != nil {
		s.log.WithField("peer", f.PeerID).WithError(err).Debug("peer_left for unknown peer")
		return nil
	}
	s.events.PeerLeft(f.PeerID)
	if len(s.mgr.Peers()) > 0 && s.mgr.ShouldInitiateRekey("remove", "") {
		return s.rekey(ctx)
	}
	return nil
}

func (s *Session) handleCommit(f domain.Frame) {
	if err := s.mgr.ReceiveCommit(f.PeerID, f.TreeCommit); err != nil {
		s.log.WithField("peer", f.PeerID).WithError(err).Warn("commit dropped")
		return
	}
	s.messagesSinceRekey = 0
	s.scheduleGraceDrop()
}

func (s *Session) handleTreeWelcome(f domain.Frame) {
	if f.TargetPeerID != "" && f.TargetPeerID != s.mgr.SelfID() {
		return
	}
	if err := s.mgr.ReceiveWelcome(f.TreeWelcome); err != nil {
		s.log.WithError(err).Warn("welcome dropped")
		return
	}
	s.messagesSinceRekey = 0
	s.scheduleGraceDrop()
}

func (s *Session) handleMessage(f domain.Frame) {
	pt, err := s.mgr.Decrypt(f.PeerID, f.Payload, f.Epoch, f.Counter)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOutOfOrder),
			errors.Is(err, domain.ErrEpochOutOfWindow):
			s.log.WithField("peer", f.PeerID).WithError(err).Debug("message dropped")
		default:
			s.log.WithField("peer", f.PeerID).WithError(err).Warn("message dropped")
		}
		return
	}
	color := ""
	if rec, ok := s.mgr.Peer(f.PeerID); ok {
		color = rec.Color
	}
	s.appendHistory(f.PeerID, "in", pt)
	s.events.MessageReceived(f.PeerID, color, pt)
}

func (s *Session) sendMessage(ctx context.Context, pt []byte) error {
	frame, err := s.mgr.Encrypt(pt)
	if err != nil {
		s.log.WithError(err).Warn("cannot encrypt yet, message dropped")
		return nil
	}
	if err := s.transport.Send(ctx, frame); err != nil {
		return err
	}
	s.appendHistory(s.mgr.SelfID(), "out", pt)
	s.messagesSinceRekey++
	if s.messagesSinceRekey >= RekeyInterval &&
		len(s.mgr.Peers()) > 0 &&
		s.mgr.ShouldInitiateRekey("interval", "") {
		return s.rekey(ctx)
	}
	return nil
}

// rekey emits a commit plus any targeted welcomes and resets the
// interval counter.
func (s *Session) rekey(ctx context.Context) error {
	commit, welcomes, err := s.mgr.InitiateRekey()
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, commit); err != nil {
		return err
	}
	for _, w := range welcomes {
		if err := s.transport.Send(ctx, w); err != nil {
			return err
		}
	}
	s.messagesSinceRekey = 0
	s.scheduleGraceDrop()
	return nil
}

// scheduleGraceDrop arms the one-shot drop of the previous epoch's
// chains. The tick is delivered to the dispatcher so chain state stays
// single-threaded.
func (s *Session) scheduleGraceDrop() {
	time.AfterFunc(group.GraceWindow, func() {
		select {
		case s.graceCh <- struct{}{}:
		default:
		}
	})
}

func (s *Session) appendHistory(peer domain.PeerID, direction string, pt []byte) {
	if s.history == nil {
		return
	}
	rec := domain.HistoryRecord{
		PeerID:    peer,
		Direction: direction,
		Plaintext: string(pt),
		Timestamp: time.Now().Unix(),
	}
	if err := s.history.Append(s.room, rec); err != nil {
		s.log.WithError(err).Warn("history append failed")
	}
}
