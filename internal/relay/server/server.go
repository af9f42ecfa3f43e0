package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"parrhesia/internal/domain"
)

// MaxPeers is the room size limit enforced by the relay.
const MaxPeers = 16

// DefaultTTL is how long a room lives before the relay expires it.
const DefaultTTL = 24 * time.Hour

// Server routes frames for ephemeral rooms.
type Server struct {
	log *logrus.Entry
	ttl time.Duration

	mu    sync.Mutex
	rooms map[domain.RoomID]*room
}

// New returns a relay with the given room lifetime; ttl <= 0 means
// DefaultTTL.
func New(ttl time.Duration, log *logrus.Entry) *Server {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Server{
		log:   log,
		ttl:   ttl,
		rooms: make(map[domain.RoomID]*room),
	}
}

// Handler returns the relay's HTTP mux: the rooms REST surface and the
// per-room websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms", s.handleCreateRoom)
	mux.HandleFunc("/api/rooms/", s.handleRoomLookup)
	mux.Handle("/ws/", websocket.Handler(s.handleSocket))
	return mux
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	id := domain.RoomID(hex.EncodeToString(buf[:]))

	rm := &room{id: id, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Lock()
	s.rooms[id] = rm
	s.mu.Unlock()

	time.AfterFunc(s.ttl, func() { s.expireRoom(id) })

	s.log.WithField("room", id).Info("room created")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]domain.RoomID{"room_id": id})
}

func (s *Server) handleRoomLookup(w http.ResponseWriter, r *http.Request) {
	id := domain.RoomID(strings.TrimPrefix(r.URL.Path, "/api/rooms/"))
	s.mu.Lock()
	_, ok := s.rooms[id]
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"exists": ok})
}

func (s *Server) lookupRoom(id domain.RoomID) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

func (s *Server) expireRoom(id domain.RoomID) {
	s.mu.Lock()
	rm := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if rm == nil {
		return
	}
	rm.mu.Lock()
	rm.expired = true
	rm.mu.Unlock()
	rm.broadcast(domain.Frame{Type: domain.FrameRoomExpired}, "")
	for _, p := range rm.snapshot() {
		_ = p.ws.Close()
	}
	s.log.WithField("room", id).Info("room expired")
}

// handleSocket serves one participant's frame stream.
func (s *Server) handleSocket(ws *websocket.Conn) {
	id := domain.RoomID(strings.TrimPrefix(ws.Request().URL.Path, "/ws/"))
	rm := s.lookupRoom(id)
	if rm == nil {
		_ = websocket.JSON.Send(ws, domain.Frame{Type: domain.FrameRoomExpired})
		_ = ws.Close()
		return
	}
	peer, err := rm.addPeer(ws, MaxPeers)
	if err != nil {
		typ := domain.FrameRoomFull
		if err == domain.ErrRoomExpired {
			typ = domain.FrameRoomExpired
		}
		_ = websocket.JSON.Send(ws, domain.Frame{Type: typ})
		_ = ws.Close()
		return
	}
	log := s.log.WithFields(logrus.Fields{"room": id, "peer": peer.id})
	log.Info("peer connected")

	_ = websocket.JSON.Send(ws, domain.Frame{
		Type:      domain.FrameWelcome,
		PeerID:    peer.id,
		IsCreator: peer.id == rm.creator,
		CreatorID: rm.creator,
	})

	for {
		var f domain.Frame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			break
		}
		s.route(rm, peer, f)
	}

	rm.removePeer(peer.id)
	if peer.announced {
		rm.broadcast(domain.Frame{Type: domain.FramePeerLeft, PeerID: peer.id}, peer.id)
	}
	log.Info("peer disconnected")
	_ = ws.Close()
}

// route applies the authorship rules: the relay authors peer_key and
// peer_joined from announcements, stamps the sender on relayed frames,
// and forwards everything else untouched.
func (s *Server) route(rm *room, peer *peerConn, f domain.Frame) {
	switch f.Type {
	case domain.FrameKeyAnnounce:
		rm.mu.Lock()
		peer.announced = true
		peer.publicKey = f.PublicKey
		peer.pqPublicKey = f.PQPublicKey
		peer.sig = f.Sig
		rm.mu.Unlock()

		// Replay existing members to the announcer, in join order.
		for _, other := range rm.snapshot() {
			if other.id == peer.id || !other.announced {
				continue
			}
			_ = websocket.JSON.Send(peer.ws, domain.Frame{
				Type:        domain.FramePeerKey,
				PeerID:      other.id,
				PublicKey:   other.publicKey,
				PQPublicKey: other.pqPublicKey,
				Sig:         other.sig,
			})
		}
		rm.broadcast(domain.Frame{
			Type:        domain.FramePeerJoined,
			PeerID:      peer.id,
			PublicKey:   f.PublicKey,
			PQPublicKey: f.PQPublicKey,
			Sig:         f.Sig,
		}, peer.id)

	case domain.FrameTreeCommit:
		f.PeerID = peer.id
		rm.broadcast(f, peer.id)

	case domain.FrameTreeWelcome:
		f.PeerID = peer.id
		rm.sendTo(f.TargetPeerID, f)

	case domain.FrameMessage:
		f.PeerID = peer.id
		rm.broadcast(f, peer.id)

	default:
		s.log.WithField("type", f.Type).Debug("unroutable frame dropped")
	}
}
