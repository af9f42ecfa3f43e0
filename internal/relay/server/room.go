package server

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"parrhesia/internal/domain"
)

// peerConn is one connected participant.
type peerConn struct {
	id        domain.PeerID
	ws        *websocket.Conn
	announced bool

	// last announcement, replayed to later joiners
	publicKey   string
	pqPublicKey string
	sig         string
}

// room is one live room: members in join order plus the expiry timer.
type room struct {
	mu        sync.Mutex
	id        domain.RoomID
	creator   domain.PeerID
	peers     []*peerConn
	nextPeer  int
	expiresAt time.Time
	expired   bool
}

func (r *room) addPeer(ws *websocket.Conn, max int) (*peerConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expired {
		return nil, domain.ErrRoomExpired
	}
	if len(r.peers) >= max {
		return nil, domain.ErrRoomFull
	}
	r.nextPeer++
	p := &peerConn{id: domain.PeerID("p" + strconv.Itoa(r.nextPeer)), ws: ws}
	if r.creator == "" {
		r.creator = p.id
	}
	r.peers = append(r.peers, p)
	return p, nil
}

func (r *room) removePeer(id domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.peers {
		if p.id == id {
			r.peers = append(r.peers[:i], r.peers[i+1:]...)
			return
		}
	}
}

func (r *room) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) == 0
}

// snapshot returns the members in join order.
func (r *room) snapshot() []*peerConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*peerConn, len(r.peers))
	copy(out, r.peers)
	return out
}

// broadcast sends f to every member except skip.
func (r *room) broadcast(f domain.Frame, skip domain.PeerID) {
	for _, p := range r.snapshot() {
		if p.id == skip {
			continue
		}
		_ = websocket.JSON.Send(p.ws, f)
	}
}

// sendTo routes f to a single member.
func (r *room) sendTo(id domain.PeerID, f domain.Frame) {
	for _, p := range r.snapshot() {
		if p.id == id {
			_ = websocket.JSON.Send(p.ws, f)
			return
		}
	}
}
