package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"parrhesia/internal/domain"
)

// Rooms is the REST client for room lifecycle.
type Rooms struct {
	Base string
	HTTP *http.Client
}

var _ domain.RoomClient = (*Rooms)(nil)

// NewRooms returns a Rooms client for the relay at base.
func NewRooms(base string, httpClient *http.Client) *Rooms {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Rooms{Base: base, HTTP: httpClient}
}

// CreateRoom asks the relay for a fresh room.
func (r *Rooms) CreateRoom(ctx context.Context) (domain.RoomID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Base+"/api/rooms", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("create room: %s", resp.Status)
	}
	var out struct {
		RoomID domain.RoomID `json:"room_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

// RoomExists checks whether id is live on the relay.
func (r *Rooms) RoomExists(ctx context.Context, id domain.RoomID) (bool, error) {
	u := r.Base + "/api/rooms/" + url.PathEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("room lookup: %s", resp.Status)
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Exists, nil
}
