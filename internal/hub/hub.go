// Package hub implements the Server component from spec.md §4.5: the
// directory of rooms and connected peers, the room factory, the global
// "rooms changed" broadcaster, and the holder of the Track Registry.
//
// Grounded on the teacher's Hub (internal/v1/session/hub.go): same
// mutex-protected room registry and ServeWs upgrade entrypoint,
// generalized from a JWT-on-query-param pre-auth gate to spec.md's
// in-band join/authenticate RPCs, since this system authenticates over
// the socket rather than before the upgrade.
package hub

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/partyline/server/internal/auth"
	"github.com/partyline/server/internal/logging"
	"github.com/partyline/server/internal/peer"
	"github.com/partyline/server/internal/registry"
	"github.com/partyline/server/internal/room"
	"github.com/partyline/server/internal/types"
)

// Hub is the process-wide directory: rooms, connected peers, the shared
// Track Registry, and the authenticator used to mint/verify tokens.
type Hub struct {
	mu    sync.RWMutex
	rooms map[types.RoomID]*room.Room
	peers map[*peer.Peer]struct{}

	registry *registry.Registry
	auth     *auth.Authenticator

	serverID    string
	wsURL       string
	httpBaseURL string

	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// New creates an empty Hub bound to authenticator a. httpBaseURL is the
// public base URL (trailing slash included) rooms prepend to minted track
// ids, so the external HTTP collaborator from spec.md §4.5 can fetch them.
func New(a *auth.Authenticator, serverID, wsURL, httpBaseURL string, allowedOrigins []string) *Hub {
	h := &Hub{
		rooms:          make(map[types.RoomID]*room.Room),
		peers:          make(map[*peer.Peer]struct{}),
		registry:       registry.New(),
		auth:           a,
		serverID:       serverID,
		wsURL:          wsURL,
		httpBaseURL:    httpBaseURL,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return true
		}
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if allowedURL.Scheme == originURL.Scheme && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}

// ServeWs upgrades the HTTP request to a websocket and hands it to a new
// Peer. Unlike the teacher's pre-auth gate, no token is required here: the
// connection is authenticated in-band via join/authenticate within the
// peer's auth deadline.
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed")
		return
	}

	p := peer.New(conn, h)
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

// Deregister removes p from the connected-peers set. Safe to call more
// than once for the same peer.
func (h *Hub) Deregister(p *peer.Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// SignSession mints a session token for peerID via the Hub's authenticator.
func (h *Hub) SignSession(peerID types.PeerID) (string, error) {
	return h.auth.SignSession(peerID)
}

// VerifyJoin verifies jwt as a join invite and mints a fresh peer id.
func (h *Hub) VerifyJoin(jwt string) (types.PeerID, error) {
	if err := h.auth.VerifyInvite(jwt); err != nil {
		return "", err
	}
	return types.PeerID(uuid.NewString()), nil
}

// VerifySession verifies jwt as a session token and returns the peer id it
// was issued for.
func (h *Hub) VerifySession(jwt string) (types.PeerID, error) {
	return h.auth.VerifySession(jwt)
}

// PeerCount reports the number of connected peers (authenticated or not),
// used by health reporting.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// RoomCount reports the number of live rooms, used by health reporting.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// TrackCount reports the number of tracks currently held in the shared
// registry, used by health reporting.
func (h *Hub) TrackCount() int {
	return h.registry.Len()
}
