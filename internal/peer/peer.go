// Package peer implements the per-connection actor: the websocket
// read/write pumps, the auth-deadline gate, the correlated request/reply
// primitive used to call back into the client, and the RPC handler table
// that answers the client's own calls.
//
// Grounded on the teacher's Client type (internal/v1/session/client.go):
// same two-goroutine pump design and wsConnection test seam, generalized
// from a protobuf binary frame to spec.md §6's JSON Envelope, and from a
// fire-and-forget Roomer router to a table dispatch plus a correlated
// Call() primitive (the teacher's Client never calls back into its own
// browser; this one must, for requestTrack).
package peer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/partyline/server/internal/logging"
	"github.com/partyline/server/internal/room"
	"github.com/partyline/server/internal/rpc"
	"github.com/partyline/server/internal/types"
)

// AuthTimeout is how long an unauthenticated connection survives before
// being closed (spec.md §4.3/§9: a nominally-5000s constant that the
// source actually fires at 5s; this implementation keeps the intended 5s
// behavior rather than reproducing the typo).
const AuthTimeout = 5 * time.Second

const writeWait = 10 * time.Second

// wsConn is the minimal surface Peer needs from a transport connection,
// satisfied by *websocket.Conn in production and a fake in tests.
type wsConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Server is everything a Peer needs from the process-wide hub: finding and
// creating rooms, minting tokens, and removing itself from the server
// roster on disconnect. A narrow interface here keeps peer from importing
// hub, which in turn holds peers.
type Server interface {
	Rooms() []types.RoomSummary
	CreateRoom(name string, owner types.PeerID) types.RoomSummary
	FindRoom(id types.RoomID) (*room.Room, bool)
	Deregister(p *Peer)
	SignSession(peerID types.PeerID) (string, error)
	VerifyJoin(jwt string) (types.PeerID, error)
	VerifySession(jwt string) (types.PeerID, error)
}

// Peer is one connected client: its transport, its outbound queue, its
// identity once authenticated, and whatever room it currently belongs to.
type Peer struct {
	conn   wsConn
	server Server
	send   chan []byte

	mu          sync.RWMutex
	id          types.PeerID
	authed      bool
	profile     any
	currentRoom *room.Room

	authTimer *time.Timer

	pendingMu sync.Mutex
	pending   map[string]chan rpc.Envelope

	handlers rpc.Table
}

// New wraps conn in a Peer and starts its read/write pumps. The returned
// Peer is unauthenticated; it is disconnected if neither join nor
// authenticate completes within AuthTimeout.
func New(conn wsConn, server Server) *Peer {
	p := &Peer{
		conn:    conn,
		server:  server,
		send:    make(chan []byte, 32),
		pending: make(map[string]chan rpc.Envelope),
	}
	p.authTimer = time.AfterFunc(AuthTimeout, p.closeUnauthenticated)
	p.handlers = p.buildHandlerTable()

	go p.writePump()
	go p.readPump()
	return p
}

// ID returns the peer's assigned id, empty until authenticated.
func (p *Peer) ID() types.PeerID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

// Profile returns whatever the client last set via setProfile.
func (p *Peer) Profile() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

func (p *Peer) setProfile(profile any) {
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
}

func (p *Peer) room() *room.Room {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentRoom
}

func (p *Peer) setRoom(r *room.Room) {
	p.mu.Lock()
	p.currentRoom = r
	p.mu.Unlock()
}

func (p *Peer) closeUnauthenticated() {
	p.mu.RLock()
	authed := p.authed
	p.mu.RUnlock()
	if authed {
		return
	}
	logging.Info(context.Background(), "auth deadline expired, closing connection")
	p.conn.Close()
}

func (p *Peer) markAuthenticated(id types.PeerID) {
	p.mu.Lock()
	p.id = id
	p.authed = true
	p.mu.Unlock()
	p.authTimer.Stop()
}

// readPump drains incoming envelopes, routing calls to the dispatch table
// and replies to whichever goroutine is waiting on Call.
func (p *Peer) readPump() {
	defer p.handleDisconnect()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		var env rpc.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "malformed envelope", zap.Error(err))
			continue
		}

		if env.IsCall() {
			p.handleCall(env)
			continue
		}
		p.deliverReply(env)
	}
}

func (p *Peer) writePump() {
	defer p.conn.Close()
	for data := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(1, data); err != nil {
			return
		}
	}
}

func (p *Peer) handleCall(env rpc.Envelope) {
	ctx := logging.WithPeer(context.Background(), string(p.ID()))
	reply := rpc.Dispatch(ctx, p.handlers, env.Name, env.Params)
	if env.ID == "" {
		return
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		raw, _ = json.Marshal(rpc.Fail("internal error marshaling reply"))
	}
	p.writeEnvelope(rpc.Envelope{ID: env.ID, Result: raw})
}

func (p *Peer) deliverReply(env rpc.Envelope) {
	p.pendingMu.Lock()
	ch, ok := p.pending[env.ID]
	if ok {
		delete(p.pending, env.ID)
	}
	p.pendingMu.Unlock()
	if !ok {
		return
	}
	ch <- env
}

// Send pushes a fire-and-forget named event to the client.
func (p *Peer) Send(name string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Warn(context.Background(), "failed to marshal outgoing payload", zap.String("event", name), zap.Error(err))
		return
	}
	p.writeEnvelope(rpc.Envelope{Name: name, Params: raw})
}

func (p *Peer) writeEnvelope(env rpc.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case p.send <- data:
	default:
		logging.Warn(context.Background(), "peer send buffer full, dropping message")
	}
}

// Call issues name to the client and blocks until a correlated reply
// arrives or ctx is cancelled. Safe to call concurrently; used only for
// requestTrack, and only ever from a goroutine spawned by Room, never from
// the Room's own loop.
func (p *Peer) Call(ctx context.Context, name string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	reply := make(chan rpc.Envelope, 1)
	p.pendingMu.Lock()
	p.pending[id] = reply
	p.pendingMu.Unlock()

	p.writeEnvelope(rpc.Envelope{ID: id, Name: name, Params: raw})

	select {
	case env := <-reply:
		if env.Error != "" {
			return nil, errString(env.Error)
		}
		return env.Result, nil
	case <-ctx.Done():
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// handleDisconnect runs once when the read loop exits: it removes the
// peer from its current room (if any), fails out any outstanding Call so a
// waiting Room goroutine never blocks forever, deregisters from the
// server, and closes the outbound queue.
func (p *Peer) handleDisconnect() {
	p.conn.Close()

	if r := p.room(); r != nil {
		r.Leave(context.Background(), p)
		p.setRoom(nil)
	}

	p.pendingMu.Lock()
	for id, ch := range p.pending {
		ch <- rpc.Envelope{ID: id, Error: "peer disconnected"}
	}
	p.pending = make(map[string]chan rpc.Envelope)
	p.pendingMu.Unlock()

	p.server.Deregister(p)
	close(p.send)
}

type errString string

func (e errString) Error() string { return string(e) }
