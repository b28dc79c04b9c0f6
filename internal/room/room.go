// Package room implements the DJ rotation state machine, the track
// lifecycle, the vote/skip protocol, and the peer roster for a single
// room — the heart of the system per spec.md §4.4.
//
// Concurrency model: grounded on the teacher's single-writer-lock room
// (internal/v1/session/room.go), but generalized from a mutex to the
// command-channel actor spec.md §5/§9 calls for, since spinDj and
// fetchOnDeck must suspend across a network round trip (requestTrack)
// without blocking every other room operation. Every exported method
// enqueues its body onto cmdCh and is executed by the single loop
// goroutine; suspending operations kick off their network call in a
// separate goroutine and re-enter the loop with the result as a
// continuation.
package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/set"

	"github.com/partyline/server/internal/registry"
	"github.com/partyline/server/internal/types"
)

// MaxDjs is the bounded DJ queue length from spec.md §3.
const MaxDjs = 5

// RemovalGrace is how long an empty room survives before being reaped.
const RemovalGrace = 45 * time.Second

// SkipTimeout is how long a skip warning survives before it fires.
const SkipTimeout = 5 * time.Second

// PublishDelay is how far into the future a freshly published track's
// started_at is stamped, giving clients time to buffer (spec.md §3).
const PublishDelay = 5 * time.Second

// PeerHandle is everything Room needs from a connected client, satisfied in
// production by *peer.Peer. Routing room mutation through an interface
// (rather than Room holding *peer.Peer directly) avoids an import cycle and
// mirrors the teacher's Roomer/wsConnection split in
// internal/v1/session/client.go.
type PeerHandle interface {
	ID() types.PeerID
	Profile() any
	// Send pushes a fire-and-forget event to the peer; used for broadcasts
	// like playTrack, setDjs, setSkipWarning.
	Send(name string, payload any)
	// Call issues a request to the peer and blocks (in a caller-owned
	// goroutine, never the Room loop) until a correlated reply arrives or
	// ctx is cancelled. Used only for requestTrack.
	Call(ctx context.Context, name string, params any) (json.RawMessage, error)
}

// Room owns one room's full state: roster, DJ rotation, current track,
// vote tally, and pending timers. All fields below this point are mutated
// exclusively by the loop goroutine; never touch them from outside a
// queued command.
type Room struct {
	ID      types.RoomID
	Name    string
	AdminID types.PeerID

	registry *registry.Registry
	baseURL  string
	onEmpty  func(types.RoomID)
	onChange func()

	cmdCh    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once

	peers    []PeerHandle
	djs      []PeerHandle
	djSet    set.Set[types.PeerID]
	activeDj PeerHandle
	admin    PeerHandle

	nowPlaying *types.NowPlaying
	onDeck     *types.Track

	skipWarning bool
	skipTimer   *time.Timer

	removalTimer *time.Timer
}

// New creates a Room owned by adminID and starts its command loop. baseURL
// is the server's public HTTP base (trailing slash included), prepended to
// every track id this room mints so the external HTTP collaborator can
// fetch it (spec.md §3, §4.5).
// onEmpty is invoked (on a timer goroutine, not the loop) 45s after the
// roster empties, unless cancelled by a new peer joining first.
// onChange is invoked any time something a room-list subscriber would care
// about changes (peer count, now playing).
func New(id types.RoomID, name string, adminID types.PeerID, reg *registry.Registry, baseURL string, onEmpty func(types.RoomID), onChange func()) *Room {
	r := &Room{
		ID:       id,
		Name:     name,
		AdminID:  adminID,
		registry: reg,
		baseURL:  baseURL,
		onEmpty:  onEmpty,
		onChange: onChange,
		cmdCh:    make(chan func(), 32),
		stopCh:   make(chan struct{}),
		djSet:    set.New[types.PeerID](),
	}
	go r.loop()
	return r
}

func (r *Room) loop() {
	for {
		select {
		case cmd := <-r.cmdCh:
			cmd()
		case <-r.stopCh:
			return
		}
	}
}

// run executes fn on the loop goroutine and blocks until it completes. Safe
// to call from any goroutine; a no-op if the room has already stopped.
func (r *Room) run(fn func()) {
	done := make(chan struct{})
	select {
	case r.cmdCh <- func() { fn(); close(done) }:
		<-done
	case <-r.stopCh:
	}
}

// post enqueues fn without waiting for it to run; used by timer callbacks
// and requestTrack continuations, which must never block their caller.
// Dropped silently if the room has already stopped.
func (r *Room) post(fn func()) {
	select {
	case r.cmdCh <- fn:
	case <-r.stopCh:
	}
}

// Stop halts the room's loop. Called by the hub once a room is confirmed
// empty past its removal grace period; the hub sweeps the room's tracks out
// of the shared registry via TrackIDs before calling Stop.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// TrackIDs returns the ids of the room's currently playing and on-deck
// tracks, if any. The hub calls this before tearing a room down, so the
// shared registry doesn't keep entries no room references anymore.
func (r *Room) TrackIDs() []types.TrackID {
	var ids []types.TrackID
	r.run(func() {
		if r.nowPlaying != nil {
			ids = append(ids, r.nowPlaying.Track.ID)
		}
		if r.onDeck != nil {
			ids = append(ids, r.onDeck.ID)
		}
	})
	return ids
}

func (r *Room) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

func mintTrackID() types.TrackID {
	return types.TrackID(uuid.NewString())
}

func indexOfPeer(list []PeerHandle, p PeerHandle) int {
	for i, c := range list {
		if c == p {
			return i
		}
	}
	return -1
}

func removePeerAt(list []PeerHandle, idx int) []PeerHandle {
	return append(list[:idx], list[idx+1:]...)
}

