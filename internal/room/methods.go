// Public methods. Each wraps an unexported, loop-internal implementation
// in r.run so it is safe to call from any goroutine — chiefly the peer
// package's RPC handlers. This is the boundary spec.md §5 describes as
// "every exported method enqueues its body and blocks for completion."
package room

import (
	"context"

	"github.com/partyline/server/internal/types"
)

// Join admits peer to the room and returns the snapshot it should render.
func (r *Room) Join(peer PeerHandle) State {
	var s State
	r.run(func() {
		r.addPeer(peer)
		s = r.snapshot()
	})
	return s
}

// Leave removes peer from the room, stepping it down as DJ if needed.
func (r *Room) Leave(ctx context.Context, peer PeerHandle) {
	r.run(func() { r.removePeer(ctx, peer) })
}

// BecomeDj adds peer to the DJ queue.
func (r *Room) BecomeDj(ctx context.Context, peer PeerHandle) (bool, error) {
	var ok bool
	var err error
	r.run(func() { ok, err = r.addDj(ctx, peer) })
	return ok, err
}

// StepDown removes peer from the DJ queue.
func (r *Room) StepDown(ctx context.Context, peer PeerHandle) bool {
	var ok bool
	r.run(func() { ok = r.removeDj(ctx, peer) })
	return ok
}

// SkipTurn ends the current track early. Returns an error, and changes
// nothing, unless peer is the room's active DJ.
func (r *Room) SkipTurn(ctx context.Context, peer PeerHandle) error {
	var err error
	r.run(func() {
		if r.activeDj != peer {
			err = errMsg("only the active dj can skip their own turn")
			return
		}
		r.endTrack(ctx)
	})
	return err
}

// TrackEnded reports natural completion of the active DJ's track.
func (r *Room) TrackEnded(ctx context.Context, peer PeerHandle) error {
	var err error
	r.run(func() {
		if r.activeDj != peer {
			err = errMsg("only the active dj can end their own turn")
			return
		}
		r.endTrack(ctx)
	})
	return err
}

// UpdatedQueue asks the room to re-fetch on_deck from peer, a no-op unless
// peer is the room's next DJ.
func (r *Room) UpdatedQueue(ctx context.Context, peer PeerHandle) {
	r.run(func() { r.updatedQueue(ctx, peer) })
}

// SetVote records peer's vote on the currently playing track.
func (r *Room) SetVote(ctx context.Context, peer PeerHandle, downvote bool) error {
	var err error
	r.run(func() { err = r.setVote(ctx, peer, downvote) })
	return err
}

// SendChat broadcasts a chat message from peer.
func (r *Room) SendChat(peer PeerHandle, message string) error {
	var err error
	r.run(func() { err = r.sendChat(peer, message) })
	return err
}

// SetProfile broadcasts peer's updated profile to the rest of the room.
func (r *Room) SetProfile(peer PeerHandle, profile any) {
	r.run(func() { r.setProfile(peer, profile) })
}

// Snapshot returns the full room state, used to answer a re-join or
// inspection request without mutating anything.
func (r *Room) Snapshot() State {
	var s State
	r.run(func() { s = r.snapshot() })
	return s
}

// Summary returns the abridged, room-list view of this room.
func (r *Room) Summary() types.RoomSummary {
	var s types.RoomSummary
	r.run(func() { s = r.summary() })
	return s
}
