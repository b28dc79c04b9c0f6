package room

import (
	"context"
	"time"

	"github.com/partyline/server/internal/types"
)

// broadcast sends event to every peer in the room.
func (r *Room) broadcast(event string, payload any) {
	for _, p := range r.peers {
		p.Send(event, payload)
	}
}

// broadcastExcept sends event to every peer except exclude — used when
// addPeer announces the new roster, since the joining peer receives its
// own welcome state through a private send instead.
func (r *Room) broadcastExcept(exclude PeerHandle, event string, payload any) {
	for _, p := range r.peers {
		if p == exclude {
			continue
		}
		p.Send(event, payload)
	}
}

func (r *Room) peerInfos() []types.ClientInfo {
	infos := make([]types.ClientInfo, len(r.peers))
	for i, p := range r.peers {
		infos[i] = types.ClientInfo{ID: p.ID(), Profile: p.Profile()}
	}
	return infos
}

// addPeer admits peer to the roster, cancels any pending removal timer,
// announces the new roster to everyone already present, and privately
// catches the joining peer up on whatever is currently playing or queued.
func (r *Room) addPeer(peer PeerHandle) {
	r.peers = append(r.peers, peer)
	if peer.ID() == r.AdminID {
		r.admin = peer
	}

	if r.removalTimer != nil {
		r.removalTimer.Stop()
		r.removalTimer = nil
	}

	r.broadcastExcept(peer, "setPeers", r.peerInfos())
	r.changed()

	if r.nowPlaying != nil {
		peer.Send("playTrack", r.nowPlaying)
	}
	if r.onDeck != nil {
		peer.Send("setOnDeck", map[string]any{"track": r.onDeck})
	}
}

// removePeer drops peer from the roster, stepping it down as a DJ and
// stripping admin status along the way, and schedules the room for removal
// if that leaves it empty.
func (r *Room) removePeer(ctx context.Context, peer PeerHandle) {
	idx := indexOfPeer(r.peers, peer)
	if idx == -1 {
		return
	}
	r.peers = removePeerAt(r.peers, idx)

	r.removeDj(ctx, peer)
	if r.admin == peer {
		r.admin = nil
	}

	r.broadcast("setPeers", r.peerInfos())
	r.changed()

	if len(r.peers) == 0 {
		r.scheduleRemoval()
	}
}

func (r *Room) scheduleRemoval() {
	if r.removalTimer != nil {
		r.removalTimer.Stop()
	}
	r.removalTimer = time.AfterFunc(RemovalGrace, func() {
		r.onEmpty(r.ID)
	})
}

// PeerCount reports the current roster size. Used by the hub to
// double-check emptiness before actually tearing a room down, closing the
// race between a peer rejoining and the removal timer firing.
func (r *Room) PeerCount() int {
	var n int
	r.run(func() { n = len(r.peers) })
	return n
}

func (r *Room) setProfile(peer PeerHandle, profile any) {
	r.broadcast("setPeerProfile", types.ClientInfo{ID: peer.ID(), Profile: profile})
}
