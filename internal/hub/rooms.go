package hub

import (
	"sort"

	"github.com/google/uuid"

	"github.com/partyline/server/internal/peer"
	"github.com/partyline/server/internal/room"
	"github.com/partyline/server/internal/types"
)

// Rooms returns the abridged, peer-visible view of every live room, sorted
// by id for a stable fetchRooms ordering.
func (h *Hub) Rooms() []types.RoomSummary {
	h.mu.RLock()
	rooms := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	summaries := make([]types.RoomSummary, len(rooms))
	for i, r := range rooms {
		summaries[i] = r.Summary()
	}
	return summaries
}

// CreateRoom mints a new Room owned by owner and registers it. The creator
// does not automatically join; a follow-up joinRoom call is required, per
// spec.md §4.3.
func (h *Hub) CreateRoom(name string, owner types.PeerID) types.RoomSummary {
	id := types.RoomID(uuid.NewString())
	r := room.New(id, name, owner, h.registry, h.httpBaseURL, h.removeRoom, h.broadcastRooms)

	h.mu.Lock()
	h.rooms[id] = r
	h.mu.Unlock()

	h.broadcastRooms()
	return r.Summary()
}

// FindRoom looks up a room by id.
func (h *Hub) FindRoom(id types.RoomID) (*room.Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

// removeRoom is the Room's onEmpty callback, fired 45s after its roster
// empties. It double-checks the room is still empty (a peer may have
// rejoined in the interim, racing the timer) before tearing it down, per
// spec.md §5's "Room has not been removed" race guard.
func (h *Hub) removeRoom(id types.RoomID) {
	h.mu.Lock()
	r, ok := h.rooms[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if r.PeerCount() > 0 {
		return
	}

	h.mu.Lock()
	delete(h.rooms, id)
	h.mu.Unlock()

	for _, trackID := range r.TrackIDs() {
		h.registry.Remove(trackID)
	}
	r.Stop()
	h.broadcastRooms()
}

// broadcastRooms pushes the abridged rooms list to every connected peer.
func (h *Hub) broadcastRooms() {
	summaries := h.Rooms()

	h.mu.RLock()
	peers := make([]*peer.Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		p.Send("setRooms", summaries)
	}
}
