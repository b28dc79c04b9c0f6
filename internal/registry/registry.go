// Package registry implements the Track Registry: the one piece of state
// shared across rooms, mapping a track id to its full record (including
// payload bytes). Grounded on the map-behind-a-mutex pattern the teacher
// uses for its participant/host maps (internal/v1/session/room.go).
package registry

import (
	"sync"

	"github.com/partyline/server/internal/types"
)

// Registry is a process-wide mapping from track id to full track, used by
// rooms to stash prefetched payloads for the external HTTP collaborator to
// read by id. There is no TTL; entries are removed explicitly by the owning
// room (track end, on-deck displacement, or room removal).
type Registry struct {
	mu     sync.RWMutex
	tracks map[types.TrackID]types.Track
}

// New returns an empty Track Registry.
func New() *Registry {
	return &Registry{tracks: make(map[types.TrackID]types.Track)}
}

// Put stores or overwrites the track under its own id.
func (r *Registry) Put(track types.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[track.ID] = track
}

// Get returns the full track (with payload data) and whether it was found.
func (r *Registry) Get(id types.TrackID) (types.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	return t, ok
}

// Remove evicts a track. Safe to call on an id that is not present.
func (r *Registry) Remove(id types.TrackID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, id)
}

// Len reports the number of tracks currently held, used by health
// reporting.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}
