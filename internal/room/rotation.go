package room

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/partyline/server/internal/logging"
	"github.com/partyline/server/internal/types"
)

func errMsg(msg string) error { return errors.New(msg) }

// requestTrackReply is the shape a DJ is expected to answer requestTrack
// with: the track metadata plus its payload, base64-free since the
// transport already round-trips JSON strings losslessly.
type requestTrackReply struct {
	Track map[string]any `json:"track"`
}

// nextDj returns the DJ immediately after active_dj in rotation order, the
// first DJ if none is currently active, or nil if the queue is empty.
func (r *Room) nextDj() PeerHandle {
	if len(r.djs) == 0 {
		return nil
	}
	if r.activeDj == nil {
		return r.djs[0]
	}
	idx := indexOfPeer(r.djs, r.activeDj)
	if idx == -1 {
		return r.djs[0]
	}
	return r.djs[(idx+1)%len(r.djs)]
}

func (r *Room) setActiveDj(dj PeerHandle) {
	r.activeDj = dj
	var id *types.PeerID
	if dj != nil {
		v := dj.ID()
		id = &v
	}
	r.broadcast("setActiveDj", map[string]any{"djId": id})
}

// spinDj advances the rotation to whoever nextDj() says comes next.
// Grounded on spec.md §4.4's numbered spinDj algorithm.
func (r *Room) spinDj(ctx context.Context) {
	r.advanceTo(ctx, r.nextDj())
}

// advanceTo performs the published-facing half of spinDj (steps 1-6) for an
// explicit dj rather than recomputing nextDj(). removeDj needs this: when
// the departing DJ was active, the correct successor is whoever nextDj()
// named *before* that DJ was spliced out of djs, since nextDj()'s formula
// can no longer locate a removed active_dj's position afterward.
func (r *Room) advanceTo(ctx context.Context, dj PeerHandle) {
	r.setActiveDj(dj)

	if dj == nil {
		if r.onDeck != nil {
			r.registry.Remove(r.onDeck.ID)
			r.onDeck = nil
		}
		r.broadcast("setOnDeck", map[string]any{"track": nil})
		return
	}

	if r.onDeck != nil {
		track := *r.onDeck
		r.onDeck = nil
		r.publishNowPlaying(ctx, dj, track)
		return
	}

	r.requestFreshTrack(ctx, dj)
}

// requestFreshTrack asks dj for a track and, once minted, publishes it as
// now playing. The network call runs outside the loop; the result is
// applied back on the loop via post, re-validating that dj is still the
// active DJ before mutating anything (spec.md §5's race-guard rule).
func (r *Room) requestFreshTrack(ctx context.Context, dj PeerHandle) {
	go func() {
		raw, err := dj.Call(ctx, "requestTrack", nil)
		r.post(func() {
			if r.activeDj != dj {
				return
			}
			if err != nil {
				logging.Warn(ctx, "requestTrack failed, rotation stalled", zap.Error(err))
				return
			}
			track, ok := decodeRequestedTrack(raw)
			if !ok {
				logging.Warn(ctx, "requestTrack reply malformed, rotation stalled")
				return
			}
			track.ID = mintTrackID()
			track.URL = r.trackURL(track.ID)
			r.registry.Put(track)
			r.publishNowPlaying(ctx, dj, track.WithoutData())
		})
	}()
}

// publishNowPlaying sets now_playing, broadcasts it, tells the DJ to
// advance its own queue, and kicks off prefetch of the track after this
// one.
func (r *Room) publishNowPlaying(ctx context.Context, dj PeerHandle, track types.Track) {
	r.nowPlaying = &types.NowPlaying{
		Track:     track.WithoutData(),
		Votes:     map[types.PeerID]bool{},
		StartedAt: time.Now().Add(PublishDelay).Unix(),
	}
	r.broadcast("playTrack", r.nowPlaying)
	r.changed()
	dj.Send("cycleSelectedQueue", nil)
	r.fetchOnDeck(ctx)
}

// fetchOnDeck evicts whatever was on deck (it is being superseded before it
// ever played) and prefetches a track from the DJ after the current one, so
// the next spinDj can start playback immediately instead of stalling on a
// round trip.
func (r *Room) fetchOnDeck(ctx context.Context) {
	if r.onDeck != nil {
		r.registry.Remove(r.onDeck.ID)
		r.onDeck = nil
	}
	target := r.nextDj()
	if target == nil {
		r.broadcast("setOnDeck", map[string]any{"track": nil})
		return
	}

	go func() {
		raw, err := target.Call(ctx, "requestTrack", nil)
		r.post(func() {
			if r.nextDj() != target {
				return
			}
			if err != nil {
				logging.Warn(ctx, "on-deck requestTrack failed", zap.Error(err))
				return
			}
			track, ok := decodeRequestedTrack(raw)
			if !ok {
				logging.Warn(ctx, "on-deck requestTrack reply malformed")
				return
			}
			track.ID = mintTrackID()
			track.URL = r.trackURL(track.ID)
			r.registry.Put(track)
			stripped := track.WithoutData()
			r.onDeck = &stripped
			r.broadcast("setOnDeck", map[string]any{"track": stripped})
		})
	}()
}

// endTrack tears down the currently playing track (if any), cancels any
// pending skip warning, and advances the rotation. Returns false if nothing
// was playing.
func (r *Room) endTrack(ctx context.Context) bool {
	return r.endTrackAdvance(ctx, nil, false)
}

// endTrackAdvance is endTrack generalized to accept an explicit successor,
// used by removeDj when the departing DJ was active (see advanceTo).
func (r *Room) endTrackAdvance(ctx context.Context, forcedNext PeerHandle, forced bool) bool {
	if r.nowPlaying == nil {
		return false
	}

	if r.skipTimer != nil {
		r.skipTimer.Stop()
		r.skipTimer = nil
	}
	if r.skipWarning {
		r.skipWarning = false
		r.broadcast("setSkipWarning", map[string]bool{"value": false})
	}

	r.registry.Remove(r.nowPlaying.Track.ID)
	r.nowPlaying = nil
	r.broadcast("stopTrack", nil)
	r.broadcast("setActiveDj", map[string]any{"djId": nil})
	r.changed()

	if forced {
		r.advanceTo(ctx, forcedNext)
	} else {
		r.spinDj(ctx)
	}
	return true
}

// addDj appends peer to the DJ queue if it is not already a DJ and the
// queue has room, then kicks the rotation: if it is now the only DJ it
// spins up immediately, otherwise if it became next in line it is worth
// prefetching from.
func (r *Room) addDj(ctx context.Context, peer PeerHandle) (bool, error) {
	if r.djSet.Has(peer.ID()) {
		return false, errMsg("already a dj")
	}
	if len(r.djs) >= MaxDjs {
		return false, errMsg("too many djs, not enough mics")
	}

	r.djs = append(r.djs, peer)
	r.djSet.Insert(peer.ID())
	r.broadcast("setDjs", djIDs(r.djs))

	switch {
	case len(r.djs) == 1:
		r.spinDj(ctx)
	case r.nextDj() == peer:
		r.fetchOnDeck(ctx)
	}
	return true, nil
}

// removeDj drops peer from the DJ queue. If peer was playing, its track is
// torn down and the rotation advances; otherwise, if peer was the
// prefetch target, a fresh on-deck track is fetched from whoever is next.
func (r *Room) removeDj(ctx context.Context, peer PeerHandle) bool {
	idx := indexOfPeer(r.djs, peer)
	if idx == -1 {
		return false
	}

	// Captured before the splice: nextDj()'s index_of(active_dj) formula
	// can't find peer's position once it's gone, so the successor it would
	// have named has to be read off the pre-removal rotation.
	next := r.nextDj()
	wasActive := r.activeDj == peer

	r.djs = removePeerAt(r.djs, idx)
	r.djSet.Delete(peer.ID())
	r.broadcast("setDjs", djIDs(r.djs))

	if wasActive {
		if next == peer {
			// peer was the sole DJ; nextDj() wrapped to itself.
			next = nil
		}
		r.endTrackAdvance(ctx, next, true)
		return true
	}

	switch {
	case len(r.djs) == 0:
		if r.onDeck != nil {
			r.registry.Remove(r.onDeck.ID)
			r.onDeck = nil
		}
	case next == peer:
		r.fetchOnDeck(ctx)
	}
	return true
}

// updatedQueue re-fetches on_deck from peer if and only if peer is the
// room's next DJ. A no-op otherwise, per spec.md's Open Question #5: the
// operation silently ignores updates from anyone else rather than erroring.
func (r *Room) updatedQueue(ctx context.Context, peer PeerHandle) {
	if r.nextDj() != peer {
		return
	}
	r.fetchOnDeck(ctx)
}

func decodeRequestedTrack(raw json.RawMessage) (types.Track, bool) {
	var reply requestTrackReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Track == nil {
		return types.Track{}, false
	}
	meta := reply.Track
	var data []byte
	if d, ok := meta["data"].(string); ok {
		data = []byte(d)
		delete(meta, "data")
	}
	delete(meta, "id")
	delete(meta, "url")
	return types.Track{Metadata: meta, Data: data}, true
}

func djIDs(djs []PeerHandle) []types.PeerID {
	ids := make([]types.PeerID, len(djs))
	for i, d := range djs {
		ids[i] = d.ID()
	}
	return ids
}

// trackURL builds the URL clients fetch a track's payload from: the
// server's public HTTP base joined with "tracks/<id>" per spec.md §3.
func (r *Room) trackURL(id types.TrackID) string {
	return r.baseURL + "tracks/" + string(id)
}
