package room

import (
	"context"
	"time"
)

// skipQuorum and skipDownPercent are the thresholds from spec.md §3: at
// least 30% of the room must have voted, and at least half of those votes
// must be downvotes, before a skip warning is raised.
const (
	skipQuorum      = 0.30
	skipDownPercent = 0.50
)

// setVote records peer's up/down vote on the currently playing track,
// broadcasts the updated tally, and raises or clears the skip warning as
// the quorum crosses the threshold in either direction.
func (r *Room) setVote(ctx context.Context, peer PeerHandle, downvote bool) error {
	if r.nowPlaying == nil {
		return errMsg("there is no song playing to vote on")
	}

	r.nowPlaying.Votes[peer.ID()] = downvote
	r.broadcast("setVotes", r.nowPlaying.Votes)

	shouldSkip := r.skipThresholdMet()
	switch {
	case !r.skipWarning && shouldSkip:
		r.raiseSkipWarning(ctx)
	case r.skipWarning && !shouldSkip:
		r.clearSkipWarning()
	}
	return nil
}

func (r *Room) skipThresholdMet() bool {
	total := len(r.peers)
	if total == 0 || len(r.nowPlaying.Votes) == 0 {
		return false
	}

	var downs int
	for _, down := range r.nowPlaying.Votes {
		if down {
			downs++
		}
	}

	quorum := float64(len(r.nowPlaying.Votes)) / float64(total)
	downPercent := float64(downs) / float64(len(r.nowPlaying.Votes))
	return quorum >= skipQuorum && downPercent >= skipDownPercent
}

func (r *Room) raiseSkipWarning(ctx context.Context) {
	r.skipWarning = true
	r.broadcast("setSkipWarning", map[string]bool{"value": true})
	r.skipTimer = time.AfterFunc(SkipTimeout, func() {
		r.post(func() { r.fireSkip(ctx) })
	})
}

func (r *Room) clearSkipWarning() {
	r.skipWarning = false
	if r.skipTimer != nil {
		r.skipTimer.Stop()
		r.skipTimer = nil
	}
	r.broadcast("setSkipWarning", map[string]bool{"value": false})
}

// fireSkip is the skip timer's continuation: the warning survived its full
// window without retreating below threshold, so the track is pulled.
func (r *Room) fireSkip(ctx context.Context) {
	if !r.skipWarning {
		return
	}
	r.skipWarning = false
	r.skipTimer = nil
	r.broadcast("setSkipWarning", map[string]bool{"value": false})
	r.endTrack(ctx)
}
