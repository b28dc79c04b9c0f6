package room

import "github.com/partyline/server/internal/types"

// State is the full room snapshot handed to a peer on joinRoom: everything
// it needs to render the room without waiting for a follow-up broadcast.
type State struct {
	ID         types.RoomID       `json:"id"`
	Name       string             `json:"name"`
	AdminID    types.PeerID       `json:"adminId"`
	Peers      []types.ClientInfo `json:"peers"`
	Djs        []types.PeerID     `json:"djs"`
	ActiveDjID *types.PeerID      `json:"activeDjId,omitempty"`
	NowPlaying *types.NowPlaying  `json:"nowPlaying,omitempty"`
	OnDeck     *types.Track       `json:"onDeck,omitempty"`
}

func (r *Room) snapshot() State {
	s := State{
		ID:         r.ID,
		Name:       r.Name,
		AdminID:    r.AdminID,
		Peers:      r.peerInfos(),
		Djs:        djIDs(r.djs),
		NowPlaying: r.nowPlaying,
		OnDeck:     r.onDeck,
	}
	if r.activeDj != nil {
		id := r.activeDj.ID()
		s.ActiveDjID = &id
	}
	return s
}

func (r *Room) summary() types.RoomSummary {
	return types.RoomSummary{
		ID:         r.ID,
		Name:       r.Name,
		PeerCount:  len(r.peers),
		NowPlaying: r.nowPlaying,
	}
}
