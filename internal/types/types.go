// Package types defines the shared vocabulary of the room coordination
// engine: identifiers, tracks, and the now-playing record. These are the
// types every other package (auth, registry, room, peer, hub) imports, so
// they live on their own to avoid import cycles.
package types

import "encoding/json"

// PeerID uniquely identifies a connected client, assigned at successful join.
type PeerID string

// RoomID uniquely identifies a room.
type RoomID string

// TrackID uniquely identifies a track, minted by the server on prefetch.
type TrackID string

// Track is mostly opaque to the engine: only ID and URL are meaningful to
// it, the rest is client-supplied metadata (title, artist, duration, ...).
// Data carries the payload bytes while the track lives in the Track
// Registry; it is always stripped before a Track is shown to a peer.
type Track struct {
	ID       TrackID        `json:"id"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"-"`
	Data     []byte         `json:"-"`
}

// WithoutData returns a copy of the track safe to show to a peer: same
// ID/URL/metadata, Data stripped.
func (t Track) WithoutData() Track {
	t.Data = nil
	return t
}

// MarshalJSON flattens Metadata alongside ID/URL so a peer sees one object,
// e.g. {"id": "...", "url": "...", "title": "...", "artist": "..."}.
func (t Track) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(t.Metadata)+2)
	for k, v := range t.Metadata {
		flat[k] = v
	}
	flat["id"] = t.ID
	flat["url"] = t.URL
	return json.Marshal(flat)
}

// NowPlaying is the record of the currently playing track plus its vote
// tally and the wall-clock second it started (published 5s in the future
// to give clients time to buffer).
type NowPlaying struct {
	Track     Track           `json:"track"`
	Votes     map[PeerID]bool `json:"votes"`
	StartedAt int64           `json:"startedAt"`
}

// ClientInfo is the peer-visible summary of a connected client: identity
// plus whatever profile object it last set.
type ClientInfo struct {
	ID      PeerID `json:"id"`
	Profile any    `json:"profile,omitempty"`
}

// ChatMessage is a single broadcast chat entry.
type ChatMessage struct {
	ID        string `json:"id"`
	SenderID  PeerID `json:"senderId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// RoomSummary is the abridged, peer-visible view of a room used by
// fetchRooms and the server-wide rooms broadcast: no roster, just enough
// to render a room list.
type RoomSummary struct {
	ID         RoomID      `json:"id"`
	Name       string      `json:"name"`
	PeerCount  int         `json:"peerCount"`
	NowPlaying *NowPlaying `json:"nowPlaying,omitempty"`
}
