package peer

import (
	"context"
	"encoding/json"

	"github.com/partyline/server/internal/rpc"
	"github.com/partyline/server/internal/types"
)

type successReply struct {
	Success bool         `json:"success"`
	PeerID  types.PeerID `json:"peerId,omitempty"`
}

// buildHandlerTable wires every RPC named in spec.md §4.3 to a method
// closing over this peer. Built once per Peer rather than as a package
// global, since each handler needs the specific connection it answers on.
func (p *Peer) buildHandlerTable() rpc.Table {
	return rpc.Table{
		"join":         p.handleJoin,
		"authenticate": p.handleAuthenticate,
		"fetchRooms":   p.handleFetchRooms,
		"createRoom":   p.handleCreateRoom,
		"joinRoom":     p.handleJoinRoom,
		"leaveRoom":    p.handleLeaveRoom,
		"becomeDj":     p.handleBecomeDj,
		"stepDown":     p.handleStepDown,
		"skipTurn":     p.handleSkipTurn,
		"trackEnded":   p.handleTrackEnded,
		"updatedQueue": p.handleUpdatedQueue,
		"sendChat":     p.handleSendChat,
		"setProfile":   p.handleSetProfile,
		"vote":         p.handleVote,
	}
}

type jwtParams struct {
	JWT string `json:"jwt"`
}

func (p *Peer) handleJoin(ctx context.Context, params json.RawMessage) (any, error) {
	var in jwtParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("invalid token")
	}
	id, err := p.server.VerifyJoin(in.JWT)
	if err != nil {
		return nil, errString("invalid token")
	}

	p.markAuthenticated(id)
	token, err := p.server.SignSession(id)
	if err != nil {
		return nil, errString("could not issue session token")
	}
	return map[string]any{"token": token, "peerId": id}, nil
}

func (p *Peer) handleAuthenticate(ctx context.Context, params json.RawMessage) (any, error) {
	var in jwtParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("invalid token")
	}
	id, err := p.server.VerifySession(in.JWT)
	if err != nil {
		return nil, errString("invalid token")
	}
	p.markAuthenticated(id)
	return map[string]any{"peerId": id}, nil
}

func (p *Peer) handleFetchRooms(ctx context.Context, params json.RawMessage) (any, error) {
	return p.server.Rooms(), nil
}

type createRoomParams struct {
	Name string `json:"name"`
}

func (p *Peer) handleCreateRoom(ctx context.Context, params json.RawMessage) (any, error) {
	var in createRoomParams
	if err := json.Unmarshal(params, &in); err != nil || len(in.Name) == 0 {
		return nil, errString("name must not be empty")
	}
	return p.server.CreateRoom(in.Name, p.ID()), nil
}

type joinRoomParams struct {
	ID types.RoomID `json:"id"`
}

func (p *Peer) handleJoinRoom(ctx context.Context, params json.RawMessage) (any, error) {
	if p.room() != nil {
		return nil, errString("already in a room; leave it first")
	}

	var in joinRoomParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("room id required")
	}
	r, ok := p.server.FindRoom(in.ID)
	if !ok {
		return nil, errString("room does not exist")
	}

	state := r.Join(p)
	p.setRoom(r)
	return state, nil
}

func (p *Peer) handleLeaveRoom(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	r.Leave(ctx, p)
	p.setRoom(nil)
	return successReply{Success: true}, nil
}

func (p *Peer) handleBecomeDj(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	ok, err := r.BecomeDj(ctx, p)
	if err != nil {
		return nil, err
	}
	return successReply{Success: ok}, nil
}

func (p *Peer) handleStepDown(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	r.StepDown(ctx, p)
	return successReply{Success: true}, nil
}

func (p *Peer) handleSkipTurn(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	if err := r.SkipTurn(ctx, p); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}

func (p *Peer) handleTrackEnded(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	if err := r.TrackEnded(ctx, p); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}

func (p *Peer) handleUpdatedQueue(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return successReply{Success: true}, nil
	}
	r.UpdatedQueue(ctx, p)
	return successReply{Success: true}, nil
}

type chatParams struct {
	Message string `json:"message"`
}

func (p *Peer) handleSendChat(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	var in chatParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("message must not be empty")
	}
	if err := r.SendChat(p, in.Message); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}

type setProfileParams struct {
	Profile any `json:"profile"`
}

func (p *Peer) handleSetProfile(ctx context.Context, params json.RawMessage) (any, error) {
	var in setProfileParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("invalid profile")
	}
	p.setProfile(in.Profile)
	if r := p.room(); r != nil {
		r.SetProfile(p, in.Profile)
	}
	return successReply{Success: true, PeerID: p.ID()}, nil
}

type voteParams struct {
	Direction string `json:"direction"`
}

func (p *Peer) handleVote(ctx context.Context, params json.RawMessage) (any, error) {
	r := p.room()
	if r == nil {
		return nil, errString("not in a room")
	}
	var in voteParams
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, errString("direction required")
	}
	downvote := in.Direction == "down"
	if err := r.SetVote(ctx, p, downvote); err != nil {
		return nil, err
	}
	return successReply{Success: true}, nil
}
