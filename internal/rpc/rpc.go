// Package rpc implements the uniform request/reply wire shape and
// table-driven dispatch shared by the Peer's client-facing RPC surface and
// its client-facing RPCs in the other direction (requestTrack,
// cycleSelectedQueue). Grounded on the teacher's table-driven handler
// intent and its uniform {error, message} reply shape, generalized from a
// protobuf oneof switch to spec.md §6's JSON {name, params} envelope.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the one message shape carried in both directions over the
// transport. A message with Name set is a call; a message with Name empty
// and ID set is a reply correlated to a previously sent call by ID. This is
// the systems-level stand-in for spec.md §6's "reply callback expecting
// exactly one reply object" — the callback becomes a channel keyed by
// correlation id.
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsCall reports whether this envelope represents an incoming call rather
// than a reply to one of ours.
func (e Envelope) IsCall() bool {
	return e.Name != ""
}

// ErrorReply is the uniform failure shape success handlers never return
// directly: {error: true, message: "..."}.
type ErrorReply struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Fail builds the uniform error reply payload for a handler.
func Fail(message string) ErrorReply {
	return ErrorReply{Error: true, Message: message}
}

// Handler decodes its params and returns a success payload or an error. A
// returned error is surfaced to the caller as {error:true, message:err.Error()};
// it is never treated as a transport failure.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Table is a static name-to-handler mapping, matching the teacher's
// intent of a method table rather than a growing if/else chain.
type Table map[string]Handler

// Dispatch looks up name in the table, invokes its handler, and always
// produces exactly one reply value: either the handler's success payload,
// or an ErrorReply. A panicking handler is recovered and surfaced the same
// way, so a single bad handler can never take down a Peer's read loop.
func Dispatch(ctx context.Context, table Table, name string, params json.RawMessage) (reply any) {
	handler, ok := table[name]
	if !ok {
		return Fail("Invalid method name")
	}

	defer func() {
		if r := recover(); r != nil {
			reply = Fail(fmt.Sprintf("%v", r))
		}
	}()

	result, err := handler(ctx, params)
	if err != nil {
		return Fail(err.Error())
	}
	return result
}
