package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/partyline/server/internal/types"
)

// sendChat validates and broadcasts a chat message. Messages are not
// retained; a peer joining mid-conversation only sees what is said after
// it arrives.
func (r *Room) sendChat(peer PeerHandle, message string) error {
	if len(message) == 0 {
		return errMsg("message must not be empty")
	}
	if len(message) > 1000 {
		return errMsg("message too long")
	}

	r.broadcast("newChatMsg", types.ChatMessage{
		ID:        uuid.NewString(),
		SenderID:  peer.ID(),
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}
