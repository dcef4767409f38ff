package gateway

import (
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// TurnStatus represents the lifecycle state of a queued turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn is one user message waiting to be sent on a conversation.
type Turn struct {
	ID             types.TurnID
	ConversationID types.ConversationID
	Text           string
	Status         TurnStatus
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	Err            error
	// OnDone receives the assistant reply, empty when the turn produced
	// none, and the error Send returned.
	OnDone func(reply string, err error)
}

// NewTurn creates a queued turn for the conversation.
func NewTurn(id types.ConversationID, text string) *Turn {
	return &Turn{
		ID:             types.NewTurnID(),
		ConversationID: id,
		Text:           text,
		Status:         TurnStatusQueued,
		CreatedAt:      time.Now(),
	}
}
