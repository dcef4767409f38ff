// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type ConversationID string
type EventID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

type TurnID string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}
