// internal/types/models.go
package types

import (
	"encoding/json"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// Outcome tags how a stored conversation ended.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomePartial    Outcome = "partial"
	OutcomeFailed     Outcome = "failed"
	OutcomeInProgress Outcome = "in_progress"
)

// StoredConversation is the persisted projection of a session. JSON and
// CBOR share camelCase keys, the record shape of the legacy store.
type StoredConversation struct {
	ID          ConversationID     `json:"id" cbor:"id"`
	UserID      string             `json:"userId" cbor:"userId"`
	TenantID    string             `json:"tenantId,omitempty" cbor:"tenantId,omitempty"`
	Cluster     string             `json:"cluster,omitempty" cbor:"cluster,omitempty"`
	Namespace   string             `json:"namespace,omitempty" cbor:"namespace,omitempty"`
	ScopeID     string             `json:"scopeId,omitempty" cbor:"scopeId,omitempty"`
	WorkspaceID string             `json:"workspaceId,omitempty" cbor:"workspaceId,omitempty"`
	Messages    []agent.Message    `json:"messages" cbor:"messages"`
	ToolCalls   []agent.ToolCall   `json:"toolCalls" cbor:"toolCalls"`
	ToolResults []agent.ToolResult `json:"toolResults" cbor:"toolResults"`
	Outcome     Outcome            `json:"outcome" cbor:"outcome"`
	CreatedAt   time.Time          `json:"createdAt" cbor:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" cbor:"updatedAt"`
}

// Event is one line of a conversation's event log.
type Event struct {
	ID             EventID         `json:"id"`
	ConversationID ConversationID  `json:"conversation_id"`
	Seq            int64           `json:"seq"`
	Type           string          `json:"type"`
	SourceID       string          `json:"source_id,omitempty"`
	At             time.Time       `json:"at"`
	Payload        json.RawMessage `json:"payload"`
}
