package session

import (
	"context"
	"log/slog"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// project builds the stored form of the conversation. Caller holds s.mu.
// Scoping fields come from the context the turn was sent with.
func (s *Session) project(outcome types.Outcome) *types.StoredConversation {
	tenant := s.turnRC.TenantID
	if tenant == "" {
		tenant = s.tenantID
	}
	return &types.StoredConversation{
		ID:          s.m.conversationID,
		UserID:      s.userID,
		TenantID:    tenant,
		Cluster:     s.turnRC.Cluster,
		Namespace:   s.turnRC.Namespace,
		ScopeID:     s.turnRC.ScopeID,
		WorkspaceID: s.turnRC.WorkspaceID,
		Messages:    append([]agent.Message(nil), s.m.messages...),
		ToolCalls:   append([]agent.ToolCall(nil), s.m.toolCalls...),
		ToolResults: append([]agent.ToolResult(nil), s.m.toolResults...),
		Outcome:     outcome,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.now(),
	}
}

// persist saves the record. The turn's own cancellation must not abort the
// write, and a failed write never fails the turn.
func (s *Session) persist(ctx context.Context, record *types.StoredConversation) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(context.WithoutCancel(ctx), record); err != nil {
		slog.Error("failed to persist conversation", "conversation_id", string(record.ID), "outcome", string(record.Outcome), "error", err)
	}
}
