package agent

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single entry in a conversation history.
type Message struct {
	Role      Role       `json:"role" cbor:"role"`
	Content   string     `json:"content" cbor:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty" cbor:"timestamp,omitempty"`
}

// ToolCall represents a tool invocation announced by the agent.
type ToolCall struct {
	ID        string         `json:"id" cbor:"id"`
	Name      string         `json:"name" cbor:"name"`
	Arguments map[string]any `json:"arguments,omitempty" cbor:"arguments,omitempty"`
}

// ToolResult carries the outcome of a tool invocation.
type ToolResult struct {
	ToolCallID string `json:"toolCallId" cbor:"toolCallId"`
	Name       string `json:"name,omitempty" cbor:"name,omitempty"`
	Result     any    `json:"result,omitempty" cbor:"result,omitempty"`
	IsError    bool   `json:"isError,omitempty" cbor:"isError,omitempty"`
}

// TimeRange bounds the window of interest for a request.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResourceRef names a resource selected by the user.
type ResourceRef struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// RequestContext scopes a turn to a cluster, namespace or workspace.
type RequestContext struct {
	Cluster           string            `json:"cluster,omitempty"`
	Namespace         string            `json:"namespace,omitempty"`
	ScopeID           string            `json:"scopeId,omitempty"`
	WorkspaceID       string            `json:"workspaceId,omitempty"`
	TenantID          string            `json:"tenantId,omitempty"`
	TimeRange         *TimeRange        `json:"timeRange,omitempty"`
	SelectedResources []ResourceRef     `json:"selectedResources,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Equal reports whether two contexts are structurally identical.
func (c RequestContext) Equal(o RequestContext) bool {
	if c.Cluster != o.Cluster ||
		c.Namespace != o.Namespace ||
		c.ScopeID != o.ScopeID ||
		c.WorkspaceID != o.WorkspaceID ||
		c.TenantID != o.TenantID {
		return false
	}
	switch {
	case c.TimeRange == nil && o.TimeRange == nil:
	case c.TimeRange == nil || o.TimeRange == nil:
		return false
	case !c.TimeRange.Start.Equal(o.TimeRange.Start) || !c.TimeRange.End.Equal(o.TimeRange.End):
		return false
	}
	if len(c.SelectedResources) != len(o.SelectedResources) {
		return false
	}
	for i := range c.SelectedResources {
		if c.SelectedResources[i] != o.SelectedResources[i] {
			return false
		}
	}
	if len(c.Extra) != len(o.Extra) {
		return false
	}
	for k, v := range c.Extra {
		if ov, ok := o.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so that later mutations of the receiver do not
// leak into requests already built from it.
func (c RequestContext) Clone() RequestContext {
	out := c
	if c.TimeRange != nil {
		tr := *c.TimeRange
		out.TimeRange = &tr
	}
	if c.SelectedResources != nil {
		out.SelectedResources = append([]ResourceRef(nil), c.SelectedResources...)
	}
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ToolPreferences constrain which tools the agent may use during a turn.
type ToolPreferences struct {
	MaxToolCalls    int      `json:"maxToolCalls,omitempty"`
	EnabledTools    []string `json:"enabledTools,omitempty"`
	RequireApproval bool     `json:"requireApproval,omitempty"`
}

func (p *ToolPreferences) clone() *ToolPreferences {
	if p == nil {
		return nil
	}
	out := *p
	if p.EnabledTools != nil {
		out.EnabledTools = append([]string(nil), p.EnabledTools...)
	}
	return &out
}

// ModelPreferences select the model backing the agent for a turn.
type ModelPreferences struct {
	ProviderID  string   `json:"providerId,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
}

func (p *ModelPreferences) clone() *ModelPreferences {
	if p == nil {
		return nil
	}
	out := *p
	if p.Temperature != nil {
		t := *p.Temperature
		out.Temperature = &t
	}
	return &out
}

// TurnRequest is the body posted to the agent endpoint to start a turn.
type TurnRequest struct {
	ConversationID   string            `json:"conversationId"`
	UserID           string            `json:"userId"`
	Messages         []Message         `json:"messages"`
	Context          RequestContext    `json:"context"`
	ToolPreferences  *ToolPreferences  `json:"toolPreferences,omitempty"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
}

// NewTurnRequest builds a request from snapshots of the given values.
// Messages, context and preferences are copied.
func NewTurnRequest(conversationID, userID string, messages []Message, rc RequestContext, tools *ToolPreferences, model *ModelPreferences) *TurnRequest {
	return &TurnRequest{
		ConversationID:   conversationID,
		UserID:           userID,
		Messages:         append([]Message(nil), messages...),
		Context:          rc.Clone(),
		ToolPreferences:  tools.clone(),
		ModelPreferences: model.clone(),
	}
}
