package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind is the tag of a streamed agent event.
type Kind string

const (
	KindThinking   Kind = "thinking"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindText       Kind = "text"
	KindComplete   Kind = "complete"
	KindError      Kind = "error"
)

// Event is one decoded record of a turn stream.
// Timestamp is zero when the record carried none or it could not be parsed.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	Payload   Payload
	Raw       json.RawMessage
}

// Payload is implemented by every event payload variant:
// Thinking, Text, ToolCall, ToolResult, ErrorPayload, TurnSummary, Unknown.
type Payload interface {
	payloadKind() Kind
}

// Thinking is intermediate reasoning text. It never enters history.
type Thinking struct {
	Text string
}

// Text is a fragment of the assistant reply.
type Text struct {
	Text string
}

// ErrorPayload is a terminal error reported by the agent.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// TokenUsage reports the tokens consumed by a turn.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// TurnSummary accompanies a complete event.
type TurnSummary struct {
	ToolCalls  int         `json:"toolCalls,omitempty"`
	Tokens     *TokenUsage `json:"tokens,omitempty"`
	DurationMs int64       `json:"durationMs,omitempty"`
}

// Unknown holds an event whose type this client does not recognise.
type Unknown struct {
	Type string
}

func (Thinking) payloadKind() Kind     { return KindThinking }
func (Text) payloadKind() Kind         { return KindText }
func (ToolCall) payloadKind() Kind     { return KindToolCall }
func (ToolResult) payloadKind() Kind   { return KindToolResult }
func (ErrorPayload) payloadKind() Kind { return KindError }
func (TurnSummary) payloadKind() Kind  { return KindComplete }
func (u Unknown) payloadKind() Kind    { return Kind(u.Type) }

// Terminal reports whether the event ends a turn.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// wireEvent is the JSON envelope of a streamed record.
type wireEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Text       *string         `json:"text"`
	Content    *string         `json:"content"`
	ToolCall   *ToolCall       `json:"toolCall"`
	ToolResult *ToolResult     `json:"toolResult"`
	Error      *ErrorPayload   `json:"error"`
	Summary    *TurnSummary    `json:"summary"`
}

var (
	errMissingType       = errors.New("missing type")
	errMissingToolCall   = errors.New("tool_call event without tool call")
	errMissingToolResult = errors.New("tool_result event without result")
	errMissingError      = errors.New("error event without error body")
)

// ParseEvent decodes a single record. Records that are not JSON objects,
// lack a type, or whose payload does not match the type are rejected.
func ParseEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if w.Type == "" {
		return Event{}, errMissingType
	}

	ev := Event{
		ID:        w.ID,
		Kind:      Kind(w.Type),
		Timestamp: parseTimestamp(w.Timestamp),
		Raw:       append(json.RawMessage(nil), line...),
	}

	switch ev.Kind {
	case KindText:
		ev.Payload = Text{Text: w.textValue()}
	case KindThinking:
		ev.Payload = Thinking{Text: w.textValue()}
	case KindToolCall:
		if w.ToolCall == nil || w.ToolCall.Name == "" {
			return Event{}, errMissingToolCall
		}
		ev.Payload = *w.ToolCall
	case KindToolResult:
		if w.ToolResult == nil {
			return Event{}, errMissingToolResult
		}
		ev.Payload = *w.ToolResult
	case KindError:
		if w.Error == nil {
			return Event{}, errMissingError
		}
		ev.Payload = *w.Error
	case KindComplete:
		var s TurnSummary
		if w.Summary != nil {
			s = *w.Summary
		}
		ev.Payload = s
	default:
		ev.Payload = Unknown{Type: w.Type}
	}
	return ev, nil
}

func (w *wireEvent) textValue() string {
	if w.Text != nil {
		return *w.Text
	}
	if w.Content != nil {
		return *w.Content
	}
	return ""
}

// parseTimestamp accepts an RFC 3339 string or a unix millisecond number.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}
