package session

import (
	"errors"
	"strings"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

var (
	// ErrEmptyMessage rejects a send whose text is blank.
	ErrEmptyMessage = errors.New("empty message")
	// ErrTurnInProgress rejects a send while another turn is active.
	ErrTurnInProgress = errors.New("turn already in progress")
)

// State is the phase of the session's turn lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// Snapshot is a copy of the session state at one instant.
type Snapshot struct {
	ConversationID types.ConversationID
	Messages       []agent.Message
	IsLoading      bool
	CurrentTool    *agent.ToolCall
	LastError      *agent.AgentError
	State          State
	// LastTurn is the terminal state of the most recent finished turn:
	// StateCompleted, StateErrored or StateCancelled. It is StateIdle when
	// the last stream ended without a terminal event, and empty before
	// any turn has finished.
	LastTurn    State
	ToolCalls   []agent.ToolCall
	ToolResults []agent.ToolResult
}

// machine holds the session state and applies turn transitions. It does no
// I/O and no locking; Session serialises access.
//
// Every accepted turn gets a new generation number. Inputs tagged with an
// older generation belong to a cancelled or superseded turn and are ignored.
type machine struct {
	conversationID types.ConversationID
	messages       []agent.Message
	toolCalls      []agent.ToolCall
	toolResults    []agent.ToolResult

	isLoading   bool
	currentTool *agent.ToolCall
	lastError   *agent.AgentError
	state       State
	lastTurn    State

	gen         uint64
	acc         strings.Builder
	turnCalls   []agent.ToolCall
	turnResults []agent.ToolResult
}

func newMachine(id types.ConversationID) *machine {
	return &machine{conversationID: id, state: StateIdle}
}

// begin accepts a user message and opens a turn. A rejected message leaves
// every field untouched.
func (m *machine) begin(text string, now time.Time) (uint64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyMessage
	}
	if m.isLoading {
		return 0, ErrTurnInProgress
	}

	m.gen++
	ts := now
	m.messages = append(m.messages, agent.Message{Role: agent.RoleUser, Content: text, Timestamp: &ts})
	m.lastError = nil
	m.currentTool = nil
	m.discardTurn()
	m.isLoading = true
	m.state = StateSending
	return m.gen, nil
}

func (m *machine) current(turn uint64) bool {
	return turn == m.gen && m.isLoading
}

// opened marks the stream as established.
func (m *machine) opened(turn uint64) bool {
	if !m.current(turn) {
		return false
	}
	m.state = StateStreaming
	return true
}

// apply integrates one event. accepted is false when the event belongs to a
// turn that is no longer current; such events must not reach observers.
// A non-empty outcome means the turn ended and should be persisted.
func (m *machine) apply(turn uint64, ev agent.Event, now time.Time) (accepted bool, outcome types.Outcome) {
	if !m.current(turn) {
		return false, ""
	}
	if m.state == StateSending {
		m.state = StateStreaming
	}

	switch p := ev.Payload.(type) {
	case agent.Text:
		m.acc.WriteString(p.Text)
	case agent.ToolCall:
		tc := p
		m.currentTool = &tc
		m.turnCalls = append(m.turnCalls, p)
	case agent.ToolResult:
		m.turnResults = append(m.turnResults, p)
	case agent.TurnSummary:
		outcome = types.OutcomePartial
		if m.acc.Len() > 0 {
			ts := now
			m.messages = append(m.messages, agent.Message{Role: agent.RoleAssistant, Content: m.acc.String(), Timestamp: &ts})
			outcome = types.OutcomeResolved
		}
		m.finish(StateCompleted)
		return true, outcome
	case agent.ErrorPayload:
		m.lastError = agent.FromPayload(p)
		m.finish(StateErrored)
		return true, types.OutcomeFailed
	case agent.Thinking, agent.Unknown:
	}
	return true, ""
}

// fail ends the current turn with a transport-derived error.
func (m *machine) fail(turn uint64, err *agent.AgentError) bool {
	if !m.current(turn) {
		return false
	}
	m.lastError = err
	m.finish(StateErrored)
	return true
}

// finish closes the turn. Tool activity observed during the turn is kept;
// the partial reply is not.
func (m *machine) finish(terminal State) {
	m.toolCalls = append(m.toolCalls, m.turnCalls...)
	m.toolResults = append(m.toolResults, m.turnResults...)
	m.discardTurn()
	m.isLoading = false
	m.currentTool = nil
	m.lastTurn = terminal
	m.state = StateIdle
}

// cancel abandons the active turn. Events still in flight for it are void.
func (m *machine) cancel() bool {
	if !m.isLoading {
		return false
	}
	m.gen++
	m.discardTurn()
	m.isLoading = false
	m.currentTool = nil
	m.lastTurn = StateCancelled
	m.state = StateIdle
	return true
}

// abort cancels turn if it is still the active one.
func (m *machine) abort(turn uint64) bool {
	if !m.current(turn) {
		return false
	}
	return m.cancel()
}

// ended closes a turn whose stream finished without complete or error.
func (m *machine) ended(turn uint64) bool {
	if !m.current(turn) {
		return false
	}
	m.discardTurn()
	m.isLoading = false
	m.currentTool = nil
	m.lastTurn = StateIdle
	m.state = StateIdle
	return true
}

// reset starts a new, empty conversation.
func (m *machine) reset(id types.ConversationID) {
	m.cancel()
	m.conversationID = id
	m.messages = nil
	m.toolCalls = nil
	m.toolResults = nil
	m.lastError = nil
	m.lastTurn = ""
	m.state = StateIdle
}

// load replaces the conversation with a stored one.
func (m *machine) load(conv *types.StoredConversation) {
	m.reset(conv.ID)
	m.messages = append([]agent.Message(nil), conv.Messages...)
	m.toolCalls = append([]agent.ToolCall(nil), conv.ToolCalls...)
	m.toolResults = append([]agent.ToolResult(nil), conv.ToolResults...)
}

func (m *machine) discardTurn() {
	m.acc.Reset()
	m.turnCalls = nil
	m.turnResults = nil
}

func (m *machine) snapshot() Snapshot {
	s := Snapshot{
		ConversationID: m.conversationID,
		Messages:       append([]agent.Message(nil), m.messages...),
		IsLoading:      m.isLoading,
		State:          m.state,
		LastTurn:       m.lastTurn,
		ToolCalls:      append([]agent.ToolCall(nil), m.toolCalls...),
		ToolResults:    append([]agent.ToolResult(nil), m.toolResults...),
	}
	if m.currentTool != nil {
		tc := *m.currentTool
		s.CurrentTool = &tc
	}
	if m.lastError != nil {
		e := *m.lastError
		s.LastError = &e
	}
	return s
}
