// Package session drives conversational turns against a remote agent and
// keeps the resulting conversation state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	ctxengine "github.com/kubeagentix/kubeagentix-ce-sub001/internal/context"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/dispatch"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// Options configures a Session. Transport is required.
type Options struct {
	Transport agent.Transport
	// Store receives finished conversations. Nil disables persistence.
	Store types.ConversationStore
	// Engine trims history to a token budget. Nil sends full history.
	Engine *ctxengine.Engine
	// Limiter bounds the number of turn streams open at once across
	// every session sharing it. Nil means unlimited.
	Limiter *semaphore.Weighted

	UserID           string
	TenantID         string
	ConversationID   types.ConversationID
	Context          agent.RequestContext
	ToolPreferences  *agent.ToolPreferences
	ModelPreferences *agent.ModelPreferences

	Now func() time.Time
}

// Session is the public face of one conversation. It is safe for concurrent
// use; at most one turn runs at a time.
type Session struct {
	transport agent.Transport
	store     types.ConversationStore
	engine    *ctxengine.Engine
	limiter   *semaphore.Weighted
	userID    string
	tenantID  string
	now       func() time.Time
	observers *dispatch.Dispatcher

	mu         sync.Mutex
	m          *machine
	rc         agent.RequestContext
	tools      *agent.ToolPreferences
	model      *agent.ModelPreferences
	createdAt  time.Time
	turnRC     agent.RequestContext
	cancelTurn context.CancelFunc
}

// New creates a session. A conversation id is generated when none is given.
func New(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	id := opts.ConversationID
	if id == "" {
		id = types.NewConversationID()
	}
	return &Session{
		transport: opts.Transport,
		store:     opts.Store,
		engine:    opts.Engine,
		limiter:   opts.Limiter,
		userID:    opts.UserID,
		tenantID:  opts.TenantID,
		now:       now,
		observers: dispatch.New(),
		m:         newMachine(id),
		rc:        opts.Context.Clone(),
		tools:     opts.ToolPreferences,
		model:     opts.ModelPreferences,
		createdAt: now(),
	}
}

// Subscribe registers an observer for every event of every turn.
// Observers run synchronously on the goroutine calling Send, after the
// event has been applied to the session state.
func (s *Session) Subscribe(fn dispatch.Observer) (unsubscribe func()) {
	return s.observers.Subscribe(fn)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.snapshot()
}

// ConversationID returns the current conversation id.
func (s *Session) ConversationID() types.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.conversationID
}

// SetContext replaces the request context used by later turns. It reports
// whether anything changed; a structurally equal context is ignored.
func (s *Session) SetContext(rc agent.RequestContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rc.Equal(rc) {
		return false
	}
	s.rc = rc.Clone()
	return true
}

// Context returns a copy of the current request context.
func (s *Session) Context() agent.RequestContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rc.Clone()
}

// SetToolPreferences applies to turns started after the call.
func (s *Session) SetToolPreferences(p *agent.ToolPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = p
}

// SetModelPreferences applies to turns started after the call.
func (s *Session) SetModelPreferences(p *agent.ModelPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = p
}

// Send runs one turn and blocks until it ends.
//
// It returns ErrEmptyMessage or ErrTurnInProgress without touching state
// when the message is rejected, the *agent.AgentError when the turn ends in
// error, and nil when the turn completes, is cancelled, or the stream ends
// without a terminal event.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	turn, err := s.m.begin(text, s.now())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	req := s.engine.BuildRequest(string(s.m.conversationID), s.userID, s.m.messages, s.rc, s.tools, s.model)
	s.turnRC = req.Context
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelTurn = cancel
	s.mu.Unlock()
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Acquire(turnCtx, 1); err != nil {
			s.abort(turn)
			return nil
		}
		defer s.limiter.Release(1)
	}

	stream, err := s.transport.Open(turnCtx, req)
	if err != nil {
		if turnCtx.Err() != nil {
			s.abort(turn)
			return nil
		}
		return s.fail(ctx, turn, agent.AsAgentError(err))
	}
	defer stream.Close()

	s.mu.Lock()
	open := s.m.opened(turn)
	s.mu.Unlock()
	if !open {
		return nil
	}

	var (
		terminal bool
		result   error
	)
	decoder := agent.NewDecoder()
	readErr := decoder.Decode(turnCtx, stream, func(ev agent.Event) bool {
		s.mu.Lock()
		accepted, outcome := s.m.apply(turn, ev, s.now())
		var record *types.StoredConversation
		if outcome != "" {
			record = s.project(outcome)
		}
		var lastErr *agent.AgentError
		if ev.Kind == agent.KindError && s.m.lastError != nil {
			e := *s.m.lastError
			lastErr = &e
		}
		s.mu.Unlock()

		if !accepted {
			return false
		}
		if record != nil {
			s.persist(ctx, record)
		}
		s.observers.Dispatch(ev)
		if outcome != "" {
			terminal = true
			if lastErr != nil {
				result = lastErr
			}
			return false
		}
		return true
	})

	switch {
	case terminal:
		return result
	case readErr != nil && turnCtx.Err() != nil:
		s.abort(turn)
		return nil
	case readErr != nil:
		return s.fail(ctx, turn, agent.StreamError(readErr))
	}

	s.mu.Lock()
	ended := s.m.ended(turn)
	id := s.m.conversationID
	s.mu.Unlock()
	if ended {
		slog.Warn("agent stream ended without a terminal event", "conversation_id", string(id))
	}
	return nil
}

// Cancel aborts the active turn, if any. History and the store are left as
// they were before the turn's reply began.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Session) cancelLocked() {
	if s.m.cancel() {
		slog.Debug("turn cancelled", "conversation_id", string(s.m.conversationID))
	}
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
}

// ClearHistory cancels any active turn and starts a new, empty conversation.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.m.reset(types.NewConversationID())
	s.createdAt = s.now()
}

// Resume makes a stored conversation the current one.
func (s *Session) Resume(ctx context.Context, id types.ConversationID) error {
	if s.store == nil {
		return fmt.Errorf("resume %s: no conversation store", id)
	}
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m.isLoading {
		return ErrTurnInProgress
	}
	s.m.load(conv)
	s.createdAt = conv.CreatedAt
	s.rc.Cluster = conv.Cluster
	s.rc.Namespace = conv.Namespace
	s.rc.ScopeID = conv.ScopeID
	s.rc.WorkspaceID = conv.WorkspaceID
	return nil
}

func (s *Session) abort(turn uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.abort(turn)
}

// fail ends the turn with a transport error. Observers see it as an error
// event.
func (s *Session) fail(ctx context.Context, turn uint64, ae *agent.AgentError) error {
	now := s.now()
	s.mu.Lock()
	if !s.m.fail(turn, ae) {
		s.mu.Unlock()
		return nil
	}
	record := s.project(types.OutcomeFailed)
	s.mu.Unlock()

	slog.Warn("agent turn failed", "conversation_id", string(record.ID), "code", ae.Code, "error", ae.Message)
	s.persist(ctx, record)
	s.observers.Dispatch(agent.Event{
		Kind:      agent.KindError,
		Timestamp: now,
		Payload:   agent.ErrorPayload{Code: ae.Code, Message: ae.Message, Retryable: ae.Retryable},
	})
	return ae
}
