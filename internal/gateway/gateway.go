// Package gateway hands out one session per conversation and runs queued
// turns against them, sharing a single limit on open agent streams.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	ctxengine "github.com/kubeagentix/kubeagentix-ce-sub001/internal/context"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/session"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// Options configures the sessions a Gateway creates.
type Options struct {
	Transport        agent.Transport
	Store            types.ConversationStore
	Engine           *ctxengine.Engine
	UserID           string
	TenantID         string
	Context          agent.RequestContext
	ToolPreferences  *agent.ToolPreferences
	ModelPreferences *agent.ModelPreferences

	// MaxConcurrent bounds the agent streams open at once across all
	// sessions. Defaults to 2.
	MaxConcurrent int64

	// OnSession is called once for every session the gateway creates,
	// before it is used. Typically subscribes observers.
	OnSession func(*session.Session)
}

// Gateway owns a set of sessions keyed by conversation id.
type Gateway struct {
	opts    Options
	limiter *semaphore.Weighted
	Queue   *Queue

	mu       sync.Mutex
	sessions map[types.ConversationID]*session.Session
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	g := &Gateway{
		opts:     opts,
		limiter:  semaphore.NewWeighted(opts.MaxConcurrent),
		Queue:    NewQueue(),
		sessions: make(map[types.ConversationID]*session.Session),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start starts the turn queue.
func (g *Gateway) Start(ctx context.Context) {
	g.Queue.Start(ctx)
}

// Stop cancels every active turn and waits for the queue to drain.
func (g *Gateway) Stop() {
	g.mu.Lock()
	for _, s := range g.sessions {
		s.Cancel()
	}
	g.mu.Unlock()
	g.Queue.Stop()
}

// Session returns the session for id, creating it on first use. A stored
// conversation with that id is resumed. An empty id starts a new
// conversation.
//
// Sessions are keyed by the id they were opened with; callers should not
// ClearHistory a gateway session but open a new one instead.
func (g *Gateway) Session(ctx context.Context, id types.ConversationID) (*session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.sessions[id]; ok && id != "" {
		return s, nil
	}

	s := session.New(session.Options{
		Transport:        g.opts.Transport,
		Store:            g.opts.Store,
		Engine:           g.opts.Engine,
		Limiter:          g.limiter,
		UserID:           g.opts.UserID,
		TenantID:         g.opts.TenantID,
		ConversationID:   id,
		Context:          g.opts.Context,
		ToolPreferences:  g.opts.ToolPreferences,
		ModelPreferences: g.opts.ModelPreferences,
	})
	if id != "" && g.opts.Store != nil {
		if err := s.Resume(ctx, id); err != nil && !errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("open session %s: %w", id, err)
		}
	}
	if g.opts.OnSession != nil {
		g.opts.OnSession(s)
	}
	g.sessions[s.ConversationID()] = s
	slog.Debug("session opened", "conversation_id", string(s.ConversationID()))
	return s, nil
}

// Forget cancels the session's active turn and drops it from the gateway.
func (g *Gateway) Forget(id types.ConversationID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.Cancel()
		delete(g.sessions, id)
	}
}

// Len returns the number of open sessions.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// TurnOption configures optional behavior on a Turn.
type TurnOption func(*Turn)

// WithOnDone sets a callback invoked when the turn has been processed.
func WithOnDone(fn func(reply string, err error)) TurnOption {
	return func(t *Turn) { t.OnDone = fn }
}

// Submit queues text as the next message of conversation id. Messages for
// one conversation are sent in order, each after the previous turn ended.
func (g *Gateway) Submit(id types.ConversationID, text string, opts ...TurnOption) (*Turn, error) {
	if id == "" {
		return nil, errors.New("submit: empty conversation id")
	}
	turn := NewTurn(id, text)
	for _, opt := range opts {
		opt(turn)
	}
	if err := g.Queue.Enqueue(turn); err != nil {
		return nil, err
	}
	return turn, nil
}

func (g *Gateway) process(ctx context.Context, turn *Turn) error {
	started := time.Now()
	turn.StartedAt = &started
	turn.Status = TurnStatusRunning

	s, err := g.Session(ctx, turn.ConversationID)
	if err == nil {
		err = s.Send(ctx, turn.Text)
	}

	ended := time.Now()
	turn.EndedAt = &ended
	turn.Err = err
	turn.Status = TurnStatusComplete
	if err != nil {
		turn.Status = TurnStatusFailed
	}

	var reply string
	if s != nil && err == nil {
		snap := s.Snapshot()
		if snap.LastTurn == session.StateCompleted {
			if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Role == agent.RoleAssistant {
				reply = snap.Messages[n-1].Content
			}
		}
	}
	if turn.OnDone != nil {
		turn.OnDone(reply, err)
	}
	return err
}
