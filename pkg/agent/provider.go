package agent

import (
	"context"
	"io"
	"time"
)

// Transport opens the event stream for a turn.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and status handling. A non-nil error returned from Open is
// the turn's terminal error and should be an *AgentError.
type Transport interface {
	Open(ctx context.Context, req *TurnRequest) (io.ReadCloser, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *TurnRequest) (io.ReadCloser, error)

// Open calls f.
func (f TransportFunc) Open(ctx context.Context, req *TurnRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

// Config holds common configuration for agent transports.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
}
