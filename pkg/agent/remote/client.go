package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// ChatPath is appended to the configured base URL.
const ChatPath = "/api/agent/chat"

const maxErrorBodyBytes = 64 * 1024

// Client implements agent.Transport over HTTP with an NDJSON response body.
type Client struct {
	config     *agent.Config
	httpClient *http.Client
	retry      *RetryPolicy
}

// New creates a new streaming client with the given configuration.
// config.Timeout bounds the wait for response headers only; a stream may
// run for as long as the agent keeps sending.
func New(config *agent.Config) *Client {
	headerTimeout := config.Timeout
	if headerTimeout <= 0 {
		headerTimeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout

	retry := DefaultRetryPolicy()
	if config.MaxAttempts > 0 {
		retry.MaxAttempts = config.MaxAttempts
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Transport: transport},
		retry:      retry,
	}
}

// WithRetryPolicy replaces the retry policy used when opening streams.
func (c *Client) WithRetryPolicy(p *RetryPolicy) *Client {
	c.retry = p
	return c
}

// Open posts the turn request and returns the streaming response body.
// Failures before the body is handed back are returned as *agent.AgentError,
// except cancellation of ctx which is returned as ctx.Err().
func (c *Client) Open(ctx context.Context, req *agent.TurnRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agent.InvalidRequestError(fmt.Errorf("marshaling request: %w", err))
	}

	var stream io.ReadCloser
	attempt := 0
	err = c.retry.Execute(ctx, func() error {
		attempt++
		rc, err := c.open(ctx, body)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("open agent stream failed", "attempt", attempt, "conversation_id", req.ConversationID, "error", err)
			}
			return err
		}
		stream = rc
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return stream, nil
}

func (c *Client) open(ctx context.Context, body []byte) (io.ReadCloser, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + ChatPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, agent.NetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, agent.HTTPError(resp.StatusCode, errorMessage(resp.Header.Get("Content-Type"), respBody))
	}

	return resp.Body, nil
}

// errorMessage extracts a human readable message from an error response body.
// JSON bodies contribute their message field; HTML bodies are rendered to
// markdown; anything else is used verbatim.
func errorMessage(contentType string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch {
	case mediaType == "application/json" || strings.HasPrefix(text, "{"):
		var parsed struct {
			Message string `json:"message"`
			Error   any    `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			if parsed.Message != "" {
				return parsed.Message
			}
			switch e := parsed.Error.(type) {
			case string:
				return e
			case map[string]any:
				if m, ok := e["message"].(string); ok {
					return m
				}
			}
		}
	case mediaType == "text/html" || strings.HasPrefix(strings.ToLower(text), "<!doctype html") || strings.HasPrefix(strings.ToLower(text), "<html"):
		md, err := htmltomarkdown.ConvertString(text)
		if err == nil {
			return strings.TrimSpace(md)
		}
	}
	return text
}
