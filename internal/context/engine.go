// internal/context/engine.go
package context

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// perMessageOverhead approximates the framing tokens around each message.
const perMessageOverhead = 4

// Engine assembles turn requests whose history fits a token budget.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// New creates a context engine with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "gpt-4").
// maxTokens <= 0 disables trimming.
func New(model string, maxTokens int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
	}, nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Fit returns the longest suffix of history whose estimated size fits the
// budget. The newest message is always kept, even when it alone exceeds
// the budget. The input slice is not modified.
func (e *Engine) Fit(history []agent.Message) []agent.Message {
	if e == nil || e.maxTokens <= 0 || len(history) == 0 {
		return history
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := e.countTokens(history[i].Content) + perMessageOverhead
		if used+cost > e.maxTokens && start < len(history) {
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}

// BuildRequest assembles the request for a turn from snapshots of the
// session state, trimming history to the budget. A nil engine sends the
// full history.
func (e *Engine) BuildRequest(
	conversationID, userID string,
	history []agent.Message,
	rc agent.RequestContext,
	tools *agent.ToolPreferences,
	model *agent.ModelPreferences,
) *agent.TurnRequest {
	return agent.NewTurnRequest(conversationID, userID, e.Fit(history), rc, tools, model)
}
