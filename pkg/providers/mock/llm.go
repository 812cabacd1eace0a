package mock

import (
	"context"
	"sync"

	"github.com/mainstar123/finchat/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	// Responses, when set, are returned in order; the last one repeats.
	Responses []string
	Err       error
	// Script, when set, decides the reply per call from the full input.
	Script func(input llm.Context) (llm.Response, error)
}

// LLMAdapter is a scriptable reasoning-service stand-in for tests and
// the example wiring.
type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls int
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	n := a.calls
	a.calls++
	a.mu.Unlock()
	if a.cfg.Script != nil {
		return a.cfg.Script(input)
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	if len(a.cfg.Responses) > 0 {
		if n >= len(a.cfg.Responses) {
			n = len(a.cfg.Responses) - 1
		}
		return llm.Response{Text: a.cfg.Responses[n]}, nil
	}
	return llm.Response{Text: a.cfg.ResponseText}, nil
}

var _ llm.Adapter = (*LLMAdapter)(nil)
