package pipeline

import (
	"context"
	"sync"

	"github.com/mainstar123/finchat/pkg/state"
)

// Stage is one step of the routing pipeline. A stage mutates the
// conversation in place and points Next at its successor. Stages must be
// exception-safe: they route forward on failure instead of returning an
// error; a non-nil error from Process means the stage itself is broken
// and the engine falls back to the error handler.
type Stage interface {
	Name() state.Stage
	Process(ctx context.Context, conv *state.Conversation) error
}

// Registry maps stage names to stages. Explicitly constructed and
// injected so tests can assemble partial pipelines.
type Registry struct {
	mu     sync.RWMutex
	stages map[state.Stage]Stage
}

func NewRegistry() *Registry {
	return &Registry{stages: make(map[state.Stage]Stage)}
}

func (r *Registry) Register(s Stage) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.stages[s.Name()] = s
	r.mu.Unlock()
}

func (r *Registry) Get(name state.Stage) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}
