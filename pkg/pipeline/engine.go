package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mainstar123/finchat/pkg/metrics"
	"github.com/mainstar123/finchat/pkg/state"
)

// DefaultMaxHops bounds stage transitions within one turn. The error
// handler loops back to the router, so a persistently failing worker
// could otherwise cycle forever.
const DefaultMaxHops = 16

type Engine struct {
	registry *Registry
	maxHops  int
	obs      metrics.Observer
	log      *slog.Logger
}

func NewEngine(registry *Registry, maxHops int, obs metrics.Observer, log *slog.Logger) *Engine {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{registry: registry, maxHops: maxHops, obs: obs, log: log}
}

// RunTurn drives the conversation through stages until a stage sets
// Next to StageEnd, a stage name is unknown, or the hop budget runs out.
// No error ever escapes: stage failures route to the error handler, and
// an error-handler failure terminates the turn.
func (e *Engine) RunTurn(ctx context.Context, conv *state.Conversation) {
	e.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventTurnStart,
		Time: time.Now(),
		Tags: map[string]string{"thread_id": conv.ThreadID},
	})
	for hops := 0; hops < e.maxHops; hops++ {
		if conv.Next == "" || conv.Next == state.StageEnd {
			break
		}
		stage, ok := e.registry.Get(conv.Next)
		if !ok {
			e.log.Error("unknown_stage", "stage", string(conv.Next), "thread_id", conv.ThreadID)
			break
		}
		current := conv.Next
		conv.Control.LastStage = current
		e.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventStageEnter,
			Time: time.Now(),
			Tags: map[string]string{"stage": string(current), "thread_id": conv.ThreadID},
		})
		if err := e.runStage(ctx, stage, conv); err != nil {
			e.log.Error("stage_failed", "stage", string(current), "error", err, "thread_id", conv.ThreadID)
			e.obs.RecordEvent(metrics.MetricsEvent{
				Name: metrics.EventStageError,
				Time: time.Now(),
				Tags: map[string]string{"stage": string(current), "thread_id": conv.ThreadID},
			})
			if current == state.StageErrorHandler {
				// The error handler is the last line of defense; if it is
				// broken the turn ends instead of cycling.
				conv.Next = state.StageEnd
				break
			}
			conv.Control.LastError = err.Error()
			conv.Next = state.StageErrorHandler
			continue
		}
		if conv.Next == current {
			e.log.Error("stage_self_loop", "stage", string(current), "thread_id", conv.ThreadID)
			break
		}
	}
	conv.Next = state.StageEnd
	e.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventTurnEnd,
		Time: time.Now(),
		Tags: map[string]string{"thread_id": conv.ThreadID},
	})
}

// runStage isolates stage panics so a buggy stage degrades into the
// error-handler path rather than crashing the session.
func (e *Engine) runStage(ctx context.Context, stage Stage, conv *state.Conversation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StagePanicError{Stage: stage.Name(), Value: r}
		}
	}()
	return stage.Process(ctx, conv)
}

type StagePanicError struct {
	Stage state.Stage
	Value any
}

func (e *StagePanicError) Error() string {
	return "stage panic in " + string(e.Stage)
}
