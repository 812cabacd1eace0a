package llm

import (
	"context"
	"time"

	"github.com/mainstar123/finchat/pkg/metrics"
	"github.com/mainstar123/finchat/pkg/resilience"
)

// CircuitBreakerAdapter wraps an Adapter with a named circuit from a
// shared registry. When the circuit is open it refuses the call without
// touching the upstream.
type CircuitBreakerAdapter struct {
	inner    Adapter
	registry *resilience.Registry
	obs      metrics.Observer
}

func NewCircuitBreakerAdapter(inner Adapter, registry *resilience.Registry, opts resilience.Options) *CircuitBreakerAdapter {
	if registry == nil {
		registry = resilience.NewRegistry()
	}
	registry.Register(inner.Name(), opts)
	return &CircuitBreakerAdapter{inner: inner, registry: registry}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	name := a.inner.Name()
	if !a.registry.CanExecute(name) {
		a.record(metrics.EventBreakerDenied)
		return Response{}, resilience.CircuitOpenError{Name: name}
	}
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit)
		}
		before := a.registry.GetState(name)
		a.registry.RecordFailure(name)
		if before != resilience.StateOpen && a.registry.GetState(name) == resilience.StateOpen {
			a.record(metrics.EventBreakerOpen)
		}
		return Response{}, err
	}
	before := a.registry.GetState(name)
	a.registry.RecordSuccess(name)
	if before != resilience.StateClosed && a.registry.GetState(name) == resilience.StateClosed {
		a.record(metrics.EventBreakerClose)
	}
	return resp, nil
}

func (a *CircuitBreakerAdapter) record(name string) {
	if a.obs == nil {
		return
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			"provider":  a.inner.Name(),
			"component": "llm",
		},
	})
}
