package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Pipeline and breaker event names.
const (
	EventTurnStart     = "turn_start"
	EventTurnEnd       = "turn_end"
	EventStageEnter    = "stage_enter"
	EventStageError    = "stage_error"
	EventRouterForced  = "router_forced"
	EventThreadReset   = "thread_reset"
	EventDelivery      = "delivery"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"
	EventRateLimit     = "rate_limit"
)
