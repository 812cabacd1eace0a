package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/metrics"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/redact"
	"github.com/mainstar123/finchat/pkg/state"
)

// RoutingDecision is the classifier's structured output. Never shown to
// the user.
type RoutingDecision struct {
	RouteTo               string `json:"route_to"`
	Reasoning             string `json:"reasoning"`
	ShouldMaintainProcess bool   `json:"should_maintain_process"`
}

type RouterConfig struct {
	ClassifierTimeout time.Duration
	HistoryTurns      int
}

// Router decides the next stage with priority-ordered rules, consulting
// the external classifier only when no rule claims the turn. Rule 1,
// an active, incomplete registration, always overrides the classifier.
type Router struct {
	cfg     RouterConfig
	adapter llm.Adapter
	obs     metrics.Observer
	log     *slog.Logger
}

func NewRouter(cfg RouterConfig, adapter llm.Adapter, obs metrics.Observer, log *slog.Logger) *Router {
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = 5 * time.Second
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 6 // three user/assistant exchanges
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{cfg: cfg, adapter: adapter, obs: obs, log: log}
}

func (r *Router) Name() state.Stage { return state.StageRouter }

func (r *Router) Process(ctx context.Context, conv *state.Conversation) error {
	defer func() {
		if rec := recover(); rec != nil {
			conv.Control.LastError = string(errorsx.ReasonRoutingFailed)
			conv.Control.RoutingReason = "routing failure"
			conv.Next = state.StageErrorHandler
		}
	}()
	r.route(ctx, conv)
	r.log.Info("router_decision",
		"thread_id", conv.ThreadID,
		"next", string(conv.Next),
		"reason", conv.Control.RoutingReason,
		"maintain_process", conv.Control.ShouldMaintainProcess)
	return nil
}

func (r *Router) route(ctx context.Context, conv *state.Conversation) {
	// Rule 1: an active incomplete registration owns the turn.
	if conv.Memory.RegistrationActive() {
		if r.continuityChecks(conv) {
			return
		}
	}

	// Rule 2: a pending interruption resumes its owner stage.
	if conv.Memory.Interrupted != nil && conv.Control.TemporaryDiversion {
		r.force(conv, conv.Memory.Interrupted.ReturnToStage, "resume_interrupted", true)
		return
	}

	// Rule 3: classifier fallback.
	decision := r.classify(ctx, conv)

	// Rule 4: registration continuity is never delegated to the
	// classifier: if rule 1's condition still holds, force it.
	if conv.Memory.RegistrationActive() {
		r.force(conv, state.StageRegistration, "registration_override", true)
		return
	}

	conv.Control.RoutingReason = decision.Reasoning
	conv.Control.ShouldMaintainProcess = decision.ShouldMaintainProcess
	conv.Next = stageForRoute(decision.RouteTo)
}

// continuityChecks applies rule 1. It returns false only when the user
// just confirmed abandoning the registration, in which case routing
// falls through to the classifier.
func (r *Router) continuityChecks(conv *state.Conversation) bool {
	last := conv.LastUserContent()
	rs := conv.Memory.Registration

	if rs != nil && rs.AwaitingExitConfirm {
		if IsAffirmative(last) {
			// Confirmed exit: drop the process and let the classifier
			// route this turn.
			conv.Memory.CurrentProcess = state.ProcessGeneral
			conv.Memory.CurrentStep = ""
			conv.Memory.Registration = nil
			conv.Memory.Interrupted = nil
			conv.Control.TemporaryDiversion = false
			conv.Control.RoutingReason = "registration_cancelled"
			r.log.Info("registration_cancelled", "thread_id", conv.ThreadID)
			return false
		}
		rs.AwaitingExitConfirm = false
		r.force(conv, state.StageRegistration, "exit_declined_resuming", true)
		return true
	}

	// Exit phrases request a confirmation round-trip rather than an
	// immediate abandon. Strictly higher priority than the
	// field-shape heuristics below.
	if IsExitPhrase(last) {
		if rs == nil {
			rs = &state.RegistrationState{Step: state.StepCollectName}
			conv.Memory.Registration = rs
		}
		rs.AwaitingExitConfirm = true
		r.force(conv, state.StageRegistration, "exit_confirmation_requested", true)
		return true
	}

	if rs != nil {
		switch {
		case rs.Step == state.StepCollectName && LooksLikeName(last):
			r.force(conv, state.StageRegistration, "name_candidate", true)
			return true
		case rs.Step == state.StepCollectEmail && LooksLikeEmail(last):
			r.force(conv, state.StageRegistration, "email_candidate", true)
			return true
		}
	}

	r.force(conv, state.StageRegistration, "registration_continuity", true)
	return true
}

func (r *Router) force(conv *state.Conversation, stage state.Stage, reason string, maintain bool) {
	conv.Control.RoutingReason = reason
	conv.Control.ShouldMaintainProcess = maintain
	conv.Next = stage
	r.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventRouterForced,
		Time: time.Now(),
		Tags: map[string]string{"stage": string(stage), "reason": reason},
	})
}

// classify invokes the external reasoning service. Any failure,
// circuit open, timeout, malformed JSON, defaults to the general
// worker without maintaining a process.
func (r *Router) classify(ctx context.Context, conv *state.Conversation) RoutingDecision {
	fallback := RoutingDecision{RouteTo: "general", Reasoning: "classifier_fallback"}
	if r.adapter == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ClassifierTimeout)
	defer cancel()

	input := llm.Context{Messages: []map[string]any{llm.SystemMessage(r.classifierPrompt(conv))}}
	for _, m := range conv.RecentTurns(r.cfg.HistoryTurns) {
		input.Messages = append(input.Messages, map[string]any{"role": string(m.Role), "content": m.Content})
	}

	resp, err := r.adapter.Generate(ctx, input)
	if err != nil {
		r.log.Warn("classifier_failed",
			"thread_id", conv.ThreadID,
			"error", errorsx.Wrap(err, errorsx.ReasonClassifierInvoke))
		return fallback
	}
	var decision RoutingDecision
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &decision); err != nil {
		r.log.Warn("classifier_malformed",
			"thread_id", conv.ThreadID,
			"payload", redact.Text(resp.Text))
		return fallback
	}
	if stageForRoute(decision.RouteTo) == state.StageGeneral && decision.RouteTo != "general" {
		decision.Reasoning = "unknown_route:" + decision.RouteTo
	}
	return decision
}

func (r *Router) classifierPrompt(conv *state.Conversation) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(`
You are the routing engine of a conversational assistant.
Output ONLY valid JSON:
{"route_to":"registration|finance|general","reasoning":"","should_maintain_process":false}
Route to "registration" when the user wants to sign up or finish signing up,
"finance" for personal-finance questions (budgets, expenses, savings, debts),
"general" for everything else.`))
	sb.WriteString(fmt.Sprintf("\nCurrent process: %s", conv.Memory.CurrentProcess))
	if conv.Memory.CurrentStep != "" {
		sb.WriteString(fmt.Sprintf(" (step %s)", conv.Memory.CurrentStep))
	}
	if code := conv.Memory.LanguageCode(); code != "" {
		sb.WriteString("\nUser language: " + code)
	}
	if conv.Memory.HistorySummary != "" {
		sb.WriteString("\nConversation summary: " + conv.Memory.HistorySummary)
	}
	return sb.String()
}

func stageForRoute(route string) state.Stage {
	switch strings.ToLower(strings.TrimSpace(route)) {
	case "registration", "registration_worker", "signup":
		return state.StageRegistration
	case "finance", "finance_worker", "domain":
		return state.StageFinance
	case "end":
		return state.StageEnd
	default:
		return state.StageGeneral
	}
}

var _ pipeline.Stage = (*Router)(nil)
