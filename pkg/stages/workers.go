package stages

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/state"
)

// captureDiversion is shared by the finance and general workers: before
// responding while a registration is mid-flight, snapshot it so it can
// be resumed. A worker claims the current process for its own domain
// only when it is not itself stomping an existing, still-active
// interruption.
func captureDiversion(conv *state.Conversation, self state.Process, now func() time.Time) {
	m := &conv.Memory
	if m.Interrupted != nil {
		// A diversion of a diversion: keep the original snapshot.
		conv.Control.TemporaryDiversion = true
		return
	}
	if !m.RegistrationActive() {
		m.CurrentProcess = self
		return
	}
	step := ""
	if m.Registration != nil {
		step = string(m.Registration.Step)
	}
	m.Interrupted = &state.InterruptedProcess{
		Type:          state.ProcessRegistration,
		ReturnToStage: state.StageRegistration,
		OriginalStep:  step,
		Timestamp:     now(),
		DataSnapshot:  m.Registration.Clone(),
	}
	conv.Control.TemporaryDiversion = true
	m.CurrentProcess = self
	m.CurrentStep = ""
}

// llmWorker holds what the finance and general workers have in common:
// generate one assistant reply, fall back gracefully, hand off to the
// output filter.
type llmWorker struct {
	adapter llm.Adapter
	timeout time.Duration
	log     *slog.Logger
}

func newLLMWorker(adapter llm.Adapter, timeout time.Duration, log *slog.Logger) llmWorker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return llmWorker{adapter: adapter, timeout: timeout, log: log}
}

// respond appends exactly one assistant message: the model's reply, or a
// process-preserving fallback when the upstream call fails.
func (w llmWorker) respond(ctx context.Context, conv *state.Conversation, systemPrompt string, reason errorsx.ReasonCode) {
	reply, err := w.generate(ctx, conv, systemPrompt)
	if err != nil {
		w.log.Warn("worker_completion_failed",
			"thread_id", conv.ThreadID,
			"error", errorsx.Wrap(err, reason))
		conv.Control.LastError = string(reason)
		conv.Append(messages.Assistant(promptFor(promptFallback, conv.Memory.LanguageCode())))
		conv.Next = state.StageOutputFilter
		return
	}
	conv.Append(messages.Assistant(reply))
	conv.Next = state.StageOutputFilter
}

func (w llmWorker) generate(ctx context.Context, conv *state.Conversation, systemPrompt string) (string, error) {
	if w.adapter == nil {
		return "", errorsx.Wrap(errMissingAdapter, errorsx.ReasonCompletionGenerate)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	input := llm.Context{Messages: []map[string]any{llm.SystemMessage(systemPrompt)}}
	for _, m := range conv.RecentTurns(DefaultHistoryLimit) {
		input.Messages = append(input.Messages, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	resp, err := w.adapter.Generate(ctx, input)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", errEmptyCompletion
	}
	return reply, nil
}

var (
	errMissingAdapter  = errorString("missing completion adapter")
	errEmptyCompletion = errorString("empty completion")
)

type errorString string

func (e errorString) Error() string { return string(e) }

func personaContext(conv *state.Conversation) string {
	var sb strings.Builder
	if code := conv.Memory.LanguageCode(); code != "" {
		sb.WriteString("\nAnswer in the user's language: " + code + ".")
	}
	if conv.Memory.HistorySummary != "" {
		sb.WriteString("\nEarlier context: " + conv.Memory.HistorySummary)
	}
	return sb.String()
}
