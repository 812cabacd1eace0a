package stages

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/state"
)

// FinanceWorker is the domain specialist: budgets, spending, savings,
// debts. Interchangeable with the general worker as far as the pipeline
// is concerned.
type FinanceWorker struct {
	llmWorker
	now func() time.Time
}

func NewFinanceWorker(adapter llm.Adapter, timeout time.Duration, log *slog.Logger) *FinanceWorker {
	return &FinanceWorker{llmWorker: newLLMWorker(adapter, timeout, log), now: time.Now}
}

func (w *FinanceWorker) Name() state.Stage { return state.StageFinance }

func (w *FinanceWorker) Process(ctx context.Context, conv *state.Conversation) error {
	captureDiversion(conv, state.ProcessFinance, w.now)
	w.respond(ctx, conv, w.systemPrompt(conv), errorsx.ReasonWorkerFailed)
	return nil
}

func (w *FinanceWorker) systemPrompt(conv *state.Conversation) string {
	prompt := strings.TrimSpace(`
You are a personal-finance assistant on a messaging channel.
Help with budgeting, expense tracking, savings goals and debt questions.
Be practical and brief; one idea per message. Never give regulated
investment advice; suggest consulting a professional instead.`)
	if !conv.IsRegistered {
		prompt += "\nThe user has not finished registration; gently remind them they can complete it to unlock personalized tracking."
	}
	return prompt + personaContext(conv)
}

var _ pipeline.Stage = (*FinanceWorker)(nil)
