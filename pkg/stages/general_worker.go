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

// GeneralWorker answers anything outside registration and the finance
// domain.
type GeneralWorker struct {
	llmWorker
	now func() time.Time
}

func NewGeneralWorker(adapter llm.Adapter, timeout time.Duration, log *slog.Logger) *GeneralWorker {
	return &GeneralWorker{llmWorker: newLLMWorker(adapter, timeout, log), now: time.Now}
}

func (w *GeneralWorker) Name() state.Stage { return state.StageGeneral }

func (w *GeneralWorker) Process(ctx context.Context, conv *state.Conversation) error {
	captureDiversion(conv, state.ProcessGeneral, w.now)
	w.respond(ctx, conv, w.systemPrompt(conv), errorsx.ReasonWorkerFailed)
	return nil
}

func (w *GeneralWorker) systemPrompt(conv *state.Conversation) string {
	return strings.TrimSpace(`
You are a friendly, concise assistant chatting over a messaging channel.
Keep replies short and conversational; never mention internal routing.`) +
		personaContext(conv)
}

var _ pipeline.Stage = (*GeneralWorker)(nil)
