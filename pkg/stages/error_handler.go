package stages

import (
	"context"
	"log/slog"

	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/state"
)

// Localizer resolves an apology text for a language. Injected so tests
// can exercise the terminal fallback path.
type Localizer interface {
	Apology(langCode string) (string, error)
}

type promptLocalizer struct{}

func (promptLocalizer) Apology(langCode string) (string, error) {
	return promptFor(promptApology, langCode), nil
}

// ErrorHandler converts any stage failure into a safe user-facing
// message and loops back to the router. It is the one stage that must
// never fail itself: an error in the localizer degrades to a hardcoded,
// dependency-free message, never a propagated panic.
type ErrorHandler struct {
	localizer Localizer
	log       *slog.Logger
}

func NewErrorHandler(localizer Localizer, log *slog.Logger) *ErrorHandler {
	if localizer == nil {
		localizer = promptLocalizer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ErrorHandler{localizer: localizer, log: log}
}

func (h *ErrorHandler) Name() state.Stage { return state.StageErrorHandler }

func (h *ErrorHandler) Process(ctx context.Context, conv *state.Conversation) error {
	reason := conv.Control.LastError
	conv.Control.LastError = ""
	conv.Control.ErrorCount++

	conv.Append(messages.Assistant(h.apology(conv.Memory.LanguageCode())))
	h.log.Warn("error_handled",
		"thread_id", conv.ThreadID,
		"reason", reason,
		"errors_this_turn", conv.Control.ErrorCount)

	// Repeated failures within one turn stop cycling through the
	// router and deliver the apology instead.
	if conv.Control.ErrorCount >= 2 {
		conv.Next = state.StageOutputFilter
		return nil
	}
	conv.Next = state.StageRouter
	return nil
}

func (h *ErrorHandler) apology(langCode string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = hardcodedApology
		}
	}()
	text, err := h.localizer.Apology(langCode)
	if err != nil || text == "" {
		return hardcodedApology
	}
	return text
}

var _ pipeline.Stage = (*ErrorHandler)(nil)
