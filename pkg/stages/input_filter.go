package stages

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/lang"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/redact"
	"github.com/mainstar123/finchat/pkg/state"
)

const (
	// DefaultMaxContentChars bounds the latest user message.
	DefaultMaxContentChars = 1000
	// DefaultHistoryLimit caps non-system history per thread.
	DefaultHistoryLimit = 6

	truncationMarker = "…"
	minLangConfidence = 0.5
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// Summarizer refreshes the durable history summary when old turns are
// dropped. Best-effort; failures are ignored.
type Summarizer interface {
	Summarize(ctx context.Context, dropped, kept []messages.Message, previous string) (string, error)
}

type InputFilterConfig struct {
	MaxContentChars int
	HistoryLimit    int
}

// InputFilter cleans and bounds the latest user message, detects its
// language and deduplicates history. Idempotent within a turn: once
// control.inputValidated is set it passes straight through.
type InputFilter struct {
	cfg        InputFilterConfig
	detector   lang.Detector
	summarizer Summarizer
	log        *slog.Logger
	now        func() time.Time
}

func NewInputFilter(cfg InputFilterConfig, detector lang.Detector, summarizer Summarizer, log *slog.Logger) *InputFilter {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &InputFilter{cfg: cfg, detector: detector, summarizer: summarizer, log: log, now: time.Now}
}

func (f *InputFilter) Name() state.Stage { return state.StageInputFilter }

func (f *InputFilter) Process(ctx context.Context, conv *state.Conversation) error {
	if conv.Control.InputValidated || len(conv.Messages) == 0 {
		conv.Next = state.StageRouter
		return nil
	}

	last := len(conv.Messages) - 1
	if conv.Messages[last].Role == messages.RoleUser {
		conv.Messages[last].Content = f.sanitize(conv.Messages[last].Content)
		f.detectLanguage(ctx, conv, conv.Messages[last].Content)
	}

	deduped := messages.Dedup(conv.Messages)
	capped, dropped := messages.CapHistory(deduped, f.cfg.HistoryLimit)
	if dropped > 0 {
		f.log.Debug("history_capped",
			"thread_id", conv.ThreadID,
			"dropped", dropped,
			"kept", len(capped))
		f.summarize(ctx, conv, deduped, capped)
	}
	// Wholesale replacement, never concatenation: this is what keeps
	// history bounded and duplicate-free between turns.
	conv.Messages = capped

	conv.Memory.LastInteraction = f.now()
	conv.Control.InputValidated = true
	conv.Next = state.StageRouter
	return nil
}

func (f *InputFilter) sanitize(content string) string {
	content = scriptRe.ReplaceAllString(content, " ")
	content = tagRe.ReplaceAllString(content, " ")
	content = strings.TrimSpace(spaceRun.ReplaceAllString(content, " "))
	runes := []rune(content)
	if len(runes) > f.cfg.MaxContentChars {
		content = string(runes[:f.cfg.MaxContentChars]) + truncationMarker
	}
	return content
}

var spaceRun = regexp.MustCompile(`\s+`)

func (f *InputFilter) detectLanguage(ctx context.Context, conv *state.Conversation, text string) {
	if f.detector == nil || strings.TrimSpace(text) == "" {
		return
	}
	det, err := f.detector.Detect(ctx, text)
	if err != nil {
		f.log.Debug("language_detect_failed", "thread_id", conv.ThreadID, "error", err)
		return
	}
	if det.Code == "" || det.Code == "other" || det.Confidence < minLangConfidence {
		return
	}
	prev := conv.Memory.LanguageCode()
	conv.Memory.Language = &state.LanguagePreference{
		Code:       det.Code,
		Name:       det.Name,
		DetectedAt: f.now(),
	}
	if prev != det.Code {
		f.log.Info("language_detected",
			"thread_id", conv.ThreadID,
			"language", det.Code,
			"sample", redact.Text(text))
	}
}

func (f *InputFilter) summarize(ctx context.Context, conv *state.Conversation, before, after []messages.Message) {
	if f.summarizer == nil {
		return
	}
	var droppedMsgs []messages.Message
	skip := len(before) - len(after)
	for _, m := range before {
		if skip == 0 {
			break
		}
		if m.Role != messages.RoleSystem {
			droppedMsgs = append(droppedMsgs, m)
			skip--
		}
	}
	summary, err := f.summarizer.Summarize(ctx, droppedMsgs, after, conv.Memory.HistorySummary)
	if err != nil {
		f.log.Debug("summary_failed", "thread_id", conv.ThreadID, "error", err)
		return
	}
	if summary != "" {
		conv.Memory.HistorySummary = summary
	}
}

var _ pipeline.Stage = (*InputFilter)(nil)
