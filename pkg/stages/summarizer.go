package stages

import (
	"context"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/messages"
)

const (
	defaultSummaryTimeout  = 5 * time.Second
	defaultSummaryMaxChars = 600
)

// HistorySummarizer folds turns dropped by the history cap into the
// running summary kept in memory, so later prompts retain a trace of
// what the capped transcript no longer shows.
type HistorySummarizer struct {
	adapter  llm.Adapter
	timeout  time.Duration
	maxChars int
}

func NewHistorySummarizer(adapter llm.Adapter, timeout time.Duration) *HistorySummarizer {
	if timeout <= 0 {
		timeout = defaultSummaryTimeout
	}
	return &HistorySummarizer{adapter: adapter, timeout: timeout, maxChars: defaultSummaryMaxChars}
}

func (s *HistorySummarizer) Summarize(ctx context.Context, dropped, kept []messages.Message, previous string) (string, error) {
	if s.adapter == nil || len(dropped) == 0 {
		return previous, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sb strings.Builder
	if previous != "" {
		sb.WriteString("Summary so far: ")
		sb.WriteString(previous)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Turns being dropped:\n")
	for _, m := range dropped {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	input := llm.Context{
		Messages: []map[string]any{
			llm.SystemMessage(summaryPrompt()),
			llm.UserMessage(sb.String()),
		},
	}
	resp, err := s.adapter.Generate(ctx, input)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return previous, nil
	}
	runes := []rune(summary)
	if len(runes) > s.maxChars {
		summary = string(runes[:s.maxChars])
	}
	return summary, nil
}

func summaryPrompt() string {
	return strings.TrimSpace(`
You maintain a rolling summary of an ongoing conversation.
Merge the existing summary with the turns being dropped into one short
paragraph. Keep user goals, stated facts and unresolved questions.
Output only the updated summary text.
`)
}

var _ Summarizer = (*HistorySummarizer)(nil)
