package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mainstar123/finchat/pkg/llm"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/redact"
	"github.com/mainstar123/finchat/pkg/state"
)

// chunk is the structuring service's per-message output schema.
type chunk struct {
	Content      string `json:"content"`
	MessageType  string `json:"message_type"`
	Domain       string `json:"domain"`
	Order        int    `json:"order"`
	GroupID      string `json:"group_id"`
	IsStandalone bool   `json:"is_standalone"`
	DelayMS      int    `json:"delay_ms"`
}

type OutputFilterConfig struct {
	Timeout   time.Duration
	MaxChunks int
}

// OutputFilter turns the worker's raw reply into an ordered sequence of
// paced, typed, channel-formatted messages. When the structuring service
// fails it passes the single original message through unmodified,
// output is never dropped.
type OutputFilter struct {
	cfg       OutputFilterConfig
	adapter   llm.Adapter
	formatter Formatter
	log       *slog.Logger
}

func NewOutputFilter(cfg OutputFilterConfig, adapter llm.Adapter, formatter Formatter, log *slog.Logger) *OutputFilter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 4
	}
	if formatter == nil {
		formatter = WhatsAppFormatter{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &OutputFilter{cfg: cfg, adapter: adapter, formatter: formatter, log: log}
}

func (f *OutputFilter) Name() state.Stage { return state.StageOutputFilter }

func (f *OutputFilter) Process(ctx context.Context, conv *state.Conversation) error {
	last, ok := conv.LastMessage()
	if !ok || last.Role != messages.RoleAssistant {
		conv.Next = state.StageEnd
		return nil
	}

	chunks := f.structure(ctx, conv, last.Content)
	groupID := uuid.NewString()
	out := make([]messages.Message, 0, len(chunks))
	for i, c := range chunks {
		content := strings.TrimSpace(c.Content)
		if content == "" {
			continue
		}
		out = append(out, messages.Message{
			Role:    messages.RoleAssistant,
			Content: f.formatter.Format(content),
			Annotations: &messages.Annotations{
				MessageType:  defaultType(c.MessageType, content),
				Domain:       orDefault(c.Domain, domainFor(conv)),
				Order:        i,
				GroupID:      groupID,
				IsStandalone: c.IsStandalone || len(chunks) == 1,
				DelayMS:      clampDelay(c.DelayMS, content),
			},
		})
	}
	if len(out) == 0 {
		out = append(out, passthrough(last, domainFor(conv), groupID))
	}

	// Replace the single raw reply with the annotated sequence.
	conv.Messages = append(conv.Messages[:len(conv.Messages)-1], out...)
	lastOut := out[len(out)-1]
	conv.Control.Breakdown = &state.MessageBreakdown{
		Count:           len(out),
		Multi:           len(out) > 1,
		ExpectsFollowUp: lastOut.Annotations.MessageType == "question" || strings.HasSuffix(lastOut.Content, "?"),
	}
	conv.Control.OutputValidated = true
	conv.Next = state.StageEnd
	return nil
}

// structure calls the tone/structuring service. Any failure, malformed
// payload or empty result yields a single pass-through chunk.
func (f *OutputFilter) structure(ctx context.Context, conv *state.Conversation, raw string) []chunk {
	fallback := []chunk{{Content: raw}}
	if f.adapter == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	input := llm.Context{Messages: []map[string]any{
		llm.SystemMessage(f.structuringPrompt(conv)),
		llm.UserMessage(raw),
	}}
	resp, err := f.adapter.Generate(ctx, input)
	if err != nil {
		f.log.Warn("structuring_failed", "thread_id", conv.ThreadID, "error", err)
		return fallback
	}
	var parsed []chunk
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		f.log.Warn("structuring_malformed",
			"thread_id", conv.ThreadID,
			"payload", redact.Text(resp.Text))
		return fallback
	}
	if len(parsed) == 0 {
		return fallback
	}
	if len(parsed) > f.cfg.MaxChunks {
		parsed = parsed[:f.cfg.MaxChunks]
	}
	return parsed
}

func (f *OutputFilter) structuringPrompt(conv *state.Conversation) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(fmt.Sprintf(`
You shape one assistant reply for delivery over a chat channel.
Split it into at most %d short messages a person would naturally send.
Output ONLY a valid JSON array:
[{"content":"","message_type":"statement|question|greeting|instruction","domain":"","order":0,"group_id":"","is_standalone":false,"delay_ms":0}]
Preserve the meaning exactly; do not add or remove information.`, f.cfg.MaxChunks)))
	sb.WriteString("\nDomain: " + domainFor(conv))
	if code := conv.Memory.LanguageCode(); code != "" {
		sb.WriteString("\nLanguage: " + code)
	}
	return sb.String()
}

func passthrough(last messages.Message, domain, groupID string) messages.Message {
	return messages.Message{
		Role:    messages.RoleAssistant,
		Content: last.Content,
		Annotations: &messages.Annotations{
			MessageType:  defaultType("", last.Content),
			Domain:       domain,
			Order:        0,
			GroupID:      groupID,
			IsStandalone: true,
			DelayMS:      clampDelay(0, last.Content),
		},
	}
}

func domainFor(conv *state.Conversation) string {
	return string(conv.Memory.CurrentProcess)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func defaultType(t, content string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "statement", "question", "greeting", "instruction":
		return t
	}
	if strings.HasSuffix(strings.TrimSpace(content), "?") {
		return "question"
	}
	return "statement"
}

// Delay defaults scale with length, bounded so the pacer never stalls a
// conversation or machine-guns the user.
const (
	minDelayMS = 250
	maxDelayMS = 4000
)

func clampDelay(delayMS int, content string) int {
	if delayMS <= 0 {
		delayMS = 600 + 15*len(content)
	}
	if delayMS < minDelayMS {
		return minDelayMS
	}
	if delayMS > maxDelayMS {
		return maxDelayMS
	}
	return delayMS
}

var _ pipeline.Stage = (*OutputFilter)(nil)
