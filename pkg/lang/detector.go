package lang

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/llm"
)

// Detection is the language classifier's structured output.
type Detection struct {
	Code       string
	Name       string
	Confidence float64
}

type Detector interface {
	Detect(ctx context.Context, text string) (Detection, error)
}

var names = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"id": "Indonesian",
}

// DisplayName maps a language code to a human-readable name.
func DisplayName(code string) string {
	if n, ok := names[strings.ToLower(code)]; ok {
		return n
	}
	return code
}

// LLMDetector asks the reasoning service for a language classification.
type LLMDetector struct {
	adapter llm.Adapter
	timeout time.Duration
}

type detectOutput struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func NewLLMDetector(adapter llm.Adapter) *LLMDetector {
	return &LLMDetector{adapter: adapter, timeout: 2 * time.Second}
}

func (d *LLMDetector) Detect(ctx context.Context, text string) (Detection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}, errors.New("empty text")
	}
	if d.adapter == nil {
		return Detection{}, errors.New("missing adapter")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	input := llm.Context{
		Messages: []map[string]any{
			llm.SystemMessage(detectorPrompt()),
			llm.UserMessage(text),
		},
	}
	resp, err := d.adapter.Generate(ctx, input)
	if err != nil {
		return Detection{}, err
	}
	payload := llm.CleanJSON(resp.Text)
	var out detectOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return Detection{}, err
	}
	code := strings.ToLower(strings.TrimSpace(out.Language))
	if code == "" {
		return Detection{}, errors.New("empty language")
	}
	if out.Confidence <= 0 {
		out.Confidence = 0.4
	}
	return Detection{Code: code, Name: DisplayName(code), Confidence: out.Confidence}, nil
}

func detectorPrompt() string {
	return strings.TrimSpace(`
You classify the language of a chat message.
Output ONLY valid JSON:
{"language":"en|es|pt|id|other","confidence":0.0-1.0}
When unsure use "other" with low confidence.
`)
}

// StaticDetector always answers with a fixed detection. Test helper.
type StaticDetector struct {
	Result Detection
	Err    error
}

func (s StaticDetector) Detect(ctx context.Context, text string) (Detection, error) {
	return s.Result, s.Err
}

var _ Detector = (*LLMDetector)(nil)
var _ Detector = StaticDetector{}
