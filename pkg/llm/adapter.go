package llm

import "context"

// Context is the provider-agnostic input to one completion call.
type Context struct {
	Messages []map[string]any
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Tokens       int
	Usage        Usage
	FinishReason string
}

// Adapter is the thin boundary over "ask an external reasoning service".
// The router, the workers and the output filter all speak through it;
// the text it returns is opaque except for structured JSON decisions.
type Adapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

// SystemMessage and UserMessage build provider-neutral chat entries.
func SystemMessage(content string) map[string]any {
	return map[string]any{"role": "system", "content": content}
}

func UserMessage(content string) map[string]any {
	return map[string]any{"role": "user", "content": content}
}

func AssistantMessage(content string) map[string]any {
	return map[string]any{"role": "assistant", "content": content}
}
