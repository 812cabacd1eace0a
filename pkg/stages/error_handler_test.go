package stages

import (
	"context"
	"testing"

	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/state"
)

type panickingLocalizer struct{}

func (panickingLocalizer) Apology(string) (string, error) {
	panic("localizer blew up")
}

func TestErrorHandlerAppendsApologyAndRetriesRouting(t *testing.T) {
	h := NewErrorHandler(nil, nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Append(messages.User("hello"))
	conv.Control.LastError = "classifier_invoke"

	if err := h.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	last, ok := conv.LastMessage()
	if !ok || last.Role != messages.RoleAssistant || last.Content == "" {
		t.Fatalf("no apology appended: %+v", last)
	}
	if conv.Control.LastError != "" {
		t.Fatalf("LastError not cleared: %q", conv.Control.LastError)
	}
	if conv.Control.ErrorCount != 1 {
		t.Fatalf("error count = %d", conv.Control.ErrorCount)
	}
	if conv.Next != state.StageRouter {
		t.Fatalf("next = %q, want router", conv.Next)
	}
}

func TestErrorHandlerStopsCyclingAfterRepeatedFailures(t *testing.T) {
	h := NewErrorHandler(nil, nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Append(messages.User("hello"))
	conv.Control.ErrorCount = 1
	conv.Control.LastError = "worker_failed"

	if err := h.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Next != state.StageOutputFilter {
		t.Fatalf("next = %q, want output filter after repeated failures", conv.Next)
	}
}

func TestErrorHandlerSurvivesPanickingLocalizer(t *testing.T) {
	h := NewErrorHandler(panickingLocalizer{}, nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Append(messages.User("hello"))
	conv.Control.LastError = "routing_failed"

	if err := h.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process propagated despite terminal fallback: %v", err)
	}
	last, ok := conv.LastMessage()
	if !ok || last.Role != messages.RoleAssistant || last.Content == "" {
		t.Fatal("no hardcoded apology appended")
	}
}

func TestErrorHandlerUsesLocalizedApology(t *testing.T) {
	h := NewErrorHandler(nil, nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.Language = &state.LanguagePreference{Code: "es"}
	conv.Append(messages.User("hola"))
	conv.Control.LastError = "worker_failed"

	if err := h.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	last, _ := conv.LastMessage()
	if last.Content != promptFor(promptApology, "es") {
		t.Fatalf("apology = %q", last.Content)
	}
}
