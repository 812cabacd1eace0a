package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/providers/mock"
	"github.com/mainstar123/finchat/pkg/state"
)

func TestFinanceWorkerCapturesRegistrationInterruption(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "A budget starts with tracking expenses."})
	w := NewFinanceWorker(adapter, time.Second, nil)

	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.CurrentProcess = state.ProcessRegistration
	conv.Memory.Registration = &state.RegistrationState{Step: state.StepCollectEmail, Name: "John Smith"}
	conv.Append(messages.User("wait, how do budgets work?"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	ip := conv.Memory.Interrupted
	if ip == nil {
		t.Fatal("interruption not captured")
	}
	if ip.Type != state.ProcessRegistration || ip.ReturnToStage != state.StageRegistration {
		t.Fatalf("interruption = %+v", ip)
	}
	if ip.DataSnapshot == nil || ip.DataSnapshot.Name != "John Smith" {
		t.Fatalf("snapshot = %+v", ip.DataSnapshot)
	}
	if !conv.Control.TemporaryDiversion {
		t.Fatal("TemporaryDiversion not set")
	}
	if conv.Memory.CurrentProcess != state.ProcessFinance {
		t.Fatalf("process = %q, want finance", conv.Memory.CurrentProcess)
	}
	if conv.Next != state.StageOutputFilter {
		t.Fatalf("next = %q, want output filter", conv.Next)
	}
}

func TestWorkerDoesNotStompExistingInterruption(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "sure"})
	w := NewGeneralWorker(adapter, time.Second, nil)

	original := &state.InterruptedProcess{
		Type:          state.ProcessRegistration,
		ReturnToStage: state.StageRegistration,
		OriginalStep:  string(state.StepCollectName),
	}
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.CurrentProcess = state.ProcessFinance
	conv.Memory.Interrupted = original
	conv.Append(messages.User("and one more thing"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Interrupted != original {
		t.Fatal("existing interruption replaced")
	}
	if !conv.Control.TemporaryDiversion {
		t.Fatal("TemporaryDiversion not set")
	}
}

func TestWorkerLLMFailureFallsBackWithoutErrorHandler(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("completion failed")})
	w := NewGeneralWorker(adapter, time.Second, nil)

	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Append(messages.User("hello"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	last, ok := conv.LastMessage()
	if !ok || last.Role != messages.RoleAssistant || last.Content == "" {
		t.Fatalf("no fallback reply: %+v", last)
	}
	if conv.Next != state.StageOutputFilter {
		t.Fatalf("next = %q, want output filter", conv.Next)
	}
	if conv.Control.LastError == "" {
		t.Fatal("LastError not recorded")
	}
}

func TestGeneralWorkerClaimsProcessWhenNoRegistration(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "hi!"})
	w := NewGeneralWorker(adapter, time.Second, nil)

	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Append(messages.User("hello"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Interrupted != nil {
		t.Fatal("interruption captured with nothing to interrupt")
	}
	if conv.Memory.CurrentProcess != state.ProcessGeneral {
		t.Fatalf("process = %q, want general", conv.Memory.CurrentProcess)
	}
}
