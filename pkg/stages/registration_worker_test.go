package stages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/profile"
	"github.com/mainstar123/finchat/pkg/state"
)

type failingProfiles struct {
	profile.Store
}

func (failingProfiles) FindByIdentity(context.Context, string) (*profile.Profile, error) {
	return nil, errors.New("store down")
}

func regConvWith(step state.RegistrationStep, input string) *state.Conversation {
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.CurrentProcess = state.ProcessRegistration
	conv.Memory.Registration = &state.RegistrationState{Step: step}
	conv.Memory.CurrentStep = string(step)
	conv.Append(messages.User(input))
	return conv
}

func lastAssistant(t *testing.T, conv *state.Conversation) string {
	t.Helper()
	last, ok := conv.LastMessage()
	if !ok || last.Role != messages.RoleAssistant {
		t.Fatalf("no assistant reply, last = %+v", last)
	}
	return last.Content
}

func TestRegistrationStartsByAskingName(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.CurrentProcess = state.ProcessRegistration
	conv.Append(messages.User("I want to sign up"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Registration == nil || conv.Memory.Registration.Step != state.StepCollectName {
		t.Fatalf("registration = %+v", conv.Memory.Registration)
	}
	lastAssistant(t, conv)
	if conv.Next != state.StageOutputFilter {
		t.Fatalf("next = %q, want output filter", conv.Next)
	}
}

func TestRegistrationAcceptsNameAndAdvances(t *testing.T) {
	store := profile.NewMemoryStore()
	w := NewRegistrationWorker(store, nil)
	conv := regConvWith(state.StepCollectName, "John Smith")

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	rs := conv.Memory.Registration
	if rs.Name != "John Smith" {
		t.Fatalf("name = %q", rs.Name)
	}
	if rs.Step != state.StepCollectEmail {
		t.Fatalf("step = %q, want collect_email", rs.Step)
	}
	if got := lastAssistant(t, conv); !strings.Contains(got, "John") {
		t.Fatalf("email prompt does not address the user: %q", got)
	}
	p, err := store.FindByIdentity(context.Background(), "u1")
	if err != nil || p == nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if p.Name != "John Smith" {
		t.Fatalf("persisted name = %q", p.Name)
	}
}

func TestRegistrationRepromptsOnBadName(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := regConvWith(state.StepCollectName, "what can you do for me?")

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Registration.Step != state.StepCollectName {
		t.Fatalf("step advanced on invalid name: %q", conv.Memory.Registration.Step)
	}
	lastAssistant(t, conv)
}

func TestRegistrationRepromptsOnBadEmail(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := regConvWith(state.StepCollectEmail, "not-an-email")

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Registration.Step != state.StepCollectEmail {
		t.Fatalf("step advanced on invalid email: %q", conv.Memory.Registration.Step)
	}
}

func TestRegistrationParsesDetails(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := regConvWith(state.StepCollectDetails, "1990-04-12, female, Brazil")
	conv.Memory.Registration.Name = "Ana Silva"
	conv.Memory.Registration.Email = "ana@example.com"

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	rs := conv.Memory.Registration
	if rs.Birthdate != "1990-04-12" || rs.Gender != "female" || rs.Country != "Brazil" {
		t.Fatalf("details = %q / %q / %q", rs.Birthdate, rs.Gender, rs.Country)
	}
	if rs.Step != state.StepCollectConsent {
		t.Fatalf("step = %q, want collect_consent", rs.Step)
	}
}

func TestRegistrationRejectsUnparseableBirthdate(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := regConvWith(state.StepCollectDetails, "someday, female, Brazil")

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Registration.Step != state.StepCollectDetails {
		t.Fatalf("step advanced on bad birthdate: %q", conv.Memory.Registration.Step)
	}
}

func TestRegistrationConfirmCompletes(t *testing.T) {
	store := profile.NewMemoryStore()
	w := NewRegistrationWorker(store, nil)
	conv := regConvWith(state.StepConfirm, "yes")
	rs := conv.Memory.Registration
	rs.Name = "John Smith"
	rs.Email = "john@example.com"
	rs.ConsentGiven = true

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if rs.Step != state.StepCompleted || !rs.Validated {
		t.Fatalf("registration not completed: %+v", rs)
	}
	if !conv.IsRegistered {
		t.Fatal("IsRegistered not set")
	}
	if conv.Memory.CurrentProcess != state.ProcessGeneral {
		t.Fatalf("process = %q, want general", conv.Memory.CurrentProcess)
	}
}

func TestRegistrationConfirmDeclinedRestarts(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := regConvWith(state.StepConfirm, "no")
	conv.Memory.Registration.Name = "John Smith"

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	rs := conv.Memory.Registration
	if rs.Step != state.StepCollectName || rs.Name != "" {
		t.Fatalf("registration not restarted: %+v", rs)
	}
}

func TestRegistrationStoreFailureGoesToErrorHandler(t *testing.T) {
	w := NewRegistrationWorker(failingProfiles{}, nil)
	conv := regConvWith(state.StepCollectName, "John Smith")

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Next != state.StageErrorHandler {
		t.Fatalf("next = %q, want error handler", conv.Next)
	}
	if conv.Control.LastError != "profile_store" {
		t.Fatalf("last error = %q", conv.Control.LastError)
	}
	if conv.Memory.Registration.Step != state.StepCollectName {
		t.Fatalf("step advanced despite store failure: %q", conv.Memory.Registration.Step)
	}
}

func TestRegistrationResumesInterruption(t *testing.T) {
	w := NewRegistrationWorker(profile.NewMemoryStore(), nil)
	conv := state.NewConversation("u1", "t1", "whatsapp")
	conv.Memory.CurrentProcess = state.ProcessFinance
	conv.Memory.Interrupted = &state.InterruptedProcess{
		Type:          state.ProcessRegistration,
		ReturnToStage: state.StageRegistration,
		OriginalStep:  string(state.StepCollectEmail),
		DataSnapshot:  &state.RegistrationState{Step: state.StepCollectEmail, Name: "John Smith"},
	}
	conv.Control.TemporaryDiversion = true
	conv.Append(messages.User("let's continue"))

	if err := w.Process(context.Background(), conv); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if conv.Memory.Interrupted != nil {
		t.Fatal("interruption not consumed")
	}
	if conv.Control.TemporaryDiversion {
		t.Fatal("TemporaryDiversion still set")
	}
	rs := conv.Memory.Registration
	if rs == nil || rs.Step != state.StepCollectEmail || rs.Name != "John Smith" {
		t.Fatalf("snapshot not restored: %+v", rs)
	}
	// The resume turn re-prompts; the user's filler message is not
	// consumed as an email.
	lastAssistant(t, conv)
}
