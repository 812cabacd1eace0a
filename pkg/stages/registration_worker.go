package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/pipeline"
	"github.com/mainstar123/finchat/pkg/profile"
	"github.com/mainstar123/finchat/pkg/state"
)

// RegistrationWorker advances the fixed registration step sequence,
// persisting each collected field through the user-profile store.
// Invalid input re-prompts for the same step without advancing.
type RegistrationWorker struct {
	profiles profile.Store
	log      *slog.Logger
	now      func() time.Time
}

func NewRegistrationWorker(profiles profile.Store, log *slog.Logger) *RegistrationWorker {
	if log == nil {
		log = slog.Default()
	}
	return &RegistrationWorker{profiles: profiles, log: log, now: time.Now}
}

func (w *RegistrationWorker) Name() state.Stage { return state.StageRegistration }

func (w *RegistrationWorker) Process(ctx context.Context, conv *state.Conversation) error {
	m := &conv.Memory
	langCode := m.LanguageCode()

	// Consume a pending interruption snapshot: registration is the
	// stage that resumes it, so it clears it.
	resumed := false
	if m.Interrupted != nil && m.Interrupted.Type == state.ProcessRegistration {
		if m.Interrupted.DataSnapshot != nil {
			m.Registration = m.Interrupted.DataSnapshot.Clone()
		}
		m.Interrupted = nil
		conv.Control.TemporaryDiversion = false
		resumed = true
	}

	if m.Registration == nil {
		m.Registration = &state.RegistrationState{Step: state.StepCollectName}
		w.setStep(conv, state.StepCollectName)
		w.reply(conv, promptFor(promptAskName, langCode))
		return nil
	}
	rs := m.Registration
	m.CurrentProcess = state.ProcessRegistration
	m.CurrentStep = string(rs.Step)

	if rs.AwaitingExitConfirm {
		w.reply(conv, promptFor(promptExitConfirm, langCode))
		return nil
	}

	if resumed {
		w.reply(conv, fmt.Sprintf(promptFor(promptResume, langCode), w.stepPrompt(rs, langCode)))
		return nil
	}

	input := strings.TrimSpace(conv.LastUserContent())
	switch rs.Step {
	case state.StepCollectName:
		if !LooksLikeName(input) {
			w.reply(conv, promptFor(promptAskNameAgain, langCode))
			return nil
		}
		rs.Name = input
		if !w.persist(ctx, conv) {
			return nil
		}
		w.setStep(conv, state.StepCollectEmail)
		w.reply(conv, fmt.Sprintf(promptFor(promptAskEmail, langCode), firstName(rs.Name)))

	case state.StepCollectEmail:
		if !LooksLikeEmail(input) {
			w.reply(conv, promptFor(promptBadEmail, langCode))
			return nil
		}
		rs.Email = strings.ToLower(input)
		if !w.persist(ctx, conv) {
			return nil
		}
		w.setStep(conv, state.StepCollectDetails)
		w.reply(conv, promptFor(promptAskDetails, langCode))

	case state.StepCollectDetails:
		birthdate, gender, country, ok := parseDetails(input)
		if !ok {
			w.reply(conv, promptFor(promptBadDetails, langCode))
			return nil
		}
		rs.Birthdate, rs.Gender, rs.Country = birthdate, gender, country
		if !w.persist(ctx, conv) {
			return nil
		}
		w.setStep(conv, state.StepCollectConsent)
		w.reply(conv, promptFor(promptAskConsent, langCode))

	case state.StepCollectConsent:
		if !IsAffirmative(input) {
			w.reply(conv, promptFor(promptAskConsent, langCode))
			return nil
		}
		rs.ConsentGiven = true
		if !w.persist(ctx, conv) {
			return nil
		}
		w.setStep(conv, state.StepConfirm)
		w.reply(conv, fmt.Sprintf(promptFor(promptConfirm, langCode), w.summary(rs)))

	case state.StepConfirm:
		switch {
		case IsAffirmative(input):
			rs.Step = state.StepCompleted
			rs.Validated = true
			if !w.persist(ctx, conv) {
				rs.Step = state.StepConfirm
				rs.Validated = false
				return nil
			}
			w.complete(conv)
			w.reply(conv, fmt.Sprintf(promptFor(promptWelcomeDone, langCode), firstName(rs.Name)))
		case IsNegative(input):
			*rs = state.RegistrationState{Step: state.StepCollectName}
			w.setStep(conv, state.StepCollectName)
			w.reply(conv, promptFor(promptRestart, langCode))
		default:
			w.reply(conv, promptFor(promptConfirmAgain, langCode))
		}

	default: // completed: nothing left to collect
		w.complete(conv)
		w.reply(conv, fmt.Sprintf(promptFor(promptWelcomeDone, langCode), firstName(rs.Name)))
	}
	return nil
}

func (w *RegistrationWorker) setStep(conv *state.Conversation, step state.RegistrationStep) {
	conv.Memory.Registration.Step = step
	conv.Memory.CurrentProcess = state.ProcessRegistration
	conv.Memory.CurrentStep = string(step)
}

// complete clears the process back to general. Registration is done, not
// diverted, so any stored interruption goes with it.
func (w *RegistrationWorker) complete(conv *state.Conversation) {
	conv.Memory.CurrentProcess = state.ProcessGeneral
	conv.Memory.CurrentStep = ""
	conv.Memory.Interrupted = nil
	conv.Control.TemporaryDiversion = false
	conv.IsRegistered = true
}

func (w *RegistrationWorker) reply(conv *state.Conversation, text string) {
	conv.Append(messages.Assistant(text))
	conv.Next = state.StageOutputFilter
}

// persist writes the collected fields through the profile store. On
// failure the step does not advance and the turn goes to the error
// handler; the user's answer is not lost, they will be re-prompted.
func (w *RegistrationWorker) persist(ctx context.Context, conv *state.Conversation) bool {
	if w.profiles == nil {
		return true
	}
	rs := conv.Memory.Registration
	p := &profile.Profile{
		ID:           conv.UserID,
		Name:         rs.Name,
		Email:        rs.Email,
		Birthdate:    rs.Birthdate,
		Gender:       rs.Gender,
		Country:      rs.Country,
		ConsentGiven: rs.ConsentGiven,
	}
	existing, err := w.profiles.FindByIdentity(ctx, conv.UserID)
	if err == nil {
		if existing == nil {
			err = w.profiles.Create(ctx, p)
		} else {
			err = w.profiles.Update(ctx, p)
		}
	}
	if err != nil {
		w.log.Error("profile_persist_failed",
			"thread_id", conv.ThreadID,
			"user_id", conv.UserID,
			"error", errorsx.Wrap(err, errorsx.ReasonProfileStore))
		conv.Control.LastError = string(errorsx.ReasonProfileStore)
		conv.Next = state.StageErrorHandler
		return false
	}
	return true
}

func (w *RegistrationWorker) stepPrompt(rs *state.RegistrationState, langCode string) string {
	switch rs.Step {
	case state.StepCollectName:
		return promptFor(promptAskName, langCode)
	case state.StepCollectEmail:
		return fmt.Sprintf(promptFor(promptAskEmail, langCode), firstName(rs.Name))
	case state.StepCollectDetails:
		return promptFor(promptAskDetails, langCode)
	case state.StepCollectConsent:
		return promptFor(promptAskConsent, langCode)
	case state.StepConfirm:
		return fmt.Sprintf(promptFor(promptConfirm, langCode), w.summary(rs))
	default:
		return promptFor(promptAskName, langCode)
	}
}

func (w *RegistrationWorker) summary(rs *state.RegistrationState) string {
	parts := []string{rs.Name, rs.Email}
	if rs.Birthdate != "" {
		parts = append(parts, rs.Birthdate)
	}
	if rs.Country != "" {
		parts = append(parts, rs.Country)
	}
	return strings.Join(parts, ", ")
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

// parseDetails reads "birthdate, gender, country". The birthdate must
// parse as a date; gender and country are taken as given.
func parseDetails(input string) (birthdate, gender, country string, ok bool) {
	parts := strings.Split(input, ",")
	if len(parts) < 3 {
		return "", "", "", false
	}
	birthdate = strings.TrimSpace(parts[0])
	gender = strings.TrimSpace(parts[1])
	country = strings.TrimSpace(strings.Join(parts[2:], ","))
	if gender == "" || country == "" {
		return "", "", "", false
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "01/02/2006"} {
		if _, err := time.Parse(layout, birthdate); err == nil {
			return birthdate, gender, country, true
		}
	}
	return "", "", "", false
}

var _ pipeline.Stage = (*RegistrationWorker)(nil)
