package state

import (
	"time"

	"github.com/mainstar123/finchat/pkg/messages"
)

// Stage names a pipeline stage. The router sets Next to exactly one of
// these; StageEnd terminates the turn.
type Stage string

const (
	StageInputFilter  Stage = "input_filter"
	StageRouter       Stage = "router"
	StageRegistration Stage = "registration_worker"
	StageFinance      Stage = "finance_worker"
	StageGeneral      Stage = "general_worker"
	StageErrorHandler Stage = "error_handler"
	StageOutputFilter Stage = "output_filter"
	StageEnd          Stage = "end"
)

// Process names a multi-turn task tracked in memory across turns.
type Process string

const (
	ProcessRegistration Process = "registration"
	ProcessFinance      Process = "finance"
	ProcessGeneral      Process = "general"
)

type RegistrationStep string

const (
	StepCollectName    RegistrationStep = "collect_name"
	StepCollectEmail   RegistrationStep = "collect_email"
	StepCollectDetails RegistrationStep = "collect_details"
	StepCollectConsent RegistrationStep = "collect_consent"
	StepConfirm        RegistrationStep = "confirm"
	StepCompleted      RegistrationStep = "completed"
)

type RegistrationState struct {
	Step                RegistrationStep `json:"step"`
	Name                string           `json:"name,omitempty"`
	Email               string           `json:"email,omitempty"`
	Birthdate           string           `json:"birthdate,omitempty"`
	Gender              string           `json:"gender,omitempty"`
	Country             string           `json:"country,omitempty"`
	ConsentGiven        bool             `json:"consent_given,omitempty"`
	Validated           bool             `json:"validated,omitempty"`
	AwaitingExitConfirm bool             `json:"awaiting_exit_confirm,omitempty"`
}

func (r *RegistrationState) Clone() *RegistrationState {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

type LanguagePreference struct {
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// InterruptedProcess snapshots exactly enough of memory to resume a
// process that was temporarily diverted. It is created only by a worker
// diverting away from an incomplete registration and cleared by the
// stage that resumes it.
type InterruptedProcess struct {
	Type          Process            `json:"type"`
	ReturnToStage Stage              `json:"return_to_stage"`
	OriginalStep  string             `json:"original_step"`
	Timestamp     time.Time          `json:"timestamp"`
	DataSnapshot  *RegistrationState `json:"data_snapshot,omitempty"`
}

// Memory is the durable cross-turn context.
type Memory struct {
	CurrentProcess  Process             `json:"current_process,omitempty"`
	CurrentStep     string              `json:"current_step,omitempty"`
	Registration    *RegistrationState  `json:"registration,omitempty"`
	Interrupted     *InterruptedProcess `json:"interrupted,omitempty"`
	Language        *LanguagePreference `json:"language,omitempty"`
	LastInteraction time.Time           `json:"last_interaction,omitempty"`
	HistorySummary  string              `json:"history_summary,omitempty"`
}

// LanguageCode returns the detected language code or empty.
func (m *Memory) LanguageCode() string {
	if m.Language == nil {
		return ""
	}
	return m.Language.Code
}

// RegistrationActive reports whether an incomplete registration process
// is in flight.
func (m *Memory) RegistrationActive() bool {
	if m.CurrentProcess != ProcessRegistration {
		return false
	}
	return m.Registration == nil || m.Registration.Step != StepCompleted
}

// MessageBreakdown summarizes what the output filter produced.
type MessageBreakdown struct {
	Count           int  `json:"count"`
	Multi           bool `json:"multi"`
	ExpectsFollowUp bool `json:"expects_follow_up"`
}

// Control carries transient per-turn flags. It is zeroed at turn start
// and never persisted across turns.
type Control struct {
	InputValidated        bool              `json:"input_validated,omitempty"`
	OutputValidated       bool              `json:"output_validated,omitempty"`
	LastError             string            `json:"last_error,omitempty"`
	LastStage             Stage             `json:"last_stage,omitempty"`
	RoutingReason         string            `json:"routing_reason,omitempty"`
	ShouldMaintainProcess bool              `json:"should_maintain_process,omitempty"`
	TemporaryDiversion    bool              `json:"temporary_diversion,omitempty"`
	ErrorCount            int               `json:"error_count,omitempty"`
	Breakdown             *MessageBreakdown `json:"breakdown,omitempty"`
}

// Conversation is the single mutable state object threaded through every
// stage within one turn. It is rehydrated from the context store at turn
// start and written back exactly once after the output filter.
type Conversation struct {
	UserID       string             `json:"user_id"`
	ThreadID     string             `json:"thread_id"`
	ChannelID    string             `json:"channel_id,omitempty"`
	IsRegistered bool               `json:"is_registered,omitempty"`
	Messages     []messages.Message `json:"messages"`
	Control      Control            `json:"control"`
	Memory       Memory             `json:"memory"`
	Next         Stage              `json:"next,omitempty"`
}

func NewConversation(userID, threadID, channelID string) *Conversation {
	return &Conversation{
		UserID:    userID,
		ThreadID:  threadID,
		ChannelID: channelID,
		Memory:    Memory{CurrentProcess: ProcessGeneral},
	}
}

// Append adds a message; history replacement between turns is the input
// filter's job, within a turn messages are append-only.
func (c *Conversation) Append(m messages.Message) {
	c.Messages = append(c.Messages, m)
}

// LastMessage returns the newest message or a zero Message when empty.
func (c *Conversation) LastMessage() (messages.Message, bool) {
	if len(c.Messages) == 0 {
		return messages.Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastUserContent returns the content of the newest user message.
func (c *Conversation) LastUserContent() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == messages.RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// RecentTurns returns up to n of the newest non-system messages, oldest
// first, for classifier context.
func (c *Conversation) RecentTurns(n int) []messages.Message {
	if n <= 0 {
		return nil
	}
	out := make([]messages.Message, 0, n)
	for i := len(c.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if c.Messages[i].Role == messages.RoleSystem {
			continue
		}
		out = append(out, c.Messages[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ResetTurn clears per-turn control flags and points the pipeline at its
// first stage. Durable memory is untouched. TemporaryDiversion survives:
// it mirrors the pending interruption snapshot in memory and the router
// needs it on the following turn to resume the diverted process.
func (c *Conversation) ResetTurn() {
	c.Control = Control{TemporaryDiversion: c.Control.TemporaryDiversion}
	c.Next = StageInputFilter
}

// Clone deep-copies the conversation so stores can hand out snapshots
// without sharing mutable slices.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]messages.Message(nil), c.Messages...)
	cp.Memory.Registration = c.Memory.Registration.Clone()
	if c.Memory.Interrupted != nil {
		ip := *c.Memory.Interrupted
		ip.DataSnapshot = c.Memory.Interrupted.DataSnapshot.Clone()
		cp.Memory.Interrupted = &ip
	}
	if c.Memory.Language != nil {
		lp := *c.Memory.Language
		cp.Memory.Language = &lp
	}
	if c.Control.Breakdown != nil {
		bd := *c.Control.Breakdown
		cp.Control.Breakdown = &bd
	}
	return &cp
}
