package finchat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/metrics"
	"github.com/mainstar123/finchat/pkg/redact"
	"github.com/mainstar123/finchat/pkg/state"
)

// Inbound is one user message arriving from a channel.
type Inbound struct {
	UserID    string
	ChannelID string
	Content   string
}

// TurnResult reports what one turn produced. Replies are also delivered
// through the gateway before HandleInbound returns.
type TurnResult struct {
	ThreadID string
	Reset    bool
	Replies  []messages.Message
}

// HandleInbound runs one full turn: resolve the thread, serialize on
// it, run the pipeline, persist the state exactly once and deliver the
// replies. Turns for the same thread never interleave; turns for
// different threads run concurrently.
func (e *Engine) HandleInbound(ctx context.Context, in Inbound) (TurnResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return TurnResult{}, fmt.Errorf("missing user id")
	}
	threadID, err := e.threads.GetOrCreateThreadID(ctx, in.UserID, in.ChannelID)
	if err != nil {
		return TurnResult{}, errorsx.Wrap(err, errorsx.ReasonContextStore)
	}
	release := e.locks.Acquire(threadID)
	defer func() { release() }()

	// A concurrent turn may have reset the thread while this one waited
	// on the lock. Follow the mapping until the held lock matches it,
	// always taking the new lock before letting go of the old one.
	for {
		current, rerr := e.threads.GetOrCreateThreadID(ctx, in.UserID, in.ChannelID)
		if rerr != nil {
			return TurnResult{}, errorsx.Wrap(rerr, errorsx.ReasonContextStore)
		}
		if current == threadID {
			break
		}
		next := e.locks.Acquire(current)
		release()
		release = next
		threadID = current
	}

	conv, err := e.threads.GetState(ctx, threadID)
	if err != nil {
		return TurnResult{}, errorsx.Wrap(err, errorsx.ReasonContextStore)
	}
	if conv == nil {
		conv = state.NewConversation(in.UserID, threadID, in.ChannelID)
	}

	// Bound thread growth before the new message lands. A reset mints a
	// fresh thread carrying memory over; the transcript starts clean.
	newID, reset, err := e.threads.CheckAndResetIfNeeded(ctx, threadID, len(conv.Messages)+1)
	if err != nil {
		return TurnResult{}, errorsx.Wrap(err, errorsx.ReasonContextStore)
	}
	if reset {
		e.asyncObs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventThreadReset,
			Time: time.Now(),
			Tags: map[string]string{"old_thread_id": threadID, "thread_id": newID},
		})
		e.log.Info("thread_reset", "old_thread_id", threadID, "thread_id", newID)
		fresh := state.NewConversation(in.UserID, newID, in.ChannelID)
		fresh.IsRegistered = conv.IsRegistered
		fresh.Memory = conv.Memory
		conv = fresh
		next := e.locks.Acquire(newID)
		release()
		release = next
		threadID = newID
	}

	// A partial profile exists from the first registration step onward;
	// only a complete one counts as registered.
	if comp, perr := e.profiles.ValidateCompleteness(ctx, in.UserID); perr != nil {
		e.log.Warn("profile_lookup_failed", "user_id", in.UserID, "error", perr)
	} else if comp.IsComplete {
		conv.IsRegistered = true
	}

	turnStart := len(conv.Messages)
	conv.Append(messages.User(in.Content))
	conv.ResetTurn()
	e.engine.RunTurn(ctx, conv)

	if err := e.threads.SetState(ctx, threadID, conv); err != nil {
		return TurnResult{}, errorsx.Wrap(err, errorsx.ReasonContextStore)
	}

	var replies []messages.Message
	for _, m := range conv.Messages[turnStart:] {
		if m.Role == messages.RoleAssistant {
			replies = append(replies, m)
		}
	}
	if err := e.pacer.Deliver(ctx, in.UserID, in.ChannelID, replies); err != nil {
		e.log.Error("delivery_failed",
			"thread_id", threadID,
			"user_id", in.UserID,
			"content_sample", redact.Text(in.Content),
			"error", err)
		return TurnResult{ThreadID: threadID, Reset: reset, Replies: replies}, err
	}
	return TurnResult{ThreadID: threadID, Reset: reset, Replies: replies}, nil
}
