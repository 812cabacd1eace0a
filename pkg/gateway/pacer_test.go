package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/messages"
)

func annotated(content string, order, delayMS int) messages.Message {
	return messages.Message{
		Role:    messages.RoleAssistant,
		Content: content,
		Annotations: &messages.Annotations{
			MessageType: "statement",
			Order:       order,
			GroupID:     "g1",
			DelayMS:     delayMS,
		},
	}
}

func TestPacerDeliversInAnnotationOrder(t *testing.T) {
	mock := &Mock{}
	p := NewPacer(mock, nil, nil)
	p.SetSleep(func(context.Context, time.Duration) error { return nil })

	msgs := []messages.Message{
		annotated("third", 2, 500),
		annotated("first", 0, 500),
		annotated("second", 1, 500),
	}
	if err := p.Deliver(context.Background(), "u1", "whatsapp", msgs); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %d, want 3", len(sent))
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if sent[i].Content != w {
			t.Fatalf("sent[%d] = %q, want %q", i, sent[i].Content, w)
		}
	}
}

func TestPacerClampsDelays(t *testing.T) {
	mock := &Mock{}
	p := NewPacer(mock, nil, nil)
	var delays []time.Duration
	p.SetSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	msgs := []messages.Message{
		annotated("a", 0, 10),
		annotated("b", 1, 90000),
		{Role: messages.RoleAssistant, Content: "c"},
	}
	if err := p.Deliver(context.Background(), "u1", "whatsapp", msgs); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if delays[0] != pacerMinDelay {
		t.Fatalf("delay[0] = %v, want min %v", delays[0], pacerMinDelay)
	}
	if delays[1] != pacerMaxDelay {
		t.Fatalf("delay[1] = %v, want max %v", delays[1], pacerMaxDelay)
	}
	if delays[2] != pacerMinDelay {
		t.Fatalf("delay[2] = %v, want min for unannotated", delays[2])
	}
}

func TestPacerStopsOnSendFailure(t *testing.T) {
	mock := &Mock{Err: errors.New("channel down")}
	p := NewPacer(mock, nil, nil)
	p.SetSleep(func(context.Context, time.Duration) error { return nil })

	msgs := []messages.Message{annotated("a", 0, 300), annotated("b", 1, 300)}
	err := p.Deliver(context.Background(), "u1", "whatsapp", msgs)
	if err == nil {
		t.Fatal("want error")
	}
	if !errorsx.HasReason(err, errorsx.ReasonGatewaySend) {
		t.Fatalf("reason = %q, want gateway_send", errorsx.Reason(err))
	}
	if got := len(mock.Sent()); got != 0 {
		t.Fatalf("sent = %d, want 0", got)
	}
}

func TestPacerHonorsContextCancellation(t *testing.T) {
	mock := &Mock{}
	p := NewPacer(mock, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Deliver(ctx, "u1", "whatsapp", []messages.Message{annotated("a", 0, 4000)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := len(mock.Sent()); got != 0 {
		t.Fatalf("sent = %d, want 0", got)
	}
}
