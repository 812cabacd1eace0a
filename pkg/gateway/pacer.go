package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mainstar123/finchat/pkg/errorsx"
	"github.com/mainstar123/finchat/pkg/messages"
	"github.com/mainstar123/finchat/pkg/metrics"
)

const (
	pacerMinDelay = 250 * time.Millisecond
	pacerMaxDelay = 4 * time.Second
)

// Pacer sends a turn's messages through a gateway in annotation order,
// sleeping each message's delay first so multi-part replies read like a
// person typing. A send failure aborts the remainder of the group;
// partial delivery beats out-of-order delivery.
type Pacer struct {
	gw    Gateway
	obs   metrics.Observer
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error
}

func NewPacer(gw Gateway, obs metrics.Observer, log *slog.Logger) *Pacer {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pacer{gw: gw, obs: obs, log: log, sleep: sleepCtx}
}

// SetSleep overrides the delay function. Tests only.
func (p *Pacer) SetSleep(fn func(context.Context, time.Duration) error) {
	p.sleep = fn
}

func (p *Pacer) Deliver(ctx context.Context, userID, channelID string, msgs []messages.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ordered := append([]messages.Message(nil), msgs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return annotationOrder(ordered[i]) < annotationOrder(ordered[j])
	})
	start := time.Now()
	for i, m := range ordered {
		if err := p.sleep(ctx, delayFor(m)); err != nil {
			return err
		}
		out := Outbound{
			UserID:    userID,
			ChannelID: channelID,
			Content:   m.Content,
			Metadata:  metadataFor(m),
		}
		if err := p.gw.Send(ctx, out); err != nil {
			p.log.Error("delivery_failed",
				"gateway", p.gw.Name(),
				"user_id", userID,
				"position", i,
				"error", err)
			return errorsx.Wrap(fmt.Errorf("send %d of %d: %w", i+1, len(ordered), err),
				errorsx.ReasonGatewaySend)
		}
	}
	p.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventDelivery,
		Time:  time.Now(),
		Value: float64(len(ordered)),
		Tags:  map[string]string{"gateway": p.gw.Name()},
		Fields: map[string]any{
			"user_id":     userID,
			"channel_id":  channelID,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	return nil
}

func annotationOrder(m messages.Message) int {
	if m.Annotations == nil {
		return 0
	}
	return m.Annotations.Order
}

func delayFor(m messages.Message) time.Duration {
	d := pacerMinDelay
	if m.Annotations != nil && m.Annotations.DelayMS > 0 {
		d = time.Duration(m.Annotations.DelayMS) * time.Millisecond
	}
	if d < pacerMinDelay {
		d = pacerMinDelay
	}
	if d > pacerMaxDelay {
		d = pacerMaxDelay
	}
	return d
}

func metadataFor(m messages.Message) map[string]string {
	if m.Annotations == nil {
		return nil
	}
	return map[string]string{
		"message_type":  m.Annotations.MessageType,
		"group_id":      m.Annotations.GroupID,
		"order":         fmt.Sprint(m.Annotations.Order),
		"is_standalone": fmt.Sprint(m.Annotations.IsStandalone),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
