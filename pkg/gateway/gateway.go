// Package gateway delivers structured assistant messages to the user's
// channel. Implementations translate the pipeline's annotated messages
// into channel-specific sends; the Pacer spaces them out.
package gateway

import (
	"context"
	"sync"
)

// Outbound is one message bound for a channel.
type Outbound struct {
	UserID    string
	ChannelID string
	Content   string
	Metadata  map[string]string
}

type Gateway interface {
	Name() string
	Send(ctx context.Context, out Outbound) error
}

// Mock records sends for tests.
type Mock struct {
	mu   sync.Mutex
	Err  error
	sent []Outbound
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Send(_ context.Context, out Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, out)
	return nil
}

func (m *Mock) Sent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outbound(nil), m.sent...)
}
