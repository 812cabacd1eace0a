// Package ws is a development gateway that streams outbound messages
// over a websocket to a local console or test harness.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/mainstar123/finchat/pkg/gateway"
)

type Config struct {
	URL string `mapstructure:"url"`
}

type Gateway struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	sendCh chan []byte
	closed atomic.Bool
}

type wireMessage struct {
	UserID    string            `json:"user_id"`
	ChannelID string            `json:"channel_id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func New(cfg Config) *Gateway {
	return &Gateway{cfg: cfg, sendCh: make(chan []byte, 256)}
}

func (g *Gateway) Name() string { return "ws" }

// Connect dials the console endpoint and starts the write loop. Send
// before Connect returns an error rather than buffering silently.
func (g *Gateway) Connect(ctx context.Context) error {
	if g.cfg.URL == "" {
		return errors.New("missing websocket url")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.cfg.URL, nil)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	go g.loop(conn)
	return nil
}

func (g *Gateway) loop(conn *websocket.Conn) {
	for msg := range g.sendCh {
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (g *Gateway) Send(ctx context.Context, out gateway.Outbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.closed.Load() {
		return errors.New("gateway closed")
	}
	g.mu.Lock()
	connected := g.conn != nil
	g.mu.Unlock()
	if !connected {
		return errors.New("gateway not connected")
	}
	b, err := json.Marshal(wireMessage{
		UserID:    out.UserID,
		ChannelID: out.ChannelID,
		Content:   out.Content,
		Metadata:  out.Metadata,
	})
	if err != nil {
		return err
	}
	select {
	case g.sendCh <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(g.sendCh)
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
