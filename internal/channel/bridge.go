package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valarieck/waconcierge/internal/engine"
	"github.com/valarieck/waconcierge/pkg/logging"
)

// Bridge connection states, reported by the status endpoint.
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
)

// Handler is the conversation surface the bridge drives. Satisfied by
// engine.Engine.
type Handler interface {
	Handle(ctx context.Context, userID, text string) (*engine.Outbound, error)
}

// outFrame is the bridge's outbound wire shape.
type outFrame struct {
	To       string `json:"to"`
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

// Bridge maintains the websocket link to the WhatsApp bridge process,
// feeding decoded inbound messages to the engine and writing replies back.
// It reconnects forever with a fixed delay until its context is canceled.
type Bridge struct {
	wsURL   string
	delay   time.Duration
	handler Handler
	history *History
	logger  *logging.Logger

	mu     sync.Mutex // guards conn and status
	conn   *websocket.Conn
	status string
}

// NewBridge wires a bridge client. history may be nil to disable retention.
func NewBridge(wsURL string, delay time.Duration, handler Handler, history *History, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Bridge{
		wsURL:   wsURL,
		delay:   delay,
		handler: handler,
		history: history,
		logger:  logger,
		status:  StatusDisconnected,
	}
}

// Status returns the current connection state.
func (b *Bridge) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Bridge) setConn(conn *websocket.Conn, status string) {
	b.mu.Lock()
	b.conn = conn
	b.status = status
	b.mu.Unlock()
}

// Run dials and serves the connection until ctx is canceled, reconnecting
// after every drop.
func (b *Bridge) Run(ctx context.Context) {
	for {
		b.setConn(nil, StatusConnecting)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.wsURL, nil)
		if err != nil {
			b.logger.Error("bridge dial failed", "url", b.wsURL, "error", err)
		} else {
			b.setConn(conn, StatusConnected)
			b.logger.Info("bridge connected", "url", b.wsURL)
			b.readLoop(ctx, conn)
			conn.Close()
		}
		b.setConn(nil, StatusDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.delay):
		}
	}
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn("bridge read failed", "error", err)
			}
			return
		}
		b.dispatch(ctx, raw)
	}
}

func (b *Bridge) dispatch(ctx context.Context, raw []byte) {
	in, err := Decode(raw)
	if err != nil {
		if err != ErrSkip {
			b.logger.Warn("bridge envelope not decodable", "error", err)
		}
		return
	}

	if b.history != nil {
		b.history.Add(in.UserID, DirectionIn, in.Type, in.Text, in.Timestamp)
	}

	out, err := b.handler.Handle(ctx, in.UserID, in.Text)
	if err != nil {
		b.logger.Error("turn failed", "user", in.UserID, "error", err)
		return
	}
	if out == nil || out.Text == "" {
		return
	}

	if err := b.Send(in.UserID, out.Text, out.MediaURL); err != nil {
		b.logger.Error("bridge send failed", "user", in.UserID, "error", err)
	}
}

// Send writes one reply frame to the bridge. It fails when the link is down;
// callers treat that as a dropped message, not a retry queue.
func (b *Bridge) Send(userID, text, mediaURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("channel: bridge not connected")
	}
	frame := outFrame{To: ToJID(userID), Text: text, MediaURL: mediaURL}
	if err := b.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("channel: write frame: %w", err)
	}
	if b.history != nil {
		b.history.Add(userID, DirectionOut, "text", text, time.Now())
	}
	return nil
}
