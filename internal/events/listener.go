// Package events listens to the job service's WebSocket feed and turns job
// updates into background refresh requests. Polling stays authoritative; the
// feed only makes updates show up sooner.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

// TypeJobUpdate is the only message type the listener reacts to.
const TypeJobUpdate = "job_update"

// DefaultBackoff is the pause between reconnect attempts.
const DefaultBackoff = 3 * time.Second

// Message is a job update as broadcast by the service.
type Message struct {
	Type      string          `json:"type"`
	JobID     int64           `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Nudger is told that the job list probably changed.
type Nudger interface {
	Nudge()
}

// Listener keeps a WebSocket connection open and nudges on every job update.
type Listener struct {
	url     string
	nudger  Nudger
	dialer  *websocket.Dialer
	backoff time.Duration
	logger  *slog.Logger
}

// Option customizes a Listener.
type Option func(*Listener)

// WithBackoff sets the reconnect delay.
func WithBackoff(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// NewListener builds a listener for the ws:// or wss:// url.
func NewListener(url string, nudger Nudger, opts ...Option) *Listener {
	l := &Listener{
		url:    url,
		nudger: nudger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		backoff: DefaultBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run connects and reconnects until ctx is cancelled. It always returns nil
// once ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("event stream disconnected", "url", l.url, "retry_in", l.backoff, "error", err)
		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	l.logger.Info("event stream connected", "url", l.url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Debug("ignoring malformed event", "error", err)
			continue
		}
		if msg.Type != TypeJobUpdate {
			continue
		}
		l.logger.Debug("job update received", "job_id", msg.JobID, "status", string(msg.Status))
		l.nudger.Nudge()
	}
}
