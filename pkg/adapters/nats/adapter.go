// Package nats exposes a conversation engine over NATS subjects.
//
// Events are published to <prefix>.events.<conversation_id>. Each one runs a
// turn; the result is published to <prefix>.replies.<conversation_id> and, for
// request/reply callers, to the message's reply inbox.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/topical/internal/logging"
	"github.com/aretw0/topical/pkg/domain"
	"github.com/aretw0/topical/pkg/ports"
	"github.com/aretw0/topical/pkg/runner"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultPrefix is the root token of every subject.
	DefaultPrefix = "topical"
	// DefaultQueue load-balances events across replicas subscribed to the same prefix.
	DefaultQueue = "topical-engine"
	// DefaultTurnTimeout bounds a single turn triggered by a message.
	DefaultTurnTimeout = 30 * time.Second
)

// Conn is the subset of *nats.Conn the adapter uses.
type Conn interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Event is the message body accepted on the events subject. A body that is
// not a JSON object is taken as plain message text.
type Event = runner.EventInput

// Reply is published after every turn.
type Reply struct {
	ConversationID string             `json:"conversation_id"`
	Result         *domain.TurnResult `json:"result,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Adapter subscribes to event subjects and drives the engine.
type Adapter struct {
	engine  ports.ConversationEngine
	conn    Conn
	prefix  string
	queue   string
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		if prefix != "" {
			a.prefix = strings.TrimSuffix(prefix, ".")
		}
	}
}

// WithQueue sets the queue group name.
func WithQueue(queue string) Option {
	return func(a *Adapter) {
		if queue != "" {
			a.queue = queue
		}
	}
}

// WithTurnTimeout bounds each turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an adapter. Call Start to begin consuming events.
func New(engine ports.ConversationEngine, conn Conn, opts ...Option) *Adapter {
	a := &Adapter{
		engine:  engine,
		conn:    conn,
		prefix:  DefaultPrefix,
		queue:   DefaultQueue,
		timeout: DefaultTurnTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect dials a NATS server with reconnect settings suited for a long-lived service.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("topical"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	conn, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// EventsSubject is the subject events for conversationID are published to.
func (a *Adapter) EventsSubject(conversationID string) string {
	return a.prefix + ".events." + conversationID
}

// RepliesSubject is the subject turn results for conversationID are published to.
func (a *Adapter) RepliesSubject(conversationID string) string {
	return a.prefix + ".replies." + conversationID
}

// Start subscribes to every conversation's events subject. Turns run with
// contexts derived from ctx.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return fmt.Errorf("nats adapter already started")
	}

	sub, err := a.conn.QueueSubscribe(a.EventsSubject("*"), a.queue, func(msg *nats.Msg) {
		a.Handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", a.EventsSubject("*"), err)
	}
	a.sub = sub
	a.logger.Info("NATS adapter listening", "subject", a.EventsSubject("*"), "queue", a.queue)
	return nil
}

// Stop drains the subscription.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub == nil {
		return nil
	}
	err := a.sub.Drain()
	a.sub = nil
	return err
}

// Handle runs the turn carried by msg and publishes the result.
func (a *Adapter) Handle(ctx context.Context, msg *nats.Msg) {
	id := strings.TrimPrefix(msg.Subject, a.prefix+".events.")
	if id == "" || id == msg.Subject || strings.Contains(id, ".") {
		a.logger.Warn("NATS: ignoring message on unexpected subject", "subject", msg.Subject)
		return
	}

	reply := Reply{ConversationID: id}
	event, err := runner.DecodeEvent(msg.Data)
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		reply.Result, err = a.engine.Send(ctx, id, event)
		cancel()
	}
	if err != nil {
		a.logger.Warn("NATS: turn failed", "conversation_id", id, "err", err)
		reply.Error = err.Error()
	}

	data, err := json.Marshal(reply)
	if err != nil {
		a.logger.Error("NATS: reply marshal failed", "conversation_id", id, "err", err)
		return
	}
	if err := a.conn.Publish(a.RepliesSubject(id), data); err != nil {
		a.logger.Error("NATS: publish failed", "subject", a.RepliesSubject(id), "err", err)
	}
	if msg.Reply != "" {
		if err := a.conn.Publish(msg.Reply, data); err != nil {
			a.logger.Error("NATS: respond failed", "conversation_id", id, "err", err)
		}
	}
}
