package natsx

import (
	"context"
	"encoding/json"
	"fmt"

	nats "github.com/nats-io/nats.go"

	"github.com/etherwheel/custody-ledger/events"
)

// Publisher emits ledger events as JSON messages on JetStream subjects under
// the configured root, e.g. ledger.accounts.created. The event ID travels in
// the Nats-Msg-Id header so downstream consumers can deduplicate.
type Publisher struct {
	cfg  Config
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher validates configuration, connects and prepares a JetStream
// context.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &Publisher{cfg: cfg, conn: conn, js: js}, nil
}

// Publish sends one event. Failures are returned verbatim; retry policy
// belongs to the caller (typically the forward loop, which logs and drops).
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.EventType(), err)
	}

	msg := &nats.Msg{
		Subject: p.subject(ev),
		Data:    payload,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", ev.ID())

	pubCtx, cancel := p.WithTimeout(ctx)
	defer cancel()

	ack, err := p.js.PublishMsg(msg, nats.Context(pubCtx), nats.ExpectStream(p.cfg.Stream))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	if ack != nil && ack.Stream != "" && ack.Stream != p.cfg.Stream {
		return fmt.Errorf("publish to %s: unexpected ack stream %q", msg.Subject, ack.Stream)
	}
	return nil
}

// Forward drains an event channel into JetStream until the context is
// cancelled or the channel closes. Publish errors are surfaced through the
// returned error so the supervising errgroup can restart the service.
func (p *Publisher) Forward(ctx context.Context, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if err := p.Publish(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// Close drains the connection. Safe to call on a nil publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// WithTimeout returns a context with the publisher's timeout applied.
func (p *Publisher) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// Config exposes a copy of the publisher configuration.
func (p *Publisher) Config() Config {
	return p.cfg
}

func (p *Publisher) subject(ev events.Event) string {
	return p.cfg.SubjectRoot + "." + string(ev.EventType())
}
