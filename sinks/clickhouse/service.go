package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/etherwheel/custody-ledger/events"
)

type rowWriter interface {
	WriteRows(ctx context.Context, rows []Row) error
	Flush(ctx context.Context) error
}

// processor turns ledger event payloads into history rows.
type processor struct {
	writer rowWriter
}

func newProcessor(writer rowWriter) *processor {
	return &processor{writer: writer}
}

func (p *processor) handleAccountCreated(ctx context.Context, ev events.AccountCreated) error {
	return p.writer.WriteRows(ctx, []Row{{
		Timestamp: ev.At,
		AccountID: ev.AccountID.String(),
		Kind:      "create",
		Recipient: ev.Owner.String(),
	}})
}

func (p *processor) handleSwap(ctx context.Context, ev events.SwapExecuted) error {
	return p.writer.WriteRows(ctx, []Row{{
		Timestamp: ev.At,
		AccountID: ev.AccountID.String(),
		Kind:      "swap",
		Side:      ev.Side,
		AmountIn:  ev.AmountIn,
		AmountOut: ev.AmountOut,
		Price:     ev.Price,
	}})
}

func (p *processor) handleNativeSent(ctx context.Context, ev events.NativeSent) error {
	return p.writer.WriteRows(ctx, []Row{{
		Timestamp: ev.At,
		AccountID: ev.AccountID.String(),
		Kind:      "send",
		Recipient: ev.To.String(),
		AmountIn:  ev.Amount,
	}})
}

func (p *processor) handleDeposit(ctx context.Context, ev events.Deposit) error {
	return p.writer.WriteRows(ctx, []Row{{
		Timestamp: ev.At,
		AccountID: ev.AccountID.String(),
		Kind:      "deposit",
		AmountIn:  ev.Amount,
	}})
}

// Service pulls ledger events off JetStream and lands them in the history
// table. Message acks happen only after the row is accepted by the writer,
// so a crash replays rather than loses history.
type Service struct {
	cfg       ServiceConfig
	conn      *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	writer    *Writer
	processor *processor
}

// NewService connects to both sides and prepares the pull consumer.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	writer, err := NewWithConfig(ctx, cfg.Writer)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	subject := cfg.SubjectRoot + ".>"
	sub, err := js.PullSubscribe(subject, cfg.Consumer, nats.BindStream(cfg.Stream), nats.ManualAck())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &Service{
		cfg:       cfg,
		conn:      conn,
		js:        js,
		sub:       sub,
		writer:    writer,
		processor: newProcessor(writer),
	}, nil
}

// Run consumes until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	flushTicker := time.NewTicker(s.cfg.Writer.FlushInterval)
	defer flushTicker.Stop()
	defer s.conn.Drain()
	defer s.writer.Close(context.Background())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-flushTicker.C:
			if err := s.processor.writer.Flush(ctx); err != nil {
				return err
			}
		default:
		}

		msgs, err := s.sub.Fetch(s.cfg.PullBatch, nats.MaxWait(s.cfg.PullTimeout))
		if errors.Is(err, nats.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		for _, msg := range msgs {
			if err := s.handleMessage(ctx, msg); err != nil {
				_ = msg.Nak()
				return err
			}
			_ = msg.Ack()
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *nats.Msg) error {
	subject := msg.Subject
	switch {
	case strings.HasSuffix(subject, "."+string(events.TypeAccountCreated)):
		var ev events.AccountCreated
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal account created: %w", err)
		}
		return s.processor.handleAccountCreated(ctx, ev)
	case strings.HasSuffix(subject, "."+string(events.TypeSwapExecuted)):
		var ev events.SwapExecuted
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal swap: %w", err)
		}
		return s.processor.handleSwap(ctx, ev)
	case strings.HasSuffix(subject, "."+string(events.TypeNativeSent)):
		var ev events.NativeSent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal native sent: %w", err)
		}
		return s.processor.handleNativeSent(ctx, ev)
	case strings.HasSuffix(subject, "."+string(events.TypeDeposit)):
		var ev events.Deposit
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal deposit: %w", err)
		}
		return s.processor.handleDeposit(ctx, ev)
	default:
		// Unknown subjects are acked and skipped.
		return nil
	}
}
