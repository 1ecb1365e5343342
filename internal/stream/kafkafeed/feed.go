// Package kafkafeed consumes tick batches relayed as JSON on a Kafka topic.
package kafkafeed

import (
	"context"
	"fmt"

	"live-tick-excel/internal/config"
	"live-tick-excel/internal/kafka"
	"live-tick-excel/internal/models"
	"live-tick-excel/internal/stream"

	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the part of *kafkaGo.Reader the feed uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafkaGo.Message, error)
	Close() error
}

type Config struct {
	Kafka   config.KafkaConfig
	Backoff stream.Backoff
}

// Feed is a stream.Transport over a Kafka relay topic. A session is one
// reader lifetime; read errors end the session and trigger a reconnect.
type Feed struct {
	cfg    Config
	logger *zap.Logger

	ensureTopic func(ctx context.Context) error
	newReader   func() messageReader
}

var _ stream.Transport = (*Feed)(nil)

func New(cfg Config, logger *zap.Logger) *Feed {
	f := &Feed{cfg: cfg, logger: logger}
	f.ensureTopic = func(ctx context.Context) error {
		return kafka.EnsureTopic(ctx, cfg.Kafka, logger)
	}
	f.newReader = func() messageReader {
		return kafkaGo.NewReader(kafkaGo.ReaderConfig{
			Brokers:     []string{cfg.Kafka.BrokerURL},
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafkaGo.LastOffset,
		})
	}
	return f
}

// Serve reads the topic until ctx is cancelled or the reconnect budget is
// spent, in which case it returns stream.ErrReconnectExhausted.
func (f *Feed) Serve(ctx context.Context, h stream.Handler) error {
	attempt := 0
	for {
		established, err := f.session(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			h.OnError(err)
		}
		if established {
			attempt = 0
		}

		attempt++
		if f.cfg.Backoff.Exhausted(attempt) {
			h.OnNoReconnect()
			return stream.ErrReconnectExhausted
		}
		h.OnReconnect(attempt)
		if err := f.cfg.Backoff.Wait(ctx, attempt); err != nil {
			return nil
		}
	}
}

func (f *Feed) session(ctx context.Context, h stream.Handler) (established bool, err error) {
	if err := f.ensureTopic(ctx); err != nil {
		return false, err
	}

	r := f.newReader()
	defer func() {
		if err := r.Close(); err != nil {
			f.logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	sub := newSubscription()
	if err := h.OnConnect(ctx, sub); err != nil {
		return false, err
	}
	f.logger.Info("kafka reader configured",
		zap.String("topic", f.cfg.Kafka.Topic), zap.String("group_id", f.cfg.Kafka.GroupID))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read kafka message: %w", err)
		}

		ticks, err := Decode(m.Value)
		if err != nil {
			f.logger.Warn("skipping undecodable relay message",
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		if ticks = sub.filter(ticks); len(ticks) > 0 {
			h.OnTicks(ticks)
		}
	}
}

// subscription applies Subscribe and SetMode locally: the relay carries
// every instrument, so the feed narrows it to what the handler asked for.
type subscription struct {
	modes map[uint32]stream.Mode
}

func newSubscription() *subscription {
	return &subscription{modes: make(map[uint32]stream.Mode)}
}

func (s *subscription) Subscribe(tokens []uint32) error {
	for _, t := range tokens {
		if _, ok := s.modes[t]; !ok {
			s.modes[t] = stream.ModeQuote
		}
	}
	return nil
}

func (s *subscription) SetMode(mode stream.Mode, tokens []uint32) error {
	switch mode {
	case stream.ModeLTP, stream.ModeQuote, stream.ModeFull:
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	for _, t := range tokens {
		if _, ok := s.modes[t]; ok {
			s.modes[t] = mode
		}
	}
	return nil
}

func (s *subscription) filter(ticks []models.Tick) []models.Tick {
	out := ticks[:0]
	for _, t := range ticks {
		mode, ok := s.modes[t.Token]
		if !ok {
			continue
		}
		if mode == stream.ModeLTP {
			t.Fields = ltpOnly(t.Fields)
		}
		out = append(out, t)
	}
	return out
}
