package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roboshop-devops-v1/cart/internal/repository"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the poller needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type checkoutEvent struct {
	UserID string `json:"user_id"`
}

// Poller deletes a cart once its checkout has completed.
type Poller struct {
	repo   repository.CartRepository
	reader MessageReader
	logger *slog.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(repo repository.CartRepository, reader MessageReader, logger *slog.Logger) *Poller {
	return &Poller{repo: repo, reader: reader, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consumeOne(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", "error", err)
	}
}

func (p *Poller) consumeOne(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.ErrorContext(ctx, "error reading message", "error", err)
		}
		return
	}

	if err := p.handle(ctx, m.Value); err != nil {
		p.logger.WarnContext(ctx, "checkout message skipped",
			"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
	}
}

func (p *Poller) handle(ctx context.Context, value []byte) error {
	var event checkoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}
	if event.UserID == "" {
		return errors.New("missing or invalid user_id")
	}

	if err := p.repo.Delete(ctx, event.UserID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	p.logger.InfoContext(ctx, "cart cleared after checkout", "cart_id", event.UserID)
	return nil
}
