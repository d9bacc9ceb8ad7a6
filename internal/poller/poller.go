package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	r "github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "storefront-cart-consumer"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller clears a user's cart whenever a completed checkout lands on the
// outbox topic. Subscribed clients see the empty snapshot through the store.
type Poller struct {
	store  r.CartStore
	reader messageReader
	logger *slog.Logger
}

func NewPoller(store r.CartStore, logger *slog.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(store, reader, logger)
}

func newPoller(store r.CartStore, reader messageReader, logger *slog.Logger) *Poller {
	return &Poller{store: store, reader: reader, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("error reading message", slog.Any("error", err))
			time.Sleep(time.Second)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", slog.Any("error", err))
	}
}

type checkoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	var event checkoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("error parsing message", slog.Any("error", err), slog.Int64("offset", m.Offset))
		return nil
	}
	if event.UserID == "" {
		p.logger.Warn("missing user_id", slog.Int64("offset", m.Offset))
		return nil
	}

	p.clearCart(ctx, event.UserID)
	return nil
}

func (p *Poller) clearCart(ctx context.Context, uid string) {
	items, err := p.store.List(ctx, uid)
	if err != nil {
		p.logger.Error("failed to list cart", slog.String("uid", uid), slog.Any("error", err))
		return
	}
	if len(items) == 0 {
		return
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	if err := p.store.BatchDelete(ctx, uid, ids); err != nil && !errors.Is(err, r.ErrRecordNotFound) {
		p.logger.Error("failed to clear cart", slog.String("uid", uid), slog.Any("error", err))
		return
	}
	p.logger.Info("cart cleared after checkout", slog.String("uid", uid), slog.Int("items", len(ids)))
}
