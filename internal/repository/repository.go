package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrRecordNotFound     = errors.New("cart record not found")
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// CartStore is the remote, per-identity cart collection. Every committed
// write is eventually reflected in the snapshots of open subscriptions.
type CartStore interface {
	Get(ctx context.Context, uid string, productID int64) (*domain.LineItem, error)
	// Set creates the record or fully overwrites it.
	Set(ctx context.Context, uid string, item domain.LineItem) error
	// UpdateQuantity merges a new quantity into an existing record.
	UpdateQuantity(ctx context.Context, uid string, productID int64, quantity int) error
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, uid string, productID int64) error
	List(ctx context.Context, uid string) ([]domain.LineItem, error)
	// BatchDelete removes all listed records atomically.
	BatchDelete(ctx context.Context, uid string, productIDs []int64) error
	Subscribe(ctx context.Context, uid string) (Subscription, error)
}

// Subscription delivers full-collection snapshots in commit order. The
// Snapshots channel is closed when the subscription ends, either through
// Close or because the store dropped it.
type Subscription interface {
	Snapshots() <-chan []domain.LineItem
	Close() error
}
