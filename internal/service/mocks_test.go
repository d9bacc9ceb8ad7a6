package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	m        sync.RWMutex
	messages []string
}

func (n *mockNotifier) Notify(message string, _ domain.Severity) {
	n.m.Lock()
	defer n.m.Unlock()
	n.messages = append(n.messages, message)
}

func (n *mockNotifier) getMessages() []string {
	n.m.RLock()
	defer n.m.RUnlock()
	return append([]string(nil), n.messages...)
}

// hookStore wraps a real store, counting calls and injecting failures.
type hookStore struct {
	repository.CartStore

	m            sync.RWMutex
	calls        int
	getHook      func()
	batchErr     error
	subscribeErr error
	setErr       error
}

func (h *hookStore) count() {
	h.m.Lock()
	defer h.m.Unlock()
	h.calls++
}

func (h *hookStore) getCalls() int {
	h.m.RLock()
	defer h.m.RUnlock()
	return h.calls
}

func (h *hookStore) Get(ctx context.Context, uid string, productID int64) (*domain.LineItem, error) {
	h.count()
	if h.getHook != nil {
		h.getHook()
	}
	return h.CartStore.Get(ctx, uid, productID)
}

func (h *hookStore) Set(ctx context.Context, uid string, item domain.LineItem) error {
	h.count()
	if h.setErr != nil {
		return h.setErr
	}
	return h.CartStore.Set(ctx, uid, item)
}

func (h *hookStore) UpdateQuantity(ctx context.Context, uid string, productID int64, quantity int) error {
	h.count()
	return h.CartStore.UpdateQuantity(ctx, uid, productID, quantity)
}

func (h *hookStore) Delete(ctx context.Context, uid string, productID int64) error {
	h.count()
	return h.CartStore.Delete(ctx, uid, productID)
}

func (h *hookStore) List(ctx context.Context, uid string) ([]domain.LineItem, error) {
	h.count()
	return h.CartStore.List(ctx, uid)
}

func (h *hookStore) BatchDelete(ctx context.Context, uid string, productIDs []int64) error {
	h.count()
	if h.batchErr != nil {
		return h.batchErr
	}
	return h.CartStore.BatchDelete(ctx, uid, productIDs)
}

func (h *hookStore) Subscribe(ctx context.Context, uid string) (repository.Subscription, error) {
	if h.subscribeErr != nil {
		return nil, h.subscribeErr
	}
	return h.CartStore.Subscribe(ctx, uid)
}

// scriptedSubscription lets a test push arbitrary snapshots.
type scriptedSubscription struct {
	ch   chan []domain.LineItem
	once sync.Once
}

func (s *scriptedSubscription) Snapshots() <-chan []domain.LineItem { return s.ch }

func (s *scriptedSubscription) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type scriptedStore struct {
	repository.CartStore
	sub *scriptedSubscription
}

func (s *scriptedStore) Subscribe(context.Context, string) (repository.Subscription, error) {
	return s.sub, nil
}

var (
	shirt = domain.Product{ID: 7, Title: "Shirt", Price: decimal.RequireFromString("20.00"), Image: "shirt.png"}
	hat   = domain.Product{ID: 9, Title: "Hat", Price: decimal.RequireFromString("5.50"), Image: "hat.png"}
	alice = &domain.Identity{UID: "alice", Email: "alice@example.com"}
	bob   = &domain.Identity{UID: "bob", Email: "bob@example.com"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store repository.CartStore) (*CartService, *mockNotifier) {
	notifier := &mockNotifier{}
	return NewCartService(store, notifier, discardLogger()), notifier
}

func signIn(t *testing.T, sut *CartService, identity *domain.Identity) {
	t.Helper()
	sut.OnIdentityChange(identity)
	require.Eventually(t, func() bool {
		return sut.State() == domain.StateSynced
	}, time.Second, 5*time.Millisecond, "cart did not sync")
}

func waitForItems(t *testing.T, sut *CartService, check func([]domain.LineItem) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return check(sut.Items())
	}, time.Second, 5*time.Millisecond, "local cart did not converge")
}

func quantityOf(items []domain.LineItem, productID int64) int {
	for _, item := range items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}
