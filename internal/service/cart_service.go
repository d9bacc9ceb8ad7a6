package service

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrNotSignedIn     = errors.New("sign in to modify the cart")
	ErrNotSubscribed   = errors.New("cart is not synchronized")
	ErrInvalidQuantity = errors.New("quantity increment must be positive")
)

const subscribeTimeout = 10 * time.Second

// Notifier delivers fire-and-forget user-facing messages.
type Notifier interface {
	Notify(message string, severity domain.Severity)
}

// CartService keeps the local cart of the signed-in identity in step with the
// remote cart store. The local item set is always the last snapshot received
// from the store's subscription, except for the optimistic clear.
type CartService struct {
	store    repository.CartStore
	notifier Notifier
	logger   *slog.Logger

	transition sync.Mutex // serializes identity transitions
	emitMu     sync.Mutex // orders observer callbacks with state changes

	mu          sync.RWMutex
	identity    *domain.Identity
	state       domain.SyncState
	items       []domain.LineItem
	generation  uint64 // bumped on every identity transition
	snapshotSeq uint64 // bumped on every applied snapshot
	sub         repository.Subscription
	pumpDone    chan struct{}
	closed      bool

	keys keyedMutex

	obsMu        sync.Mutex
	observers    map[int]func(domain.CartView)
	nextObserver int
}

func NewCartService(store repository.CartStore, notifier Notifier, logger *slog.Logger) *CartService {
	return &CartService{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		keys:      keyedMutex{locks: make(map[string]*refLock)},
		observers: make(map[int]func(domain.CartView)),
	}
}

// View returns a consistent copy of the local cart and its total.
func (s *CartService) View() domain.CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *CartService) Items() []domain.LineItem {
	return s.View().Items
}

// Identity returns the identity the local cart is scoped to, nil when signed out.
func (s *CartService) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

func (s *CartService) State() domain.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Observe registers fn to be called with a fresh view after every local state
// change. Calls are serialized in change order. The returned func unregisters.
func (s *CartService) Observe(fn func(domain.CartView)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// Close tears down the subscription. Identity changes after Close are ignored.
func (s *CartService) Close() error {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.teardown(nil)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *CartService) viewLocked() domain.CartView {
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)

	view := domain.CartView{
		State: s.state,
		Items: items,
		Total: domain.Total(items),
	}
	if s.identity != nil {
		view.UID = s.identity.UID
	}
	return view
}

// update applies fn to the local state and, when fn reports a change, hands
// the resulting view to observers before any later change is applied.
func (s *CartService) update(fn func() bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	changed := fn()
	view := s.viewLocked()
	s.mu.Unlock()

	if !changed {
		return
	}

	s.obsMu.Lock()
	observers := make([]func(domain.CartView), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()

	for _, observe := range observers {
		observe(view)
	}
}

func (s *CartService) notify(message string, severity domain.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(message, severity)
	}
}
