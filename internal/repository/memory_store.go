package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MemoryStore implements CartStore in process. Snapshots are pushed to
// subscribers synchronously with each committed write.
type MemoryStore struct {
	mu          sync.RWMutex
	carts       map[string]map[int64]domain.LineItem    // uid -> productID -> item
	subscribers map[string]map[*snapshotStream]struct{} // uid -> open streams
}

// NewMemoryStore creates an empty in-memory cart store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:       make(map[string]map[int64]domain.LineItem),
		subscribers: make(map[string]map[*snapshotStream]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, uid string, productID int64) (*domain.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.carts[uid][productID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &item, nil
}

func (s *MemoryStore) Set(ctx context.Context, uid string, item domain.LineItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[uid]
	if !ok {
		cart = make(map[int64]domain.LineItem)
		s.carts[uid] = cart
	}
	cart[item.ProductID] = item
	s.publishLocked(uid)
	return nil
}

func (s *MemoryStore) UpdateQuantity(ctx context.Context, uid string, productID int64, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.carts[uid][productID]
	if !ok {
		return ErrRecordNotFound
	}
	item.Quantity = quantity
	s.carts[uid][productID] = item
	s.publishLocked(uid)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, uid string, productID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carts[uid][productID]; !ok {
		return nil
	}
	delete(s.carts[uid], productID)
	s.publishLocked(uid)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, uid string) ([]domain.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(uid), nil
}

func (s *MemoryStore) BatchDelete(ctx context.Context, uid string, productIDs []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range productIDs {
		delete(s.carts[uid], id)
	}
	s.publishLocked(uid)
	return nil
}

// Subscribe opens a stream whose first snapshot is the current collection.
func (s *MemoryStore) Subscribe(ctx context.Context, uid string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stream *snapshotStream
	stream = newSnapshotStream(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers[uid], stream)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[uid] == nil {
		s.subscribers[uid] = make(map[*snapshotStream]struct{})
	}
	s.subscribers[uid][stream] = struct{}{}
	stream.deliver(s.snapshotLocked(uid))
	return stream, nil
}

// Drop ends every open subscription of uid as if the connection was lost.
func (s *MemoryStore) Drop(uid string) {
	s.mu.RLock()
	streams := make([]*snapshotStream, 0, len(s.subscribers[uid]))
	for stream := range s.subscribers[uid] {
		streams = append(streams, stream)
	}
	s.mu.RUnlock()

	for _, stream := range streams {
		stream.Close()
	}
}

func (s *MemoryStore) publishLocked(uid string) {
	if len(s.subscribers[uid]) == 0 {
		return
	}
	snapshot := s.snapshotLocked(uid)
	for stream := range s.subscribers[uid] {
		stream.deliver(copyItems(snapshot))
	}
}

func (s *MemoryStore) snapshotLocked(uid string) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(s.carts[uid]))
	for _, item := range s.carts[uid] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}
