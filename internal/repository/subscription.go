package repository

import (
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// snapshotStream is a single-slot mailbox: a pending snapshot not yet read by
// the consumer is replaced by the newer one, so delivery never blocks the
// writer and the consumer always ends on the latest state.
type snapshotStream struct {
	mu     sync.Mutex
	ch     chan []domain.LineItem
	closed bool
	done   chan struct{}
	onStop func()
}

func newSnapshotStream(onStop func()) *snapshotStream {
	return &snapshotStream{
		ch:     make(chan []domain.LineItem, 1),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (s *snapshotStream) deliver(items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- items
}

func (s *snapshotStream) Snapshots() <-chan []domain.LineItem {
	return s.ch
}

func (s *snapshotStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.ch)
	s.mu.Unlock()

	if s.onStop != nil {
		s.onStop()
	}
	return nil
}

func copyItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
