package service

import (
	"context"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// OnIdentityChange moves the cart to a new identity; nil means signed out.
// The previous subscription is closed and its delivery goroutine has exited
// before this returns, and the local cart is empty until the first snapshot
// of the new identity arrives.
func (s *CartService) OnIdentityChange(identity *domain.Identity) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.RLock()
	closed := s.closed
	same := identity != nil && s.identity != nil && s.identity.UID == identity.UID &&
		s.state != domain.StateUnsubscribed
	s.mu.RUnlock()
	if closed || same {
		return
	}

	gen := s.teardown(identity)
	if identity == nil {
		s.logger.Info("cart unsubscribed: signed out")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	sub, err := s.store.Subscribe(ctx, identity.UID)
	if err != nil {
		s.logger.Error("failed to subscribe to cart",
			slog.String("uid", identity.UID), slog.Any("error", err))
		return
	}

	done := make(chan struct{})
	opened := false
	s.update(func() bool {
		if s.generation != gen {
			return false
		}
		s.sub = sub
		s.pumpDone = done
		s.state = domain.StateSubscribed
		opened = true
		return true
	})
	if !opened {
		sub.Close()
		return
	}

	s.logger.Info("cart subscribed", slog.String("uid", identity.UID))
	go s.pump(gen, sub, done)
}

// teardown resets the local cart for next, closes the current subscription and
// waits for its delivery goroutine. It returns the new generation.
func (s *CartService) teardown(next *domain.Identity) uint64 {
	var (
		gen  uint64
		sub  repository.Subscription
		done chan struct{}
	)
	s.update(func() bool {
		s.generation++
		gen = s.generation
		sub, done = s.sub, s.pumpDone
		s.sub, s.pumpDone = nil, nil

		if next != nil {
			identity := *next
			s.identity = &identity
		} else {
			s.identity = nil
		}
		s.state = domain.StateUnsubscribed
		s.items = nil
		return true
	})

	if sub != nil {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close cart subscription", slog.Any("error", err))
		}
	}
	if done != nil {
		<-done
	}
	return gen
}

func (s *CartService) pump(gen uint64, sub repository.Subscription, done chan struct{}) {
	defer close(done)

	for items := range sub.Snapshots() {
		s.applySnapshot(gen, items)
	}

	dropped := false
	s.update(func() bool {
		if s.generation != gen {
			return false
		}
		// the store ended the subscription on its own
		s.sub, s.pumpDone = nil, nil
		s.state = domain.StateUnsubscribed
		dropped = true
		return true
	})
	if dropped {
		s.logger.Warn("cart subscription dropped; waiting for next identity change")
	}
}

func (s *CartService) applySnapshot(gen uint64, items []domain.LineItem) {
	clean := s.sanitize(items)
	s.update(func() bool {
		if s.generation != gen {
			return false
		}
		s.items = clean
		s.state = domain.StateSynced
		s.snapshotSeq++
		return true
	})
}

// sanitize drops records that cannot be line items and duplicate keys, so the
// local cart never shows a quantity below one.
func (s *CartService) sanitize(items []domain.LineItem) []domain.LineItem {
	clean := make([]domain.LineItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			s.logger.Warn("ignoring cart record with non-positive quantity",
				slog.Int64("product_id", item.ProductID), slog.Int("quantity", item.Quantity))
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			clean[i] = item
			continue
		}
		index[item.ProductID] = len(clean)
		clean = append(clean, item)
	}
	return clean
}
