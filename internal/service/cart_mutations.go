package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// session is the identity a mutation was issued under.
type session struct {
	uid        string
	generation uint64
}

func (s *CartService) activeSession() (session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return session{}, ErrNotSignedIn
	}
	if s.state == domain.StateUnsubscribed {
		return session{}, ErrNotSubscribed
	}
	return session{uid: s.identity.UID, generation: s.generation}, nil
}

// AddToCart raises the quantity of product by increment, creating the record
// when absent. The local cart follows once the store's snapshot arrives.
//
// Calls on the same engine are serialized per product. The read and the write
// are still separate round trips, so two sessions of one identity adding the
// same product concurrently can lose an increment.
func (s *CartService) AddToCart(ctx context.Context, product domain.Product, increment int) error {
	if increment <= 0 {
		return ErrInvalidQuantity
	}
	sess, err := s.activeSession()
	if err != nil {
		return err
	}

	unlock := s.keys.Lock(itemKey(sess.uid, product.ID))
	defer unlock()

	existing, err := s.store.Get(ctx, sess.uid, product.ID)
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		err = s.store.Set(ctx, sess.uid, product.LineItem(increment))
	case err == nil:
		err = s.store.UpdateQuantity(ctx, sess.uid, product.ID, existing.Quantity+increment)
	}
	if err != nil {
		s.logger.Error("add to cart failed",
			slog.String("uid", sess.uid), slog.Int64("product_id", product.ID), slog.Any("error", err))
		return fmt.Errorf("add product %d to cart: %w", product.ID, err)
	}
	return nil
}

// RemoveItem deletes the record of productID. Removing an absent product is
// not an error.
func (s *CartService) RemoveItem(ctx context.Context, productID int64) error {
	sess, err := s.activeSession()
	if err != nil {
		return err
	}

	unlock := s.keys.Lock(itemKey(sess.uid, productID))
	defer unlock()

	if err := s.store.Delete(ctx, sess.uid, productID); err != nil {
		s.logger.Error("remove from cart failed",
			slog.String("uid", sess.uid), slog.Int64("product_id", productID), slog.Any("error", err))
		return fmt.Errorf("remove product %d from cart: %w", productID, err)
	}

	s.notify("Removed from cart", domain.SeverityInfo)
	return nil
}

// UpdateQuantity changes the quantity of productID by delta. A result of zero
// or less deletes the record. Absent records are left alone.
func (s *CartService) UpdateQuantity(ctx context.Context, productID int64, delta int) error {
	sess, err := s.activeSession()
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	unlock := s.keys.Lock(itemKey(sess.uid, productID))
	defer unlock()

	existing, err := s.store.Get(ctx, sess.uid, productID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil
	}
	if err == nil {
		quantity := existing.Quantity + delta
		if quantity <= 0 {
			err = s.store.Delete(ctx, sess.uid, productID)
		} else {
			err = s.store.UpdateQuantity(ctx, sess.uid, productID, quantity)
			if errors.Is(err, repository.ErrRecordNotFound) {
				// deleted by another session in between
				return nil
			}
		}
	}
	if err != nil {
		s.logger.Error("update quantity failed",
			slog.String("uid", sess.uid), slog.Int64("product_id", productID), slog.Any("error", err))
		return fmt.Errorf("update quantity of product %d: %w", productID, err)
	}
	return nil
}

// ClearCart deletes every record of the current identity in one atomic
// batch. The local cart is emptied before the batch commits; if the commit
// fails and no newer snapshot has arrived meanwhile, the last snapshot is
// restored.
func (s *CartService) ClearCart(ctx context.Context) error {
	sess, err := s.activeSession()
	if err != nil {
		return err
	}

	items, err := s.store.List(ctx, sess.uid)
	if err != nil {
		s.logger.Error("clear cart: list failed", slog.String("uid", sess.uid), slog.Any("error", err))
		return fmt.Errorf("list cart: %w", err)
	}

	var (
		previous []domain.LineItem
		seq      uint64
		cleared  bool
	)
	s.update(func() bool {
		if s.generation != sess.generation {
			return false
		}
		previous, seq = s.items, s.snapshotSeq
		s.items = nil
		cleared = true
		return len(previous) > 0
	})
	if !cleared {
		// identity changed while listing; the new identity's cart is untouched
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	if err := s.store.BatchDelete(ctx, sess.uid, productIDs); err != nil {
		s.update(func() bool {
			if s.generation != sess.generation || s.snapshotSeq != seq {
				return false
			}
			s.items = previous
			return len(previous) > 0
		})
		s.logger.Error("clear cart: batch commit failed", slog.String("uid", sess.uid), slog.Any("error", err))
		return fmt.Errorf("clear cart: %w", err)
	}

	s.notify("Cart cleared", domain.SeverityInfo)
	return nil
}
