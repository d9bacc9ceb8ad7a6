package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Service loads the catalog once per session. Concurrent first loads share
// one fetch; a failed load is not remembered, so the next call fetches again.
type Service struct {
	source Source
	cache  ProductCache // optional
	logger *slog.Logger
	sfg    singleflight.Group

	mu       sync.RWMutex
	products []domain.Product
	byID     map[int64]domain.Product
}

func NewService(source Source, cache ProductCache, logger *slog.Logger) *Service {
	return &Service{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	products := s.products
	s.mu.RUnlock()
	if products != nil {
		return products, nil
	}

	v, err, _ := s.sfg.Do("catalog", func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *Service) Product(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := s.Products(ctx); err != nil {
		return domain.Product{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *Service) load(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		products, err := s.cache.Get(ctx)
		if err == nil {
			s.remember(products)
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("catalog cache get failed", slog.Any("error", err))
		}
	}

	products, err := s.source.List(ctx)
	if err != nil {
		s.logger.Error("catalog fetch failed", slog.Any("error", err))
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	s.remember(products)

	if s.cache != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, products); err != nil {
				s.logger.Warn("catalog cache set failed", slog.Any("error", err))
			}
		}()
	}
	return products, nil
}

func (s *Service) remember(products []domain.Product) {
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.byID = byID
}
