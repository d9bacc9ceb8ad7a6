package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// HTTPSource reads a FakeStore-compatible product listing. Consecutive
// failures open the breaker so a dead endpoint fails fast.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]domain.Product]
}

func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	breaker := gobreaker.NewCircuitBreaker[[]domain.Product](gobreaker.Settings{
		Name:    "catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &HTTPSource{url: url, client: client, breaker: breaker}
}

func (s *HTTPSource) List(ctx context.Context) ([]domain.Product, error) {
	return s.breaker.Execute(func() ([]domain.Product, error) {
		return s.fetch(ctx)
	})
}

func (s *HTTPSource) fetch(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}

	var products []domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return products, nil
}
