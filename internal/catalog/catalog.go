package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// Source is a read-only list of catalog entries.
type Source interface {
	List(ctx context.Context) ([]domain.Product, error)
}
