package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Catalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	logger  *slog.Logger
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, logger *slog.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Products(ctx)
	if err != nil {
		h.logger.Warn("product list unavailable",
			slog.String("request_id", getRequestID(r.Context())), slog.Any("error", err))
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "Failed to load products",
			Code:    "catalog_unavailable",
			Details: err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	product, err := h.catalog.Product(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "Failed to load products")
		return
	}

	respondJSON(w, http.StatusOK, product)
}
