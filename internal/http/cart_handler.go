package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type CartEngine interface {
	View() domain.CartView
	AddToCart(ctx context.Context, product domain.Product, increment int) error
	RemoveItem(ctx context.Context, productID int64) error
	UpdateQuantity(ctx context.Context, productID int64, delta int) error
	ClearCart(ctx context.Context) error
}

type ProductLookup interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type Notifier interface {
	Notify(message string, severity domain.Severity)
}

type CartHandler struct {
	cart     CartEngine
	products ProductLookup
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
}

func NewCartHandler(cart CartEngine, products ProductLookup, notifier Notifier, logger *slog.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:     cart,
		products: products,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.View())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.products.Product(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "Failed to load products")
		return
	}

	err = h.cart.AddToCart(ctx, product, req.Quantity)
	if h.handleCartError(w, r, err) {
		return
	}
	if err == nil {
		h.notifier.Notify(fmt.Sprintf("%s added to cart", product.Title), domain.SeveritySuccess)
	}
	respondJSON(w, http.StatusAccepted, h.cart.View())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "invalid_delta", "delta must be non-zero")
		return
	}

	if h.handleCartError(w, r, h.cart.UpdateQuantity(ctx, productID, req.Delta)) {
		return
	}
	respondJSON(w, http.StatusAccepted, h.cart.View())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if h.handleCartError(w, r, h.cart.RemoveItem(ctx, productID)) {
		return
	}
	respondJSON(w, http.StatusAccepted, h.cart.View())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.handleCartError(w, r, h.cart.ClearCart(ctx)) {
		return
	}
	respondJSON(w, http.StatusAccepted, h.cart.View())
}

// handleCartError writes a response for errors the caller must act on and
// reports whether it did. Store failures are logged and left to the caller,
// which answers with the current view.
func (h *CartHandler) handleCartError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrNotSignedIn):
		respondError(w, http.StatusUnauthorized, "not_signed_in", err.Error())
	case errors.Is(err, service.ErrNotSubscribed):
		respondError(w, http.StatusConflict, "not_synchronized", err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	default:
		h.logger.Warn("cart mutation failed",
			slog.String("request_id", getRequestID(r.Context())), slog.Any("error", err))
		return false
	}
	return true
}
