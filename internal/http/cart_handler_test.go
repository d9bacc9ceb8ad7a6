package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartViewDTO struct {
	UID   string            `json:"uid"`
	State string            `json:"state"`
	Items []domain.LineItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

func decodeView(t *testing.T, body []byte) cartViewDTO {
	var view cartViewDTO
	require.NoError(t, json.Unmarshal(body, &view))
	return view
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestGetCart(t *testing.T) {
	ts := newTestServer()
	ts.cart.view = domain.CartView{
		UID:   "alice",
		State: domain.StateSynced,
		Items: []domain.LineItem{shirt.LineItem(2)},
		Total: decimal.RequireFromString("40.00"),
	}

	rec := ts.do(http.MethodGet, "/api/v1/cart/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec.Body.Bytes())
	assert.Equal(t, "alice", view.UID)
	assert.Equal(t, "synced", view.State)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(40)))
}

func TestAddItem_Success(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, ts.cart.added, 1)
	assert.Equal(t, "Shirt", ts.cart.added[0].Title)

	toasts := ts.toasts.Active()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Shirt added to cart", toasts[0].Message)
	assert.Equal(t, domain.SeveritySuccess, toasts[0].Severity)
}

func TestAddItem_DefaultQuantity(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":9}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	view := decodeView(t, rec.Body.Bytes())
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{`, "invalid_request"},
		{"missing product", `{"quantity":1}`, "invalid_product_id"},
		{"negative quantity", `{"product_id":7,"quantity":-1}`, "invalid_quantity"},
		{"too many", `{"product_id":7,"quantity":100}`, "invalid_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			rec := ts.do(http.MethodPost, "/api/v1/cart/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec.Body.Bytes()).Code)
			assert.Empty(t, ts.cart.added)
		})
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":42,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ts.cart.added)
}

func TestAddItem_CatalogDown(t *testing.T) {
	ts := newTestServer()
	ts.catalog.err = errors.New("connection refused")

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAddItem_NotSignedIn(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = service.ErrNotSignedIn

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_signed_in", decodeError(t, rec.Body.Bytes()).Code)
	assert.Empty(t, ts.toasts.Active())
}

func TestAddItem_NotSubscribed(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = service.ErrNotSubscribed

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddItem_StoreErrorSwallowed(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = errors.New("add product 7 to cart: connection reset")

	rec := ts.do(http.MethodPost, "/api/v1/cart/items", `{"product_id":7,"quantity":1}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	decodeView(t, rec.Body.Bytes())
	assert.Empty(t, ts.toasts.Active())
}

func TestUpdateQuantity(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPatch, "/api/v1/cart/items/7", `{"delta":-1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, -1, ts.cart.deltas[7])
}

func TestUpdateQuantity_Validation(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodPatch, "/api/v1/cart/items/abc", `{"delta":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPatch, "/api/v1/cart/items/7", `{"delta":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_delta", decodeError(t, rec.Body.Bytes()).Code)

	rec = ts.do(http.MethodPatch, "/api/v1/cart/items/7", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, ts.cart.deltas)
}

func TestRemoveItem(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodDelete, "/api/v1/cart/items/9", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int64{9}, ts.cart.removed)
}

func TestRemoveItem_InvalidID(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodDelete, "/api/v1/cart/items/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.cart.removed)
}

func TestClearCart(t *testing.T) {
	ts := newTestServer()
	ts.cart.view.Items = []domain.LineItem{shirt.LineItem(1), hat.LineItem(2)}

	rec := ts.do(http.MethodDelete, "/api/v1/cart/", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ts.cart.cleared)
	assert.Empty(t, decodeView(t, rec.Body.Bytes()).Items)
}

func TestClearCart_NotSignedIn(t *testing.T) {
	ts := newTestServer()
	ts.cart.err = service.ErrNotSignedIn

	rec := ts.do(http.MethodDelete, "/api/v1/cart/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
