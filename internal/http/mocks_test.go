package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type mockCart struct {
	mu      sync.RWMutex
	view    domain.CartView
	err     error
	added   []domain.Product
	deltas  map[int64]int
	removed []int64
	cleared int
}

func newMockCart() *mockCart {
	return &mockCart{
		view:   domain.CartView{Items: []domain.LineItem{}, Total: decimal.Zero},
		deltas: make(map[int64]int),
	}
}

func (m *mockCart) View() domain.CartView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

func (m *mockCart) AddToCart(ctx context.Context, product domain.Product, increment int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.added = append(m.added, product)
	m.view.Items = append(m.view.Items, product.LineItem(increment))
	m.view.Total = domain.Total(m.view.Items)
	return nil
}

func (m *mockCart) RemoveItem(ctx context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, productID)
	return nil
}

func (m *mockCart) UpdateQuantity(ctx context.Context, productID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deltas[productID] += delta
	return nil
}

func (m *mockCart) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	if m.err != nil {
		return m.err
	}
	m.view.Items = []domain.LineItem{}
	m.view.Total = decimal.Zero
	return nil
}

type mockCatalog struct {
	products []domain.Product
	err      error
}

func (m *mockCatalog) Products(ctx context.Context) ([]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m *mockCatalog) Product(ctx context.Context, id int64) (domain.Product, error) {
	if m.err != nil {
		return domain.Product{}, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, catalog.ErrProductNotFound
}

type mockAuth struct {
	mu       sync.RWMutex
	loading  bool
	current  *domain.Identity
	err      error
	signOuts int
}

func (m *mockAuth) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *mockAuth) Current() *domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *mockAuth) SignUp(ctx context.Context, email, password string) error {
	return m.signIn(email)
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) error {
	return m.signIn(email)
}

func (m *mockAuth) signIn(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.current = &domain.Identity{UID: "uid-" + email, Email: email}
	return nil
}

func (m *mockAuth) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOuts++
	if m.err != nil {
		return m.err
	}
	m.current = nil
	return nil
}

type mockToasts struct {
	mu     sync.RWMutex
	toasts []domain.Toast
}

func (m *mockToasts) Notify(message string, severity domain.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, domain.Toast{
		ID:        message,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	})
}

func (m *mockToasts) Active() []domain.Toast {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Toast(nil), m.toasts...)
}

var (
	shirt = domain.Product{ID: 7, Title: "Shirt", Price: decimal.RequireFromString("20.00")}
	hat   = domain.Product{ID: 9, Title: "Hat", Price: decimal.RequireFromString("5.50")}
)

type testServer struct {
	cart    *mockCart
	catalog *mockCatalog
	auth    *mockAuth
	toasts  *mockToasts
	handler http.Handler
}

func newTestServer() *testServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		cart:    newMockCart(),
		catalog: &mockCatalog{products: []domain.Product{shirt, hat}},
		auth:    &mockAuth{},
		toasts:  &mockToasts{},
	}
	ts.handler = NewRouter(Handlers{
		Cart:          NewCartHandler(ts.cart, ts.catalog, ts.toasts, logger, 5*time.Second),
		Products:      NewProductHandler(ts.catalog, logger, 5*time.Second),
		Auth:          NewAuthHandler(ts.auth, logger, 5*time.Second),
		Notifications: NewNotificationHandler(ts.toasts),
	}, logger, 5*time.Second)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}
