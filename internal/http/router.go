package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Cart          *CartHandler
	Products      *ProductHandler
	Auth          *AuthHandler
	Notifications *NotificationHandler
}

func NewRouter(h Handlers, logger *slog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", h.Auth.Me)
			r.Post("/signup", h.Auth.SignUp)
			r.Post("/signin", h.Auth.SignIn)
			r.Post("/signout", h.Auth.SignOut)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{product_id}", h.Products.Get)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Patch("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
		r.Get("/notifications", h.Notifications.List)
	})

	return r
}
