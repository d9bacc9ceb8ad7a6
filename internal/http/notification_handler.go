package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ToastFeed interface {
	Active() []domain.Toast
}

type NotificationHandler struct {
	toasts ToastFeed
}

func NewNotificationHandler(toasts ToastFeed) *NotificationHandler {
	return &NotificationHandler{toasts: toasts}
}

type NotificationsResponse struct {
	Toasts []domain.Toast `json:"toasts"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	toasts := h.toasts.Active()
	if toasts == nil {
		toasts = []domain.Toast{}
	}
	respondJSON(w, http.StatusOK, NotificationsResponse{Toasts: toasts})
}
