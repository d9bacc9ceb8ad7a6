package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// DefaultTTL is how long a toast stays visible.
const DefaultTTL = 3 * time.Second

// Toaster keeps ephemeral user-facing messages until they expire. Notify never
// blocks and gives no delivery guarantee.
type Toaster struct {
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	toasts map[string]domain.Toast
	timers map[string]*time.Timer
}

func NewToaster(ttl time.Duration, logger *slog.Logger) *Toaster {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Toaster{
		ttl:    ttl,
		logger: logger,
		toasts: make(map[string]domain.Toast),
		timers: make(map[string]*time.Timer),
	}
}

func (t *Toaster) Notify(message string, severity domain.Severity) {
	if severity == "" {
		severity = domain.SeverityInfo
	}
	toast := domain.Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts[toast.ID] = toast
	t.timers[toast.ID] = time.AfterFunc(t.ttl, func() { t.dismiss(toast.ID) })

	t.logger.Debug("toast", slog.String("severity", string(severity)), slog.String("message", message))
}

// Active returns the visible toasts, oldest first.
func (t *Toaster) Active() []domain.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	toasts := make([]domain.Toast, 0, len(t.toasts))
	for _, toast := range t.toasts {
		toasts = append(toasts, toast)
	}
	sort.Slice(toasts, func(i, j int) bool { return toasts[i].CreatedAt.Before(toasts[j].CreatedAt) })
	return toasts
}

// Close drops all toasts and stops pending timers.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
		delete(t.toasts, id)
	}
}

func (t *Toaster) dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.toasts, id)
	delete(t.timers, id)
}
