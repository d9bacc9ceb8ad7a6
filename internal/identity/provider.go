package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password is too short")
)

const minPasswordLength = 6

// Provider is the source of the signed-in identity. It starts out loading;
// watchers hear nothing until Settle is called, then receive the settled
// identity right away and every change after it.
type Provider struct {
	accounts AccountStore
	logger   *slog.Logger

	emitMu sync.Mutex // keeps watcher calls in change order

	mu       sync.RWMutex
	current  *domain.Identity
	settled  bool
	watchers map[int]func(*domain.Identity)
	nextID   int
}

func NewProvider(accounts AccountStore, logger *slog.Logger) *Provider {
	return &Provider{
		accounts: accounts,
		logger:   logger,
		watchers: make(map[int]func(*domain.Identity)),
	}
}

// Loading reports whether the provider has not settled yet.
func (p *Provider) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.settled
}

func (p *Provider) Current() *domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyIdentity(p.current)
}

// Settle ends the loading phase. A non-empty restoreUID resumes the session of
// that account when it still exists; otherwise the provider settles signed out.
func (p *Provider) Settle(ctx context.Context, restoreUID string) error {
	var identity *domain.Identity
	if restoreUID != "" {
		account, err := p.accounts.FindByUID(ctx, restoreUID)
		switch {
		case err == nil:
			identity = &domain.Identity{UID: account.UID, Email: account.Email}
		case errors.Is(err, ErrAccountNotFound):
			p.logger.Warn("session account no longer exists", slog.String("uid", restoreUID))
		default:
			return fmt.Errorf("restore session: %w", err)
		}
	}
	p.set(identity)
	return nil
}

// Watch registers fn for identity changes. If the provider has settled, fn is
// called with the current identity before Watch returns.
func (p *Provider) Watch(fn func(*domain.Identity)) (cancel func()) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = fn
	settled, current := p.settled, copyIdentity(p.current)
	p.mu.Unlock()

	if settled {
		fn(current)
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}
}

func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := p.accounts.CreateAccount(ctx, account); err != nil {
		return err
	}

	p.logger.Info("account created", slog.String("uid", account.UID))
	p.set(&domain.Identity{UID: account.UID, Email: account.Email})
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := p.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}

	p.set(&domain.Identity{UID: account.UID, Email: account.Email})
	return nil
}

func (p *Provider) SignOut(context.Context) error {
	p.set(nil)
	return nil
}

func (p *Provider) set(identity *domain.Identity) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	p.current = copyIdentity(identity)
	p.settled = true
	watchers := make([]func(*domain.Identity), 0, len(p.watchers))
	for _, fn := range p.watchers {
		watchers = append(watchers, fn)
	}
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(copyIdentity(identity))
	}
}

// Message renders an authentication error for display.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrEmailInUse):
		return "An account with this email already exists."
	case errors.Is(err, ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, ErrWeakPassword):
		return fmt.Sprintf("Password should be at least %d characters.", minPasswordLength)
	default:
		return "Something went wrong. Please try again."
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func copyIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
