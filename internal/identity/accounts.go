package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var ErrAccountNotFound = errors.New("account not found")

type Account struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUID(ctx context.Context, uid string) (*Account, error)
}

// SQLiteAccounts keeps accounts in the local SQLite database.
type SQLiteAccounts struct {
	db *sql.DB
}

func NewSQLiteAccounts(db *sql.DB) *SQLiteAccounts {
	return &SQLiteAccounts{db: db}
}

func (s *SQLiteAccounts) CreateAccount(ctx context.Context, account Account) error {
	query := `
		INSERT INTO accounts (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.UID, account.Email, account.PasswordHash, account.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return ErrEmailInUse
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *SQLiteAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, `SELECT uid, email, password_hash FROM accounts WHERE email = $1`, email)
}

func (s *SQLiteAccounts) FindByUID(ctx context.Context, uid string) (*Account, error) {
	return s.findOne(ctx, `SELECT uid, email, password_hash FROM accounts WHERE uid = $1`, uid)
}

func (s *SQLiteAccounts) findOne(ctx context.Context, query string, arg string) (*Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&account.UID, &account.Email, &account.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &account, nil
}
