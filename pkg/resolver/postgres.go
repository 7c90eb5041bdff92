package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/source"
)

// Store resolves local accounts from the host's postgres user table. The
// table is owned by the host application; this store only reads it.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres and verifies the connection
func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Resolve implements Resolver with an exact match on username or email
func (s *Store) Resolve(ctx context.Context, key identity.Key) (*identity.LocalAccount, error) {
	column := "username"
	if key.By == identity.MatchByEmail {
		column = "email"
	}

	query := fmt.Sprintf(`
		SELECT id, username, email, is_active
		FROM users
		WHERE %s = $1
	`, column)

	account := &identity.LocalAccount{}
	err := s.db.QueryRowContext(ctx, query, key.Value).Scan(
		&account.ID, &account.Username, &account.Email, &account.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}

	return account, nil
}

// PasswordHash implements source.CredentialStore against the same table
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT password_hash
		FROM users
		WHERE username = $1
	`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", source.ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("credential lookup failed: %w", err)
	}
	if !hash.Valid || hash.String == "" {
		// Account exists but has no local password (external-only user).
		return "", source.ErrNoCredentials
	}

	return hash.String, nil
}
