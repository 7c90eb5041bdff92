// Package resolver looks up local accounts by the key an identity source
// asserted. The store is read-only: accounts are provisioned by the host
// application, never by an authentication flow.
package resolver

import (
	"context"
	"sync"

	"github.com/museumhub/centralauth/pkg/identity"
	"github.com/museumhub/centralauth/pkg/source"
)

// Resolver maps a derived lookup key to a local account. A miss is
// reported as (nil, nil); errors are reserved for store failures.
//
// Lookups are exact: the resolver adds no case normalization of its own,
// so the backing store's collation decides case sensitivity.
type Resolver interface {
	Resolve(ctx context.Context, key identity.Key) (*identity.LocalAccount, error)
}

// Memory is an in-process resolver and credential store used by tests and
// the development server. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	accounts []identity.LocalAccount
	hashes   map[string]string
}

// NewMemory creates an empty in-memory resolver
func NewMemory() *Memory {
	return &Memory{hashes: make(map[string]string)}
}

// AddAccount registers a local account
func (m *Memory) AddAccount(account identity.LocalAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, account)
}

// SetPasswordHash stores a bcrypt hash for a username
func (m *Memory) SetPasswordHash(username, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[username] = hash
}

// Resolve implements Resolver with exact matching on the key's strategy
func (m *Memory) Resolve(ctx context.Context, key identity.Key) (*identity.LocalAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.accounts {
		account := m.accounts[i]
		switch key.By {
		case identity.MatchByEmail:
			if account.Email == key.Value {
				return &account, nil
			}
		default:
			if account.Username == key.Value {
				return &account, nil
			}
		}
	}
	return nil, nil
}

// PasswordHash implements source.CredentialStore
func (m *Memory) PasswordHash(ctx context.Context, username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.hashes[username]
	if !ok {
		return "", source.ErrNoCredentials
	}
	return hash, nil
}
