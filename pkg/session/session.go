// Package session stores the local login session established after a
// successful reconciliation. The broker decides whether a session may
// exist; this package only holds it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is one established login
type Session struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds sessions between requests
type Store interface {
	// Establish creates a session for an account and returns it.
	Establish(ctx context.Context, accountID int64, sourceKind string) (*Session, error)
	// Get returns the session for an id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Clear removes a session. Clearing an unknown id is not an error.
	Clear(ctx context.Context, id string) error
}

// RedisStore keeps sessions in Redis with a TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "centralauth:session:" + id
}

// Establish creates a session for an account
func (s *RedisStore) Establish(ctx context.Context, accountID int64, sourceKind string) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Source:    sourceKind,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get returns the session for an id
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Clear removes a session
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// MemoryStore keeps sessions in process memory. Intended for tests and
// single-instance deployments without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewMemoryStore creates an in-memory session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Establish creates a session for an account
func (s *MemoryStore) Establish(ctx context.Context, accountID int64, sourceKind string) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Source:    sourceKind,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns the session for an id
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || time.Since(sess.CreatedAt) > s.ttl {
		return nil, ErrNotFound
	}
	out := *sess
	return &out, nil
}

// Clear removes a session
func (s *MemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
