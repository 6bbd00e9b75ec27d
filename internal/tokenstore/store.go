// Package tokenstore persists the operator token between runs. An empty
// token means logged out.
package tokenstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/cashier/internal/config"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
	BackendMemory   = "memory"
)

// Store keeps the operator token under a fixed key.
type Store interface {
	// Load returns the stored token, or "" when none is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.TokenStore.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.TokenStore.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.TokenStore.Path), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.TokenStore.RedisURL)
	case BackendPostgres:
		return NewPostgresStore(ctx, &cfg.Database)
	case BackendMariaDB:
		return NewMariaDBStore(ctx, cfg.TokenStore.MariaDBDSN)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q (supported: file, redis, postgres, mariadb, memory)", cfg.TokenStore.Backend)
	}
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	return s.Save(ctx, "")
}

func (s *MemoryStore) Close() error { return nil }
