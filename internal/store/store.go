// Package store provides the durable key-value store that holds the lead
// workspace collections.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leadproton/server/internal/config"
)

// Well-known keys.
const (
	KeyLeads           = "leads"
	KeyTemplates       = "templates"
	KeyActivityLogs    = "leadActivityLogs"
	KeyScheduledEmails = "scheduledEmails"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// KV is a string-keyed blob store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores that can observe writes made by other
// processes. Watch blocks until ctx is done, calling onChange with the key
// of every externally modified entry.
type Watcher interface {
	Watch(ctx context.Context, onChange func(key string)) error
}

// Open creates the backend selected by cfg and runs its migrations.
func Open(ctx context.Context, cfg *config.Config) (KV, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreFile:
		return OpenFile(cfg.StorePath)
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.StorePath)
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// LoadJSON decodes the value under key into v. A missing key leaves v
// untouched and returns nil.
func LoadJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
