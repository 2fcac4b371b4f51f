package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed     = errors.New("storage closed")
	ErrInvalidKey = errors.New("storage key is empty")
)

// Store is the persistence API consumed by the engine. Values are opaque.
type Store interface {
	Get(ctx context.Context, key string) (blob []byte, ok bool, err error)
	Set(ctx context.Context, key string, blob []byte) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "memory" (default when empty)
//   - "file": Path is a directory
//   - "sqlite": Path is the database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
