package storage

import (
	"errors"
	"strings"

	"github.com/spf13/afero"

	logx "zenflow/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "memory", "none":
		return NewMemory(), nil
	case "file":
		return OpenFile(afero.NewOsFs(), cfg.Path, log)
	case "sqlite", "sqlite3":
		return openSQLite(afero.NewOsFs(), cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func checkKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}
