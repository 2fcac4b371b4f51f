package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zenflow/internal/config"
	"zenflow/internal/storage"
)

// mapStorageConfig resolves the storage section. An empty path puts the
// data under the user config directory.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "memory", "none":
		return storage.Config{Driver: "memory"}, nil
	case "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return storage.Config{}, fmt.Errorf("storage.path not set and no user config dir: %w", err)
		}
		path = filepath.Join(base, "zenflow")
		if driver != "file" {
			path = filepath.Join(path, "zenflow.db")
		}
	}
	busy := cfg.BusyTimeout()
	if busy <= 0 {
		busy = time.Second
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapLogConfig(cfg *config.Config) (lc logConfig) {
	lc.Level = cfg.Logging.Level
	lc.Console = cfg.Logging.Console
	lc.File.Enabled = cfg.Logging.File.Enabled
	lc.File.Path = cfg.Logging.File.Path
	return lc
}
