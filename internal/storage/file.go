package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	logx "zenflow/pkg/logx"
)

// fileStore keeps one file per key under dir:
//
//	<dir>/<key>.json
//
// Writes go to <file>.tmp first and are renamed into place, so a crash
// mid-write leaves the previous value intact.
type fileStore struct {
	log logx.Logger
	fs  afero.Fs
	dir string

	mu     sync.Mutex
	closed bool
}

// OpenFile opens a file-backed store rooted at dir on fs.
func OpenFile(fs afero.Fs, dir string, log logx.Logger) (Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, fs: fs, dir: dir}, nil
}

func (s *fileStore) pathFor(key string) string {
	// Keys are caller-chosen; keep anything outside a safe charset from
	// escaping the directory.
	safe := true
	for _, r := range key {
		if !(r == '_' || r == '-' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			safe = false
			break
		}
	}
	if !safe || strings.HasPrefix(key, ".") {
		key = "x-" + hex.EncodeToString([]byte(key))
	}
	return filepath.Join(s.dir, key+".json")
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	key, err := checkKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	b, err := afero.ReadFile(s.fs, s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *fileStore) Set(ctx context.Context, key string, blob []byte) error {
	_ = ctx
	key, err := checkKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	path := s.pathFor(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, blob, 0o600); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	s.log.Trace("value written", logx.String("key", key), logx.Int("bytes", len(blob)))
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
