package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Local stores blobs under a directory served by the HTTP server at URLPrefix.
type Local struct {
	dir       string
	urlPrefix string
	logger    *zap.Logger
}

// NewLocal creates the directory if needed. urlPrefix is the route the directory is
// served under (e.g. "uploads").
func NewLocal(dir, urlPrefix string, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, urlPrefix: strings.Trim(urlPrefix, "/"), logger: logger}, nil
}

// Dir returns the storage root.
func (l *Local) Dir() string { return l.dir }

// Put writes body to dir/key and returns urlPrefix/key.
func (l *Local) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	full, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	l.logger.Debug("flyer stored", zap.String("key", key))
	return path.Join(l.urlPrefix, path.Clean("/"+key)), nil
}

// Delete removes the file behind a path returned by Put. Missing files are not an error.
func (l *Local) Delete(_ context.Context, p string) error {
	key := strings.TrimPrefix(strings.TrimPrefix(p, "/"), l.urlPrefix+"/")
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// resolve maps key into dir, refusing keys that escape it.
func (l *Local) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.dir, filepath.FromSlash(clean)), nil
}
