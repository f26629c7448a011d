package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local хранит объекты в каталоге на диске, раздаются они через /files/.
type Local struct {
	dir       string
	publicURL string
}

// NewLocal создает каталог, если его нет.
func NewLocal(dir, publicURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create dir %s: %w", dir, err)
	}
	return &Local{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir - корень хранилища, для файлового сервера.
func (l *Local) Dir() string { return l.dir }

func (l *Local) full(p string) (string, error) {
	clean := filepath.Clean("/" + p)
	if clean == "/" {
		return "", fmt.Errorf("blob: empty path")
	}
	return filepath.Join(l.dir, filepath.FromSlash(clean)), nil
}

func (l *Local) Put(ctx context.Context, p string, r io.Reader, contentType string) (string, error) {
	full, err := l.full(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("blob: create %s: %w", p, err)
	}
	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("blob: write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w", p, err)
	}
	return l.URL(p), nil
}

func (l *Local) Delete(ctx context.Context, p string) error {
	full, err := l.full(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("blob: delete %s: %w", p, err)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	full, err := l.full(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Local) URL(p string) string {
	return l.publicURL + "/" + strings.TrimLeft(p, "/")
}
