package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrObjectNotFound is returned by a Store when the named blob does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Store abstracts where artifact blobs live.
// Implementations include a local directory and S3.
type Store interface {
	// Put writes data under name, replacing any previous blob.
	Put(ctx context.Context, name string, data []byte) error
	// Get reads the blob stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// Exists reports whether a blob is stored under name.
	Exists(ctx context.Context, name string) (bool, error)
}

// LocalStore keeps blobs as files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (l *LocalStore) Dir() string { return l.dir }

// Put writes to a temp file and renames it into place so readers never see
// a partial blob.
func (l *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), l.path(name)); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (l *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return data, nil
}

func (l *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *LocalStore) path(name string) string {
	return filepath.Join(l.dir, name)
}
