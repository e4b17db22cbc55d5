package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// URLPrefix is the route under which LocalStore objects are served
const URLPrefix = "/uploads/"

// LocalStore keeps objects on the local filesystem
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory if needed.
// baseURL is prepended to URLPrefix when building object URLs.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalStore) Upload(ctx context.Context, p, contentType string, r io.Reader, size int64) (Handle, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return Handle{}, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return Handle{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Handle{}, fmt.Errorf("failed to save file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Handle{}, fmt.Errorf("failed to save file: %w", err)
	}
	if size >= 0 && n != size {
		return Handle{}, fmt.Errorf("failed to save file: wrote %d of %d bytes", n, size)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return Handle{}, fmt.Errorf("failed to save file: %w", err)
	}
	return Handle{Path: clean}, nil
}

func (s *LocalStore) URL(ctx context.Context, h Handle) (string, error) {
	clean, err := CleanPath(h.Path)
	if err != nil {
		return "", err
	}
	return s.baseURL + URLPrefix + clean, nil
}

func (s *LocalStore) Delete(ctx context.Context, h Handle) error {
	clean, err := CleanPath(h.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Open returns a stored object for serving along with its size and content type.
func (s *LocalStore) Open(p string) (*os.File, int64, string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, 0, "", err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, "", ErrNotFound
		}
		return nil, 0, "", err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, "", err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, "", ErrNotFound
	}
	return f, info.Size(), ContentType(clean), nil
}
