// Package blobstore stores binary objects (chat images) under caller-built paths.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidPath = errors.New("invalid blob path")
)

// Handle identifies an uploaded object
type Handle struct {
	Path string `json:"path"`
}

// Store is the Blob Store Gateway
type Store interface {
	Upload(ctx context.Context, path, contentType string, r io.Reader, size int64) (Handle, error)
	URL(ctx context.Context, h Handle) (string, error)
	Delete(ctx context.Context, h Handle) error
}

// CleanPath normalizes an object path and rejects anything escaping the store root.
func CleanPath(p string) (string, error) {
	if p == "" || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := path.Clean("/" + p)[1:]
	if cleaned == "" {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// ContentType returns content type based on file extension
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
