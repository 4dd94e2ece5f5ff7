// Package fs stores uploaded assets on the local filesystem and serves
// them back under a public base URL.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// Store implements domain.AssetStore on a directory tree. Keys are slash
// separated relative paths; the public URL is baseURL + "/files/" + key.
type Store struct {
	dir     string
	baseURL string
}

// New constructs a Store rooted at dir, creating it if needed.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("op=assetstore.New: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory, for mounting a static file server.
func (s *Store) Dir() string { return s.dir }

// Put writes data under key and returns its public URL. Keys must stay
// inside the root; path traversal is rejected.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("op=assetstore.put: %w: bad key %q", domain.ErrInvalidArgument, key)
	}
	dst := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("op=assetstore.put: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("op=assetstore.put: %w", err)
	}
	return s.baseURL + "/files/" + filepath.ToSlash(clean), nil
}
