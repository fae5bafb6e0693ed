package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
)

// LocalStore keeps assets on disk under one root directory. Files are served
// from <publicBaseURL>/uploads/<key>.
type LocalStore struct {
	root          string
	publicBaseURL string
}

// NewLocalStore creates the upload directory if it does not exist yet.
func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	log.Infof("[Storage] Local uploads in %s", root)
	return &LocalStore{root: root, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Root is the directory the store writes into.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") {
		return "", model.Validationf("invalid asset key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) (*model.Asset, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return nil, fmt.Errorf("write asset: %w", err)
	}
	return &model.Asset{
		URL:         fmt.Sprintf("%s/uploads/%s", s.publicBaseURL, key),
		Key:         key,
		ContentType: contentType,
	}, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", model.ErrAssetNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open asset: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}
