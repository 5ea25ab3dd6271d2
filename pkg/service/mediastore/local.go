package mediastore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/safe"
)

type localStore struct {
	baseDir string
}

// NewLocal creates a media store that writes files under baseDir. Intended
// for local development and tests.
func NewLocal(baseDir string) (Store, error) {
	if baseDir == "" {
		return nil, goerr.New("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create media directory", goerr.V("dir", baseDir))
	}
	return &localStore{baseDir: baseDir}, nil
}

// resolve rejects paths that would escape the base directory
func (s *localStore) resolve(path string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return "", goerr.New("invalid media path", goerr.V("path", path))
	}
	return full, nil
}

func (s *localStore) Put(ctx context.Context, chatID types.ChatID, name string, r io.Reader) (string, error) {
	path := objectName(chatID, name)
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create media subdirectory", goerr.V("path", path))
	}

	f, err := os.Create(full)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create media file", goerr.V("path", path))
	}
	if _, err := io.Copy(f, r); err != nil {
		safe.Close(ctx, f)
		return "", goerr.Wrap(err, "failed to write media file", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close media file", goerr.V("path", path))
	}

	return path, nil
}

func (s *localStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open media file", goerr.V("path", path))
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return goerr.Wrap(err, "failed to delete media file", goerr.V("path", path))
	}
	return nil
}
