package mediastore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"github.com/secmon-lab/otomo/pkg/utils/safe"
)

type gcsStore struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a media store backed by a Google Cloud Storage bucket
func NewGCS(ctx context.Context, bucket string) (Store, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &gcsStore{client: client, bucket: bucket}, nil
}

func (s *gcsStore) Put(ctx context.Context, chatID types.ChatID, name string, r io.Reader) (string, error) {
	path := objectName(chatID, name)

	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		safe.Close(ctx, w)
		return "", goerr.Wrap(err, "failed to upload media object", goerr.V("path", path))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize media object", goerr.V("path", path))
	}

	return path, nil
}

func (s *gcsStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open media object", goerr.V("path", path))
	}
	return r, nil
}

func (s *gcsStore) Delete(ctx context.Context, path string) error {
	if err := s.client.Bucket(s.bucket).Object(path).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete media object", goerr.V("path", path))
	}
	return nil
}
