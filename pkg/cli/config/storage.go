package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/service/mediastore"
	"github.com/urfave/cli/v3"
)

// Storage holds CLI flags for the media store backend
type Storage struct {
	backend string
	bucket  string
	dir     string
}

// Flags returns CLI flags for storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "media-backend",
			Usage:       "Media storage backend (gcs, local or none)",
			Value:       "none",
			Sources:     cli.EnvVars("OTOMO_MEDIA_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "media-bucket",
			Usage:       "GCS bucket for media files (required for gcs backend)",
			Sources:     cli.EnvVars("OTOMO_MEDIA_BUCKET"),
			Destination: &s.bucket,
		},
		&cli.StringFlag{
			Name:        "media-dir",
			Usage:       "Local directory for media files (local backend)",
			Value:       "./media",
			Sources:     cli.EnvVars("OTOMO_MEDIA_DIR"),
			Destination: &s.dir,
		},
	}
}

// Configure creates the media store, or nil when media handling is disabled
func (s *Storage) Configure(ctx context.Context) (mediastore.Store, error) {
	switch s.backend {
	case "gcs":
		return mediastore.NewGCS(ctx, s.bucket)
	case "local":
		return mediastore.NewLocal(s.dir)
	case "none":
		return nil, nil
	default:
		return nil, goerr.New("invalid media backend", goerr.V("backend", s.backend))
	}
}
