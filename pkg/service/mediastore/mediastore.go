package mediastore

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// Store keeps media payloads attached to incoming messages (photos, voice
// notes, documents). The returned path goes into model.MediaRef and is only
// meaningful to the same store implementation.
type Store interface {
	Put(ctx context.Context, chatID types.ChatID, name string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// objectName builds a collision-free object key. The timestamp prefix keeps
// listings in upload order per chat.
func objectName(chatID types.ChatID, name string) string {
	return string(chatID) + "/" + time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString() + "-" + name
}
