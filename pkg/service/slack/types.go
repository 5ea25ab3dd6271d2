package slack

import (
	"context"
	"io"
)

// Service provides the Slack API surface the assistant needs
type Service interface {
	// PostMessage posts a plain text message to a channel and returns the
	// message timestamp
	PostMessage(ctx context.Context, channelID string, text string) (string, error)

	// GetUserInfo retrieves user information for the given user ID
	GetUserInfo(ctx context.Context, userID string) (*User, error)

	// DownloadFile streams a file shared in a message into w. The URL must
	// be a Slack private download URL.
	DownloadFile(ctx context.Context, url string, w io.Writer) error
}

// User represents a Slack user
type User struct {
	ID       string
	Name     string
	RealName string
}
