package slack

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// DefaultCacheTTL is the default TTL for the user info cache
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	user      *User
	expiresAt time.Time
}

// client implements Service interface
type client struct {
	api      *slack.Client
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option is a functional option for client configuration
type Option func(*client)

// WithCacheTTL sets the TTL for the user info cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.cacheTTL = ttl
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	c := &client{
		api:      slack.New(token),
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// PostMessage posts a plain text message to a channel
func (c *client) PostMessage(ctx context.Context, channelID string, text string) (string, error) {
	_, timestamp, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post message", goerr.V("channel", channelID))
	}
	return timestamp, nil
}

// GetUserInfo retrieves user information with caching
func (c *client) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	now := time.Now()

	c.mu.RLock()
	if entry, ok := c.cache[userID]; ok && now.Before(entry.expiresAt) {
		c.mu.RUnlock()
		return entry.user, nil
	}
	c.mu.RUnlock()

	info, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user info", goerr.V("user", userID))
	}

	user := &User{
		ID:       info.ID,
		Name:     info.Name,
		RealName: info.RealName,
	}

	c.mu.Lock()
	c.cache[userID] = cacheEntry{user: user, expiresAt: now.Add(c.cacheTTL)}
	c.mu.Unlock()

	return user, nil
}

// DownloadFile streams a shared file into w
func (c *client) DownloadFile(ctx context.Context, url string, w io.Writer) error {
	if err := c.api.GetFileContext(ctx, url, w); err != nil {
		return goerr.Wrap(err, "failed to download file", goerr.V("url", url))
	}
	return nil
}
