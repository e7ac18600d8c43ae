package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/uiowa-coph/roomres/internal/observability"
)

// appTokenCache holds the shared application credential. Concurrent first
// acquisitions collapse into one client-credentials round trip; the last
// successful acquisition wins.
type appTokenCache struct {
	client *Client

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group
	now   func() time.Time
}

func newAppTokenCache(client *Client) *appTokenCache {
	return &appTokenCache{client: client, now: time.Now}
}

func (c *appTokenCache) get(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiry := c.token, c.expiry
	c.mu.RUnlock()
	if token != "" && c.now().Before(expiry.Add(-TokenExpiryMargin)) {
		return token, nil
	}

	v, err, _ := c.group.Do("app-token", func() (any, error) {
		// Another caller may have refreshed while we waited on the group.
		c.mu.RLock()
		token, expiry := c.token, c.expiry
		c.mu.RUnlock()
		if token != "" && c.now().Before(expiry.Add(-TokenExpiryMargin)) {
			return token, nil
		}

		tok, err := c.client.appConf.Token(c.client.withHTTPClient(ctx))
		if err != nil {
			observability.RecordAppTokenAcquisition("failure")
			return nil, &Error{Op: "app_token", Message: "client credentials grant failed", Err: err}
		}
		c.mu.Lock()
		c.token = tok.AccessToken
		c.expiry = tok.Expiry
		c.mu.Unlock()
		observability.RecordAppTokenAcquisition("success")
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// invalidate drops the cached token so the next use re-acquires.
func (c *appTokenCache) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}
