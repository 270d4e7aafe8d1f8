package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred exchanges client credentials for device-cloud access tokens
// and caches the current token until it expires. The token-refresh job
// calls ForceRefresh after an authorization failure.
type ClientCred struct {
	conf clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClientCred creates a token client from the configuration.
func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// GetToken returns a valid access token, requesting a fresh one when the
// cached token is missing or expired.
func (c *ClientCred) GetToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.fetch(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetch(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// SetAuthHeader attaches a valid bearer token to the request.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		if err := c.fetch(); err != nil {
			return err
		}
	}
	c.token.SetAuthHeader(r)
	return nil
}

func (c *ClientCred) fetch() error {
	token, err := c.conf.Token(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	c.token = token
	return nil
}
