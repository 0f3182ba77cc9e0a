// Package payment implements the HTTP client for the external payment
// gateway, authenticated with OAuth2 client credentials.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials is the OAuth2 client-credentials configuration for the
// gateway.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
}

func (c Credentials) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
	}
}

// ClientCred caches the access token and refreshes it when it expires.
type ClientCred struct {
	conf clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClientCred builds the token source from the credentials.
func NewClientCred(c Credentials) *ClientCred {
	return &ClientCred{conf: c.toOauth2Config()}
}

// SetAuthHeader puts a valid bearer token on the request, fetching a new
// one when the cached token expired.
func (c *ClientCred) SetAuthHeader(ctx context.Context, r *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		tok, err := c.conf.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}
		c.token = tok
	}
	c.token.SetAuthHeader(r)
	return nil
}

// ForceRefresh discards the cached token and fetches a new one.
func (c *ClientCred) ForceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return tok.AccessToken, nil
}
