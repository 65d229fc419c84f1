package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"songquiz/internal/domain"
)

// DefaultTokenURL is Spotify's accounts token endpoint
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// tokens are refreshed this long before they expire
const tokenRefreshBuffer = 5 * time.Minute

// TokenSource supplies bearer tokens for catalog requests
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentials is a cached client-credentials token supplier. Fetches run
// on the caller's context, so tearing down a game cancels its token request.
type ClientCredentials struct {
	cfg    *clientcredentials.Config
	client *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewClientCredentials creates a token supplier for the given app credentials.
// It fails with domain.ErrMissingCredentials when either value is unset.
func NewClientCredentials(clientID, clientSecret, tokenURL string, httpClient *http.Client) (*ClientCredentials, error) {
	if !configured(clientID) || !configured(clientSecret) {
		return nil, domain.ErrMissingCredentials
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &ClientCredentials{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: httpClient,
	}, nil
}

// Token returns a valid access token, fetching a new one when the cached one
// is missing or within tokenRefreshBuffer of expiring
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok != nil && c.tok.AccessToken != "" && (c.tok.Expiry.IsZero() || time.Until(c.tok.Expiry) > tokenRefreshBuffer) {
		return c.tok.AccessToken, nil
	}

	if c.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	}
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetching access token: %v", domain.ErrCatalogUnavailable, err)
	}
	c.tok = tok
	return tok.AccessToken, nil
}

func configured(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.HasPrefix(v, "your_")
}

// NoCredentials is the token supplier used when no app credentials are
// configured. Every request fails, which ends the game that made it.
type NoCredentials struct{}

// Token always fails with domain.ErrMissingCredentials
func (NoCredentials) Token(ctx context.Context) (string, error) {
	return "", domain.ErrMissingCredentials
}
