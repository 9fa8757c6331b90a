// Package client talks to the AddisBroker REST backend: the initial
// notification fetch, notification mutations, conversation history, message
// sends and authentication.
package client

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/addisbroker/realtime/internal/utils"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     utils.TokenStore
	log        zerolog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

type Option func(*APIClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIClient) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *APIClient) { c.httpClient.Timeout = d }
}

// WithTokenStore persists refreshed tokens and restores them on creation.
func WithTokenStore(s utils.TokenStore) Option {
	return func(c *APIClient) { c.tokens = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *APIClient) { c.log = l }
}

func NewAPIClient(baseURL string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens != nil {
		if pair, err := c.tokens.Load(); err == nil {
			c.accessToken = pair.AccessToken
			c.refreshToken = pair.RefreshToken
		}
	}
	return c
}

func (c *APIClient) SetTokens(pair utils.TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
}

func (c *APIClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *APIClient) tokenPair() utils.TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return utils.TokenPair{AccessToken: c.accessToken, RefreshToken: c.refreshToken}
}
