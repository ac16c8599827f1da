// Package publish authorizes against and uploads to a podcast host.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL   = "https://api.podbean.com/v1/dialog/oauth"
	DefaultTokenURL  = "https://api.podbean.com/v1/oauth/token"
	DefaultUploadURL = "https://api.podbean.com/v1/episodes"
	DefaultScope     = "episode_publish"

	exchangeTimeout = 30 * time.Second
)

var (
	ErrAuthExchange  = errors.New("authorization code exchange failed")
	ErrNotAuthorized = errors.New("not authorized: exchange an authorization code first")
)

// OAuthConfig identifies this client to the hosting service.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scope        string
}

// Authorizer runs the OAuth2 authorization-code flow. Client credentials go
// in an HTTP Basic header.
type Authorizer struct {
	config *oauth2.Config
	client *http.Client
}

func NewAuthorizer(cfg OAuthConfig) *Authorizer {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	return &Authorizer{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{cfg.Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: &http.Client{Timeout: exchangeTimeout},
	}
}

// AuthCodeURL is the page the user visits to grant access.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// Exchange trades a single-use authorization code for a bearer token.
// Failures are not retried since the code cannot be reused.
func (a *Authorizer) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: empty authorization code", ErrAuthExchange)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", fmt.Errorf("%w (status %d): %s", ErrAuthExchange, re.Response.StatusCode, string(re.Body))
		}
		return "", fmt.Errorf("%w: %v", ErrAuthExchange, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: response had no access_token", ErrAuthExchange)
	}
	return tok.AccessToken, nil
}

// Session holds the bearer token for the lifetime of the process. Tokens
// are never refreshed; an expired token surfaces as an upload failure.
type Session struct {
	mu    sync.RWMutex
	token string
}

// Authorize exchanges code and stores the token only on success.
func (s *Session) Authorize(ctx context.Context, a *Authorizer, code string) error {
	tok, err := a.Exchange(ctx, code)
	if err != nil {
		return err
	}
	s.SetToken(tok)
	return nil
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the held token or ErrNotAuthorized.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotAuthorized
	}
	return s.token, nil
}

// Authorized reports whether a token is held.
func (s *Session) Authorized() bool {
	_, err := s.Token()
	return err == nil
}
