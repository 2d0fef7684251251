package google

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
type TokenProvider interface {
	// TokenSource returns a refreshing token source for the account.
	TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens from a TokenStore and writes refreshed
// tokens back to it.
type FileTokenProvider struct {
	store  *TokenStore
	config *oauth2.Config
}

// NewFileTokenProvider creates a new file-based token provider
func NewFileTokenProvider(store *TokenStore, config *oauth2.Config) *FileTokenProvider {
	return &FileTokenProvider{store: store, config: config}
}

// TokenSource implements TokenProvider.
func (p *FileTokenProvider) TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error) {
	tok, err := p.store.Load(account)
	if err != nil {
		return nil, err
	}
	return &persistingSource{
		base:    p.config.TokenSource(ctx, tok),
		store:   p.store,
		account: account,
		last:    tok.AccessToken,
	}, nil
}

// HasTokenForAccount implements TokenProvider.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return p.store.Has(account)
}

// persistingSource saves the token whenever the underlying source refreshed
// it.
type persistingSource struct {
	base    oauth2.TokenSource
	store   *TokenStore
	account string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token for account %s: %w", s.account, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(s.account, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// HTTPClient returns an authenticated HTTP client for the account.
// The client is configured to use HTTP/1.1.
func HTTPClient(ctx context.Context, provider TokenProvider, account string) (*http.Client, error) {
	ts, err := provider.TokenSource(ctx, account)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, ts),
			Base:   &http.Transport{ForceAttemptHTTP2: false, Proxy: http.ProxyFromEnvironment},
		},
	}, nil
}
