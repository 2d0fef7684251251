package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultAccount is the account name used when none is configured.
const DefaultAccount = "default"

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrNoToken is returned when no token has been stored for an account.
var ErrNoToken = errors.New("no Google OAuth token found, run 'agenda auth' first")

func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, '-' and '_' are allowed", account)
	}
	return nil
}

// DefaultTokenDir returns the directory tokens are kept in,
// <user cache dir>/agenda.
func DefaultTokenDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "agenda")
}

// LoadConfig reads an OAuth client credentials file as downloaded from the
// Google Cloud console and returns a read-only config for it.
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	conf, err := google.ConfigFromJSON(b, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return conf, nil
}

// TokenStore keeps one OAuth token per account as a JSON file.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a store rooted at dir, or at DefaultTokenDir when
// dir is empty.
func NewTokenStore(dir string) *TokenStore {
	if dir == "" {
		dir = DefaultTokenDir()
	}
	return &TokenStore{dir: dir}
}

// Dir returns the store directory.
func (s *TokenStore) Dir() string { return s.dir }

func (s *TokenStore) getTokenFilePath(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token")
}

// Path returns the token file of an account.
func (s *TokenStore) Path(account string) (string, error) {
	if err := validateAccountName(account); err != nil {
		return "", err
	}
	return s.getTokenFilePath(account), nil
}

// Has reports whether a token file exists for the account.
func (s *TokenStore) Has(account string) bool {
	path, err := s.Path(account)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the stored token of an account.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	path, err := s.Path(account)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("account %s: %w", account, ErrNoToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return &tok, nil
}

// Save writes the token of an account, readable by the owner only.
func (s *TokenStore) Save(account string, tok *oauth2.Token) error {
	path, err := s.Path(account)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// HasTokenForAccount reports whether the default store holds a token for the
// account.
func HasTokenForAccount(account string) bool {
	return NewTokenStore("").Has(account)
}
