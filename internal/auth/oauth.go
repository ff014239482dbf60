// Package auth implements the Google OAuth2 desktop flow used to reach the
// Drive API: user-supplied client secrets, PKCE authorization, a local
// callback server, and a cached token that is refreshed when expired.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tocolab/internal/config"
)

const (
	AuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL     = "https://oauth2.googleapis.com/token"
	RedirectURL  = "http://localhost:8467/oauth-callback"
	CallbackPort = ":8467"
)

// refreshMargin is how long before expiry a token is already treated as
// expired.
const refreshMargin = 5 * time.Minute

var (
	// ErrMissingCredentials reports that the user has not installed an
	// OAuth client secrets file yet.
	ErrMissingCredentials = errors.New("no credentials.json found")

	// ErrAuthRequired reports that no usable token exists and a full
	// authentication flow is needed.
	ErrAuthRequired = errors.New("authentication required")
)

// ClientSecrets is the relevant part of a Google Cloud "Desktop app" OAuth
// client JSON.
type ClientSecrets struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
}

// LoadClientSecrets reads the user-supplied client secrets file.
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrMissingCredentials, path)
		}
		return nil, err
	}

	var cs ClientSecrets
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("malformed client secrets file: %w", err)
	}
	if cs.Installed.ClientID == "" {
		return nil, fmt.Errorf("client secrets file has no installed.client_id (is it a Desktop app client?)")
	}
	return &cs, nil
}

// Token holds the OAuth token details persisted to disk.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	Expiry       time.Time `json:"expiry"`
}

// TokenManager handles the OAuth flow and token persistence.
type TokenManager struct {
	secrets   *ClientSecrets
	tokenFile string

	mu    sync.Mutex
	token *Token
}

// NewTokenManager loads the client secrets and any cached token from the
// tocolab config directory.
func NewTokenManager() (*TokenManager, error) {
	credPath, err := config.CredentialsPath()
	if err != nil {
		return nil, err
	}
	secrets, err := LoadClientSecrets(credPath)
	if err != nil {
		return nil, err
	}
	tokenPath, err := config.TokenPath()
	if err != nil {
		return nil, err
	}

	tm := &TokenManager{secrets: secrets, tokenFile: tokenPath}
	// Missing token just means the flow hasn't run yet.
	_ = tm.LoadToken()
	return tm, nil
}

// LoadToken loads the cached token from disk.
func (tm *TokenManager) LoadToken() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	data, err := os.ReadFile(tm.tokenFile)
	if err != nil {
		return err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	tm.token = &token
	return nil
}

// SaveToken persists the current token with owner-only permissions.
func (tm *TokenManager) SaveToken() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token == nil {
		return nil
	}

	data, err := json.MarshalIndent(tm.token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(tm.tokenFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(tm.tokenFile, data, 0600)
}

// Credentials returns a valid access token, refreshing if necessary.
// Returns ErrAuthRequired when no token exists or refresh is impossible,
// so callers can prompt for re-authentication instead of treating it as a
// network failure.
func (tm *TokenManager) Credentials(ctx context.Context) (*Token, error) {
	tm.mu.Lock()
	if tm.token == nil {
		tm.mu.Unlock()
		return nil, ErrAuthRequired
	}
	if time.Now().Add(refreshMargin).Before(tm.token.Expiry) {
		token := tm.token
		tm.mu.Unlock()
		return token, nil
	}
	refreshable := tm.token.RefreshToken != ""
	tm.mu.Unlock()

	if !refreshable {
		return nil, fmt.Errorf("%w: token expired and no refresh token", ErrAuthRequired)
	}
	if err := tm.Refresh(ctx); err != nil {
		return nil, err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.token, nil
}

// Refresh exchanges the refresh token for a new access token and persists
// it.
func (tm *TokenManager) Refresh(ctx context.Context) error {
	tm.mu.Lock()
	if tm.token == nil || tm.token.RefreshToken == "" {
		tm.mu.Unlock()
		return fmt.Errorf("%w: no refresh token available", ErrAuthRequired)
	}
	refreshToken := tm.token.RefreshToken
	tm.mu.Unlock()

	data := url.Values{}
	data.Set("client_id", tm.secrets.Installed.ClientID)
	data.Set("client_secret", tm.secrets.Installed.ClientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	newToken, err := postTokenForm(ctx, data)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	tm.mu.Lock()
	tm.token.AccessToken = newToken.AccessToken
	tm.token.ExpiresIn = newToken.ExpiresIn
	tm.token.Expiry = time.Now().Add(time.Duration(newToken.ExpiresIn) * time.Second)
	// The response may carry a rotated refresh token.
	if newToken.RefreshToken != "" {
		tm.token.RefreshToken = newToken.RefreshToken
	}
	tm.mu.Unlock()

	return tm.SaveToken()
}

// AuthFlowResult holds the state needed to complete an authorization flow.
type AuthFlowResult struct {
	Verifier string
	State    string
	AuthURL  string
}

// StartAuth generates the PKCE challenge and the authorization URL the
// user must visit.
func (tm *TokenManager) StartAuth() (*AuthFlowResult, error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, err
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, err
	}
	oauthState := base64.RawURLEncoding.EncodeToString(stateBytes)

	u, err := url.Parse(AuthURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client_id", tm.secrets.Installed.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", RedirectURL)
	q.Set("scope", strings.Join(config.Scopes, " "))
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", oauthState)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	u.RawQuery = q.Encode()

	return &AuthFlowResult{
		Verifier: verifier,
		State:    oauthState,
		AuthURL:  u.String(),
	}, nil
}

// ExchangeCode trades an authorization code for tokens and persists them.
func (tm *TokenManager) ExchangeCode(ctx context.Context, code, verifier string) (*Token, error) {
	data := url.Values{}
	data.Set("client_id", tm.secrets.Installed.ClientID)
	data.Set("client_secret", tm.secrets.Installed.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", RedirectURL)
	data.Set("code_verifier", verifier)

	token, err := postTokenForm(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	token.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	tm.mu.Lock()
	tm.token = token
	tm.mu.Unlock()

	if err := tm.SaveToken(); err != nil {
		return nil, err
	}
	return token, nil
}

// postTokenForm posts a form to the token endpoint and decodes the token
// response. http.DefaultClient is used deliberately so tests can intercept
// the transport.
func postTokenForm(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	return &token, nil
}

// SetupGuide returns the instructions shown when no client secrets file is
// installed.
func SetupGuide() string {
	credPath, err := config.CredentialsPath()
	if err != nil {
		credPath = "~/.config/tocolab/credentials.json"
	}
	return fmt.Sprintf(`
=== tocolab: Setup Required ===

No credentials.json found. Follow these steps:

1. Go to https://console.cloud.google.com/
2. Create a new project (or select an existing one)
3. Enable the Google Drive API:
   - Go to APIs & Services > Library
   - Search for 'Google Drive API' and enable it
4. Create OAuth credentials:
   - Go to APIs & Services > Credentials
   - Click 'Create Credentials' > 'OAuth client ID'
   - Choose 'Desktop app' as the application type
   - Download the JSON file
5. Save it as: %s
6. Run: tocolab auth

`, credPath)
}
