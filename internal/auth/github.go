package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	// defaultUserInfoURL is GitHub's authenticated-user endpoint. GitHub does
	// not implement OIDC for OAuth apps, so identity comes from the REST API
	// instead of an id_token.
	defaultUserInfoURL = "https://api.github.com/user"

	// providerTimeout bounds every outbound call to GitHub. The provider
	// being slow must not tie up callback handlers indefinitely.
	providerTimeout = 10 * time.Second

	// maxUserInfoBody caps the userinfo response size.
	maxUserInfoBody = 1 << 20 // 1 MiB
)

// Identity is the GitHub account returned by the userinfo endpoint.
// The numeric ID is the stable identifier; logins can be renamed.
type Identity struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubConfig holds the OAuth app credentials and optional endpoint
// overrides. Leave AuthURL, TokenURL, and UserInfoURL empty in production;
// tests point them at an httptest server.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// GitHubProvider drives the OAuth2 Authorization Code flow against GitHub
// and resolves the resulting token to a GitHub identity.
type GitHubProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGitHubProvider creates a GitHubProvider from the given credentials.
func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	endpoint := githuboauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			// read:user is enough to call /user; no repo or org access.
			Scopes: []string{"read:user"},
		},
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: providerTimeout},
	}
}

// AuthCodeURL builds the GitHub authorization URL carrying the given state.
func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for an access token.
//
// GitHub rejecting the code (wrong, expired, or reused) maps to
// ErrInvalidGrant; transport failures, server errors, and throttling (429)
// map to ErrProviderUnavailable since retrying the login can succeed.
// Both wrap the underlying error for logging.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < 500 &&
			retrieveErr.Response.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return token, nil
}

// FetchIdentity calls the userinfo endpoint with the provider access token
// and returns the account it belongs to.
func (p *GitHubProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching userinfo: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: userinfo returned %d", ErrInvalidGrant, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBody)).Decode(&identity); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo: %v", ErrProviderUnavailable, err)
	}
	if identity.ID == 0 {
		return nil, fmt.Errorf("%w: userinfo missing account id", ErrProviderUnavailable)
	}

	return &identity, nil
}
