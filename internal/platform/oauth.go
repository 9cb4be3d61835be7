package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainoauth "github.com/adsightlabs/adsight-core/internal/domain/oauth"
)

// OAuthConfig holds the app credentials and endpoints for a platform's
// authorization-code flow.
type OAuthConfig struct {
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// OAuthClient performs the outbound token exchanges of the OAuth flow.
type OAuthClient interface {
	AuthorizationURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*domainoauth.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domainoauth.TokenResponse, error)
}

// HTTPOAuthClient is the default HTTP implementation of OAuthClient.
type HTTPOAuthClient struct {
	cfg        OAuthConfig
	httpClient *http.Client
}

var _ OAuthClient = (*HTTPOAuthClient)(nil)

// NewHTTPOAuthClient constructs the default OAuthClient.
func NewHTTPOAuthClient(cfg OAuthConfig, client *http.Client) *HTTPOAuthClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPOAuthClient{cfg: cfg, httpClient: client}
}

// AuthorizationURL builds the platform authorization URL carrying the state.
func (c *HTTPOAuthClient) AuthorizationURL(state string) (string, error) {
	authURL, err := url.Parse(c.cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	params := authURL.Query()
	params.Set("client_id", c.cfg.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", c.cfg.RedirectURI)
	if len(c.cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(c.cfg.Scopes, " "))
	}
	params.Set("state", state)
	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// ExchangeCode swaps an authorization code for tokens.
func (c *HTTPOAuthClient) ExchangeCode(ctx context.Context, code string) (*domainoauth.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.cfg.RedirectURI)
	return c.tokenRequest(ctx, data)
}

// Refresh exchanges a refresh token for a fresh access token. Refresh tokens
// are single-use on most platforms, so callers serialize per account.
func (c *HTTPOAuthClient) Refresh(ctx context.Context, refreshToken string) (*domainoauth.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, data)
}

func (c *HTTPOAuthClient) tokenRequest(ctx context.Context, data url.Values) (*domainoauth.TokenResponse, error) {
	if strings.TrimSpace(c.cfg.TokenURL) == "" {
		return nil, fmt.Errorf("token url missing")
	}
	data.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		data.Set("client_secret", c.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token exchange failed: status=%d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	// Some platforms nest the token payload inside the standard envelope.
	if nested, ok := raw["data"].(map[string]any); ok {
		raw = nested
	}

	token := &domainoauth.TokenResponse{
		AccessToken:  stringValue(raw["access_token"]),
		RefreshToken: stringValue(raw["refresh_token"]),
		TokenType:    stringValue(raw["token_type"]),
		Scope:        stringValue(raw["scope"]),
		AdvertiserID: stringValue(raw["advertiser_id"]),
	}
	if exp := raw["expires_in"]; exp != nil {
		token.ExpiresIn = int64Value(exp)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return token, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
