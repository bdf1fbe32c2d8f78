package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/serviceerr"
)

// TokenClient talks to the provider's token and userinfo endpoints.
type TokenClient struct {
	endpoints    issuer.Endpoints
	clientID     string
	clientSecret string
	secureClient *http.Client
}

func NewTokenClient(endpoints issuer.Endpoints, clientID, clientSecret string, httpClient *http.Client) *TokenClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenClient{
		endpoints:    endpoints,
		clientID:     clientID,
		clientSecret: clientSecret,
		secureClient: httpClient,
	}
}

// Exchange trades an authorization code for tokens.
func (c *TokenClient) Exchange(ctx context.Context, code, redirectURI string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	return c.tokenRequest(ctx, data)
}

// Refresh exchanges a refresh token for fresh token material. Callers
// must not retry beyond their single attempt; a failed refresh means
// the session is simply unauthenticated.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	return c.tokenRequest(ctx, data)
}

func (c *TokenClient) tokenRequest(ctx context.Context, data url.Values) (TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token(), strings.NewReader(data.Encode()))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.secureClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TokenResponse{}, &serviceerr.UpstreamError{Operation: "token exchange", StatusCode: resp.StatusCode}
	}

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return TokenResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	if tokens.ExpiresAt.IsZero() && tokens.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}

	return tokens, nil
}

// Userinfo fetches the user claims for the given access token.
func (c *TokenClient) Userinfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.Userinfo(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.secureClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &serviceerr.UpstreamError{Operation: "userinfo", StatusCode: resp.StatusCode}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}

	return &profile, nil
}

var idTokenSigAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.HS256, jose.EdDSA,
}

// ProfileFromIDToken decodes the claims carried in an ID token without
// verifying its signature. The token came straight from the provider
// over TLS during the code exchange, so this is only a fallback for
// when the userinfo endpoint is unreachable.
func ProfileFromIDToken(idToken string) (*Profile, error) {
	jws, err := jose.ParseSigned(idToken, idTokenSigAlgs)
	if err != nil {
		return nil, fmt.Errorf("parsing id token: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(jws.UnsafePayloadWithoutVerification(), &profile); err != nil {
		return nil, fmt.Errorf("decoding id token claims: %w", err)
	}

	return &profile, nil
}
