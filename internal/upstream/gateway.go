package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pocket-id/portal/internal/cache"
	"github.com/pocket-id/portal/internal/issuer"
	"github.com/pocket-id/portal/internal/serviceerr"
)

// rateLimitDelay is how long to wait before the single retry after the
// provider answers 429.
const rateLimitDelay = 2 * time.Second

type Gateway struct {
	endpoints    issuer.Endpoints
	secureClient *http.Client
	cache        *cache.Cache

	retryDelay time.Duration
}

func NewGateway(endpoints issuer.Endpoints, httpClient *http.Client, store *cache.Cache) *Gateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Gateway{
		endpoints:    endpoints,
		secureClient: httpClient,
		cache:        store,
		retryDelay:   rateLimitDelay,
	}
}

// get issues an authenticated GET. A 429 is retried exactly once after
// a fixed delay; every other non-2xx status fails immediately with the
// status attached.
func (g *Gateway) get(ctx context.Context, operation, url string, headers http.Header) ([]byte, error) {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(g.retryDelay))

	var body []byte

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		for key, values := range headers {
			req.Header[key] = values
		}

		resp, err := g.secureClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			slogctx.Warn(ctx, "Upstream rate limited, backing off", "operation", operation, "delay", g.retryDelay)
			return retry.RetryableError(&serviceerr.UpstreamError{Operation: operation, StatusCode: resp.StatusCode})
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &serviceerr.UpstreamError{Operation: operation, StatusCode: resp.StatusCode}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// Clients lists all OAuth2/OIDC client applications.
func (g *Gateway) Clients(ctx context.Context, headers http.Header) ([]OIDCClient, error) {
	key := cache.ClientsKey()
	if cached, ok := g.cache.Get(key); ok {
		return cached.([]OIDCClient), nil
	}

	body, err := g.get(ctx, "fetch clients", g.endpoints.Clients(), headers)
	if err != nil {
		return nil, err
	}

	clients, _, err := decodeList[OIDCClient](body, "clients")
	if err != nil {
		return nil, fmt.Errorf("decoding clients response: %w", err)
	}

	if len(clients) > 0 {
		g.cache.Set(key, clients, cache.ClientsTTL)
	}

	return clients, nil
}

// ClientDetails fetches one client's full document, including its
// allowed-group list. This is the dominant cache beneficiary: access
// resolution calls it once per client per request.
func (g *Gateway) ClientDetails(ctx context.Context, headers http.Header, clientID string) (ClientDetails, error) {
	key := cache.ClientDetailsKey(clientID)
	if cached, ok := g.cache.Get(key); ok {
		return cached.(ClientDetails), nil
	}

	body, err := g.get(ctx, "fetch client details", g.endpoints.Client(clientID), headers)
	if err != nil {
		return ClientDetails{}, err
	}

	var details ClientDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return ClientDetails{}, fmt.Errorf("decoding client details response: %w", err)
	}

	g.cache.Set(key, details, cache.ClientDetailsTTL)

	return details, nil
}

// UserGroups lists the group memberships of the given user.
func (g *Gateway) UserGroups(ctx context.Context, headers http.Header, userID string) ([]Group, error) {
	key := cache.UserGroupsKey(userID)
	if cached, ok := g.cache.Get(key); ok {
		return cached.([]Group), nil
	}

	body, err := g.get(ctx, "fetch user groups", g.endpoints.UserGroups(userID), headers)
	if err != nil {
		return nil, err
	}

	groups, _, err := decodeList[Group](body, "groups", "userGroups")
	if err != nil {
		return nil, fmt.Errorf("decoding user groups response: %w", err)
	}

	if len(groups) > 0 {
		g.cache.Set(key, groups, cache.UserGroupsTTL)
	}

	return groups, nil
}

// CurrentUser fetches the provider's record of the calling user. The
// cache key is derived from the session's user id so entries never
// cross identities.
func (g *Gateway) CurrentUser(ctx context.Context, headers http.Header, userID string) (User, error) {
	key := cache.CurrentUserKey(userID)
	if cached, ok := g.cache.Get(key); ok {
		return cached.(User), nil
	}

	body, err := g.get(ctx, "fetch current user", g.endpoints.CurrentUser(), headers)
	if err != nil {
		return User{}, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return User{}, fmt.Errorf("decoding current user response: %w", err)
	}

	if user.ID != "" {
		g.cache.Set(key, user, cache.CurrentUserTTL)
	}

	return user, nil
}

// UserPasskeys lists the calling user's WebAuthn credentials.
func (g *Gateway) UserPasskeys(ctx context.Context, headers http.Header, userID string) ([]Passkey, error) {
	key := cache.PasskeysKey(userID)
	if cached, ok := g.cache.Get(key); ok {
		return cached.([]Passkey), nil
	}

	body, err := g.get(ctx, "fetch passkeys", g.endpoints.Passkeys(), headers)
	if err != nil {
		return nil, err
	}

	passkeys, _, err := decodeList[Passkey](body, "credentials", "passkeys")
	if err != nil {
		return nil, fmt.Errorf("decoding passkeys response: %w", err)
	}

	if len(passkeys) > 0 {
		g.cache.Set(key, passkeys, cache.PasskeysTTL)
	}

	return passkeys, nil
}

// APIKeys lists the API keys visible to the caller, with the provider's
// pagination block passed through untouched.
func (g *Gateway) APIKeys(ctx context.Context, headers http.Header) (APIKeyList, error) {
	key := cache.APIKeysKey()
	if cached, ok := g.cache.Get(key); ok {
		return cached.(APIKeyList), nil
	}

	body, err := g.get(ctx, "fetch api keys", g.endpoints.APIKeys(), headers)
	if err != nil {
		return APIKeyList{}, err
	}

	keys, pagination, err := decodeList[APIKey](body, "api_keys", "apiKeys")
	if err != nil {
		return APIKeyList{}, fmt.Errorf("decoding api keys response: %w", err)
	}

	list := APIKeyList{Data: keys, Pagination: pagination}
	if len(keys) > 0 {
		g.cache.Set(key, list, cache.APIKeysTTL)
	}

	return list, nil
}
