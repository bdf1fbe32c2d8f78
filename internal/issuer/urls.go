// Package issuer derives every Pocket ID endpoint the portal consumes
// from a single configured issuer URL.
package issuer

import (
	"net/url"
	"strconv"
	"strings"
)

type Endpoints struct {
	base string
}

func NewEndpoints(issuerURL string) Endpoints {
	return Endpoints{base: strings.TrimSuffix(issuerURL, "/")}
}

func (e Endpoints) Issuer() string { return e.base }

func (e Endpoints) Token() string { return e.base + "/api/oidc/token" }

func (e Endpoints) Userinfo() string { return e.base + "/api/oidc/userinfo" }

func (e Endpoints) Authorize() string { return e.base + "/authorize" }

func (e Endpoints) Clients() string { return e.base + "/api/oidc/clients" }

func (e Endpoints) Client(clientID string) string {
	return e.base + "/api/oidc/clients/" + url.PathEscape(clientID)
}

func (e Endpoints) ClientLogo(clientID string) string {
	return e.Client(clientID) + "/logo"
}

func (e Endpoints) AppLogo(lightMode bool) string {
	return e.base + "/api/application-configuration/logo?light=" + strconv.FormatBool(lightMode)
}

func (e Endpoints) UserGroups(userID string) string {
	return e.base + "/api/users/" + url.PathEscape(userID) + "/groups"
}

func (e Endpoints) CurrentUser() string { return e.base + "/api/users/me" }

func (e Endpoints) Passkeys() string { return e.base + "/api/webauthn/credentials" }

func (e Endpoints) APIKeys() string { return e.base + "/api/api-keys" }

func (e Endpoints) AccountManagement() string { return e.base + "/settings/account" }

// EndSession builds the provider's logout URL with the post-logout
// redirect and, when available, the id_token_hint.
func (e Endpoints) EndSession(idToken, redirectURI string) string {
	u := e.base + "/api/oidc/end-session?post_logout_redirect_uri=" + url.QueryEscape(redirectURI)
	if idToken != "" {
		u += "&id_token_hint=" + url.QueryEscape(idToken)
	}

	return u
}
