// Package upstream is the typed gateway to the Pocket ID REST API. All
// fetchers are read-through against the shared TTL cache and tolerate
// the provider's loosely-typed response shapes.
package upstream

import "encoding/json"

type Group struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName,omitempty"`
}

// DisplayName prefers the human-friendly group name.
func (g Group) DisplayName() string {
	if g.FriendlyName != "" {
		return g.FriendlyName
	}

	return g.Name
}

type OIDCClient struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
	HasLogo  bool   `json:"hasLogo"`
}

// ClientDetails is the per-client document, which unlike the list entry
// carries the allow-list of user groups. An empty list means the client
// is unrestricted.
type ClientDetails struct {
	OIDCClient

	CallbackURLs      []string `json:"callbackURLs,omitempty"`
	AllowedUserGroups []Group  `json:"allowedUserGroups,omitempty"`
}

type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	IsAdmin    bool     `json:"isAdmin,omitempty"`
	Locale     string   `json:"locale,omitempty"`
	UserGroups []Group  `json:"userGroups,omitempty"`
	LdapID     string   `json:"ldapId,omitempty"`
	Claims     []string `json:"customClaims,omitempty"`
}

type Passkey struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  string `json:"createdAt,omitempty"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

type APIKey struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Prefix      string   `json:"prefix,omitempty"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	LastUsedAt  string   `json:"lastUsedAt,omitempty"`
	ExpiresAt   string   `json:"expiresAt,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// APIKeyList keeps the provider's pagination block opaque; the portal
// only passes it through to the page.
type APIKeyList struct {
	Data       []APIKey        `json:"data"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
}
