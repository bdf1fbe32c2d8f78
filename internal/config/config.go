// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP   HTTPServer `yaml:"http"`
	Portal Portal     `yaml:"portal"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Portal configures the connection to the Pocket ID instance the portal
// fronts, plus the cookie contract shared with the browser.
type Portal struct {
	// IssuerURL is the base URL of the identity provider; all upstream
	// API endpoints are derived from it.
	IssuerURL string `yaml:"issuerURL"`

	// AppURL is the externally visible base URL of the portal itself,
	// used to build the OAuth2 redirect URI.
	AppURL string `yaml:"appURL"`

	ClientID     string              `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`

	// APIKey authenticates upstream calls with the X-API-Key header.
	// When set it takes precedence over the user's access token.
	APIKey commoncfg.SourceRef `yaml:"apiKey"`

	Scopes string `yaml:"scopes" default:"openid profile email groups"`

	// PublicRoutes are path prefixes exempt from session validation.
	PublicRoutes []string `yaml:"publicRoutes"`

	// DefaultTokenTTL bounds the auth cookies when the token response
	// carries no usable expires_in.
	DefaultTokenTTL time.Duration `yaml:"defaultTokenTTL" default:"1h"`

	IdentityCookie CookieTemplate `yaml:"identityCookie"`
	ProfileCookie  CookieTemplate `yaml:"profileCookie"`
	TokenCookie    CookieTemplate `yaml:"tokenCookie"`
}
