package session

import "time"

// Profile holds the user claims returned by the userinfo endpoint, or
// decoded from the ID token when userinfo is unavailable.
type Profile struct {
	Subject           string `json:"sub"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Picture           string `json:"picture,omitempty"`
	Locale            string `json:"locale,omitempty"`
}

// TokenResponse is the JSON body of the provider's token endpoint.
// ExpiresAt is the portal's own absolute form of ExpiresIn so a session
// survives the cookie round trip unchanged.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Session is the authentication state reconstructed from cookies for
// one request. There is no server-side copy.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
	Profile      *Profile
}

// IsAuthenticated reports whether the session carries both a user
// profile and a non-expired access token.
func (s Session) IsAuthenticated() bool {
	if s.Profile == nil || s.AccessToken == "" {
		return false
	}

	return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
}

// IsPartial reports whether only the identity is known: the browser
// told us who last logged in, but there is no valid token material.
func (s Session) IsPartial() bool {
	return s.UserID != "" && !s.IsAuthenticated()
}
