package config

import "net/http"

type CookieSameSite string

const (
	CookieSameSiteNone   CookieSameSite = "none"
	CookieSameSiteLax    CookieSameSite = "lax"
	CookieSameSiteStrict CookieSameSite = "strict"
)

// CookieTemplate describes a cookie the portal issues; the value is
// filled in per response.
type CookieTemplate struct {
	Name     string         `yaml:"name"`
	MaxAge   int            `yaml:"maxAge"`
	Path     string         `yaml:"path" default:"/"`
	Domain   string         `yaml:"domain"`
	Secure   bool           `yaml:"secure" default:"true"`
	HTTPOnly bool           `yaml:"httpOnly"`
	SameSite CookieSameSite `yaml:"sameSite" default:"lax"`
}

func (ct *CookieTemplate) ToCookie(value string) *http.Cookie {
	var sameSite http.SameSite
	switch ct.SameSite {
	case CookieSameSiteNone:
		sameSite = http.SameSiteNoneMode
	case CookieSameSiteLax:
		sameSite = http.SameSiteLaxMode
	case CookieSameSiteStrict:
		sameSite = http.SameSiteStrictMode
	}

	return &http.Cookie{
		Name:     ct.Name,
		Value:    value,
		MaxAge:   ct.MaxAge,
		Path:     ct.Path,
		Domain:   ct.Domain,
		Secure:   ct.Secure,
		HttpOnly: ct.HTTPOnly,
		SameSite: sameSite,
	}
}

// Expired returns a deletion cookie for the template, used on logout.
func (ct *CookieTemplate) Expired() *http.Cookie {
	c := ct.ToCookie("")
	c.MaxAge = -1

	return c
}
