package browser

import (
	"net/url"
	"strings"

	"github.com/desertthunder/bookx/internal/vault"
	"github.com/go-rod/rod/lib/proto"
)

// FilterCookies keeps cookies set for the apex domain or the auth host and converts them to a session.
func FilterCookies(cookies []*proto.NetworkCookie, apexHost, authHost string) vault.Session {
	var s vault.Session
	for _, c := range cookies {
		if c == nil {
			continue
		}
		domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if domain != apexHost && domain != authHost {
			continue
		}
		s.Cookies = append(s.Cookies, vault.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return s
}

// IsLanding reports whether raw is the authenticated landing page: the apex host, outside the login path.
func IsLanding(raw, apexHost, loginPath string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != apexHost {
		return false
	}
	return loginPath == "" || !strings.HasPrefix(u.Path, loginPath)
}
