package vault

import (
	"sort"
	"strings"
	"time"
)

// Cookie is one browser cookie as captured at login.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // epoch seconds, <= 0 for browser-session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// ExpiresAt converts Expires to a [time.Time], zero for browser-session cookies.
func (c Cookie) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Header renders the cookie as a "name=value" Cookie header fragment.
func (c Cookie) Header() string {
	return c.Name + "=" + c.Value
}

// Session is the ordered cookie set proving we are logged in upstream.
type Session struct {
	Cookies []Cookie `json:"cookies"`
}

// Empty reports whether the session holds no cookies.
func (s Session) Empty() bool {
	return len(s.Cookies) == 0
}

// CookieHeader joins every cookie into a single Cookie header value.
func (s Session) CookieHeader() string {
	parts := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		parts = append(parts, c.Header())
	}
	return strings.Join(parts, "; ")
}

// ByExpiryDesc returns a copy of the cookies sorted newest expiry first; ties keep their stored order.
func (s Session) ByExpiryDesc() []Cookie {
	sorted := make([]Cookie, len(s.Cookies))
	copy(sorted, s.Cookies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Expires > sorted[j].Expires
	})
	return sorted
}

// record is the on-disk document.
type record struct {
	Cookies []Cookie `json:"cookies"`
	SavedAt int64    `json:"savedAt"` // epoch millis
}
