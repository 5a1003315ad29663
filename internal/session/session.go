package session

import (
	"strings"
	"time"
)

// Cookie is a single browser cookie captured during login. The shape mirrors
// what the automation engine hands back so a persisted session can be replayed
// against the API without the browser.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Session is an authenticated cookie set plus the user agent it was minted
// with, treated as a single capability token for the job-search API.
type Session struct {
	Cookies   []Cookie  `json:"cookies"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Complete reports whether all three parts of the session are present.
// A partially written record is treated the same as an absent one.
func (s *Session) Complete() bool {
	return s != nil && len(s.Cookies) > 0 && strings.TrimSpace(s.UserAgent) != "" && !s.CreatedAt.IsZero()
}

// Age returns how long ago the session was created.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// CookieHeader renders the cookie set as a single Cookie request header value.
func (s *Session) CookieHeader() string {
	pairs := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if c.Name == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
