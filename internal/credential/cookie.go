package credential

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the cookie that carries the access token.
const DefaultCookieName = "access-token"

// CookieOptions configure the credential cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return DefaultCookieName
	}
	return o.Name
}

// CookieStore is a Store bound to one request/response pair. It reads the
// incoming cookie once and records changes as Set-Cookie headers; later Get
// calls in the same request observe those changes.
type CookieStore struct {
	opts    CookieOptions
	w       http.ResponseWriter
	token   string
	present bool
}

// NewCookieStore binds a store to r and w.
func NewCookieStore(r *http.Request, w http.ResponseWriter, opts CookieOptions) *CookieStore {
	s := &CookieStore{opts: opts, w: w}
	if c, err := r.Cookie(opts.name()); err == nil && c.Value != "" {
		s.token = c.Value
		s.present = true
	}
	return s
}

func (s *CookieStore) Get() (string, bool) {
	return s.token, s.present
}

func (s *CookieStore) Set(token string) {
	if token == "" {
		s.Delete()
		return
	}
	s.token = token
	s.present = true

	c := s.baseCookie()
	c.Value = token
	if claims, err := ParseClaims(token); err == nil && !claims.ExpiresAt.IsZero() {
		c.Expires = claims.ExpiresAt
	}
	s.write(c)
}

func (s *CookieStore) Delete() {
	s.token = ""
	s.present = false

	c := s.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	s.write(c)
}

func (s *CookieStore) baseCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.name(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// write replaces any Set-Cookie header already queued for this cookie so the
// response carries only the final state.
func (s *CookieStore) write(c *http.Cookie) {
	prefix := c.Name + "="
	h := s.w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(s.w, c)
}
