package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/monitoring"
)

const credentialKey = "credential"

// Credentials binds a cookie-backed credential store to every request.
func Credentials(opts credential.CookieOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(credentialKey, credential.NewCookieStore(c.Request(), c.Response(), opts))
			return next(c)
		}
	}
}

// CredentialsFrom returns the store bound by Credentials. Requests that skipped
// the middleware get an empty in-memory store.
func CredentialsFrom(c echo.Context) credential.Store {
	if s, ok := c.Get(credentialKey).(credential.Store); ok {
		return s
	}
	s := credential.NewMemoryStore("")
	c.Set(credentialKey, s)
	return s
}

// Decide is the gate rule: without a credential everything but the login page
// goes to /login, and with one the login page goes to the root. It returns
// the redirect target, or "" to pass through.
func Decide(path string, hasCredential bool) string {
	switch {
	case path != "/login" && !hasCredential:
		return "/login"
	case strings.HasPrefix(path, "/login") && hasCredential:
		return "/"
	default:
		return ""
	}
}

// AuthGate redirects before any handler runs. It only checks that a
// credential is present, not that it is valid.
func AuthGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, ok := CredentialsFrom(c).Get()
			if target := Decide(c.Request().URL.Path, ok); target != "" {
				monitoring.GateRedirectsTotal.WithLabelValues(target).Inc()
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}
