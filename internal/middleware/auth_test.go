package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		path    string
		hasCred bool
		want    string
	}{
		{"/", false, "/login"},
		{"/user/alice", false, "/login"},
		{"/settings", false, "/login"},
		{"/logout", false, "/login"},
		{"/login", false, ""},
		{"/login", true, "/"},
		{"/login/extra", true, "/"},
		{"/login/extra", false, "/login"},
		{"/loginfoo", false, "/login"},
		{"/user/alice", true, ""},
		{"/", true, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decide(tt.path, tt.hasCred), "path=%s cred=%v", tt.path, tt.hasCred)
	}
}

func newGatedEcho(hits *int) *echo.Echo {
	e := echo.New()
	e.Use(Credentials(credential.CookieOptions{}))
	g := e.Group("", AuthGate())
	handler := func(c echo.Context) error {
		*hits++
		return c.String(http.StatusOK, "ok")
	}
	g.GET("/", handler)
	g.GET("/login", handler)
	g.GET("/user/:username", handler)
	e.GET("/register", handler)
	return e
}

func TestAuthGateRedirectsBeforeHandler(t *testing.T) {
	hits := 0
	e := newGatedEcho(&hits)

	req := httptest.NewRequest(http.MethodGet, "/user/alice", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, hits)
}

func TestAuthGateLoginWithCredential(t *testing.T) {
	hits := 0
	e := newGatedEcho(&hits)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: credential.DefaultCookieName, Value: "token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 0, hits)
}

func TestAuthGatePassThrough(t *testing.T) {
	hits := 0
	e := newGatedEcho(&hits)

	req := httptest.NewRequest(http.MethodGet, "/user/alice", nil)
	req.AddCookie(&http.Cookie{Name: credential.DefaultCookieName, Value: "token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 3, hits)
}

func TestCredentialsFromWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	s := CredentialsFrom(c)
	_, ok := s.Get()
	assert.False(t, ok)
	assert.Same(t, s, CredentialsFrom(c))
}

func TestMetricsAndRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logger.NewWithWriter(&buf)), Metrics())
	e.GET("/boom", func(c echo.Context) error { return errors.New("kaboom") })
	e.GET("/fine", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fine?token=eyJabc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"module":"http"`)
	assert.Contains(t, out, "GET /boom")
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, "kaboom")
	assert.False(t, strings.Contains(out, "eyJabc"))
}
