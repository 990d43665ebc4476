package credential

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestCookieStore_ReadsIncomingCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "tok"})
	w := httptest.NewRecorder()

	s := NewCookieStore(r, w, CookieOptions{})
	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "tok", tok)
	require.Empty(t, w.Header().Values("Set-Cookie"))
}

func TestCookieStore_EmptyCookieIsAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: ""})

	s := NewCookieStore(r, httptest.NewRecorder(), CookieOptions{})
	_, ok := s.Get()
	require.False(t, ok)
}

func TestCookieStore_SetUsesTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, "alice", exp)

	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	s := NewCookieStore(r, w, CookieOptions{Secure: true})

	s.Set(token)

	got, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, token, got)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, DefaultCookieName, cookies[0].Name)
	require.Equal(t, token, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, exp.UTC(), cookies[0].Expires.UTC())
}

func TestCookieStore_DeleteReplacesPendingSet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	w.Header().Add("Set-Cookie", "other=1")
	s := NewCookieStore(r, w, CookieOptions{Name: "creds"})

	s.Set("opaque")
	s.Delete()

	_, ok := s.Get()
	require.False(t, ok)

	values := w.Header().Values("Set-Cookie")
	require.Len(t, values, 2)
	require.Equal(t, "other=1", values[0])

	cookies := w.Result().Cookies()
	var creds *http.Cookie
	for _, c := range cookies {
		if c.Name == "creds" {
			creds = c
		}
	}
	require.NotNil(t, creds)
	require.Equal(t, "", creds.Value)
	require.Equal(t, -1, creds.MaxAge)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	_, ok := s.Get()
	require.False(t, ok)

	s.Set("abc")
	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	s.Delete()
	_, ok = s.Get()
	require.False(t, ok)
	require.Equal(t, 1, s.Deletes())
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	c, err := ParseClaims(signedToken(t, "bob", exp))
	require.NoError(t, err)
	require.Equal(t, "bob", c.Subject)
	require.True(t, exp.Equal(c.ExpiresAt))

	_, err = ParseClaims("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformedToken)
	require.Equal(t, "", Subject("not-a-jwt"))
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, Fingerprint("a"), Fingerprint("a"))
	require.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
	require.Len(t, Fingerprint("a"), 64)
}
