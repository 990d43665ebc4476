package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmerr/twotty/internal/apitest"
	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, policy ClearPolicy) *Client {
	t.Helper()
	return New(Options{
		BaseURL: baseURL,
		Policy:  policy,
		Logger:  logger.NewWithWriter(&bytes.Buffer{}),
	})
}

func TestMissingTokenShortCircuits(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore("")

	_, err := c.GetUser(context.Background(), creds, "alice")
	require.Error(t, err)
	assert.Equal(t, KindNoCredential, KindOf(err))
	assert.True(t, errors.Is(err, ErrNoCredential))

	_, err = c.GetMe(context.Background(), "")
	assert.Equal(t, KindNoCredential, KindOf(err))

	assert.Empty(t, backend.Requests())
	assert.Equal(t, 0, creds.Deletes())
}

func TestBearerTokenReadFreshPerCall(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, ClearOnAnyFailure)
	creds := credential.NewMemoryStore("first")
	id := "8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11"

	n, err := c.GetFollowers(context.Background(), creds, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	creds.Set("second")
	_, err = c.GetFollowings(context.Background(), creds, id)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer first", "Bearer second"}, seen)
}

func TestLogin(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)

	token, err := c.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", credential.Subject(token))

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, KindInvalidCredentials, KindOf(err))
	assert.False(t, IsAuth(err))
}

func TestLoginServerFailure(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.Fail(http.MethodPost, "/auth/login", http.StatusInternalServerError)
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)

	_, err := c.Login(context.Background(), "alice", "secret1")
	assert.Equal(t, KindServer, KindOf(err))
}

func TestRegister(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)

	bob, err := c.Register(context.Background(), "bobby", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "bobby", bob.Username)
	assert.NotEmpty(t, bob.ID)

	_, err = c.Register(context.Background(), "alice", "secret3")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = c.Register(context.Background(), "ab", "secret3")
	assert.Equal(t, KindServer, KindOf(err))
}

func TestGetMe(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	alice := backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)

	me, err := c.GetMe(context.Background(), backend.Token("alice"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, me.ID)
	assert.Equal(t, "alice", me.Username)

	_, err = c.GetMe(context.Background(), "garbage")
	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, IsAuth(err))
}

func TestGetUserIsIdempotent(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))

	first, err := c.GetUser(context.Background(), creds, "alice")
	require.NoError(t, err)
	second, err := c.GetUser(context.Background(), creds, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, backend.Requests(), 2)
}

func TestClearingPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      ClearPolicy
		wantDeletes int
	}{
		{"any failure clears", ClearOnAnyFailure, 1},
		{"only auth failures clear", ClearOnAuthFailure, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := apitest.New()
			defer backend.Close()
			backend.AddUser("alice", "secret1")
			c := newTestClient(t, backend.URL(), tt.policy)
			creds := credential.NewMemoryStore(backend.Token("alice"))

			_, err := c.GetUserPosts(context.Background(), creds, "nobody")
			require.Error(t, err)
			assert.Equal(t, KindNotFound, KindOf(err))
			assert.Equal(t, tt.wantDeletes, creds.Deletes())
		})
	}
}

func TestNonClearingEndpointKeepsCredential(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))

	_, err := c.GetFollowers(context.Background(), creds, "8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, 0, creds.Deletes())
}

func TestInvalidTokenAlwaysClears(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	alice := backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAuthFailure)

	var cleared []string
	c.onCleared = func(ctx context.Context, token string) { cleared = append(cleared, token) }

	creds := credential.NewMemoryStore("not-a-jwt")
	_, err := c.GetFollowers(context.Background(), creds, alice.ID)
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 1, creds.Deletes())
	assert.Equal(t, []string{"not-a-jwt"}, cleared)

	_, ok := creds.Get()
	assert.False(t, ok)
}

func TestCreatePostLength(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	alice := backend.AddUser("alice", "secret1")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))

	post, err := c.CreatePost(context.Background(), creds, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Text)
	assert.Equal(t, alice.ID, post.AuthorID)
	assert.False(t, post.CreatedAt.IsZero())

	_, err = c.CreatePost(context.Background(), creds, strings.Repeat("a", 300))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, 0, creds.Deletes())
	assert.Equal(t, []string{"hello"}, backend.PostTexts("alice"))
}

func TestEditAndDeletePost(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	backend.AddUser("bobby", "secret2")
	id := backend.AddPost("alice", "first")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))

	ok, err := c.EditPost(context.Background(), creds, id, "changed")
	require.NoError(t, err)
	assert.True(t, ok)

	posts, err := c.GetUserPosts(context.Background(), creds, "alice")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "changed", posts[0].Text)
	assert.True(t, posts[0].Edited)

	other := credential.NewMemoryStore(backend.Token("bobby"))
	err = c.DeletePost(context.Background(), other, id)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, other.Deletes())

	require.NoError(t, c.DeletePost(context.Background(), creds, id))
	assert.Empty(t, backend.PostTexts("alice"))
}

func TestInvalidIDRejectedLocally(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore("token")

	_, err := c.Follow(context.Background(), creds, "../auth/me")
	assert.Equal(t, KindValidation, KindOf(err))
	err = c.DeletePost(context.Background(), creds, "1")
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Empty(t, backend.Requests())
	assert.Equal(t, 0, creds.Deletes())
}

func TestFollowLifecycle(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	bob := backend.AddUser("bobby", "secret2")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))
	ctx := context.Background()

	followed, err := c.GetIsFollowed(ctx, creds, bob.ID)
	require.NoError(t, err)
	assert.False(t, followed)

	ok, err := c.Follow(ctx, creds, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.GetFollowers(ctx, creds, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.Follow(ctx, creds, bob.ID)
	assert.Equal(t, KindValidation, KindOf(err))

	ok, err = c.Unfollow(ctx, creds, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, backend.Followers(bob.ID))
}

func TestUpdateProfile(t *testing.T) {
	backend := apitest.New()
	defer backend.Close()
	backend.AddUser("alice", "secret1")
	backend.AddUser("bobby", "secret2")
	c := newTestClient(t, backend.URL(), ClearOnAnyFailure)
	creds := credential.NewMemoryStore(backend.Token("alice"))
	ctx := context.Background()

	about := "hi there"
	require.NoError(t, c.UpdateProfile(ctx, creds, ProfilePatch{About: &about}))
	me, err := c.GetMe(ctx, backend.Token("alice"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", me.About)

	taken := "bobby"
	err = c.UpdateProfile(ctx, creds, ProfilePatch{Username: &taken})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 0, creds.Deletes())

	assert.True(t, ProfilePatch{}.Empty())
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		run  func(c *Client, creds credential.Store) error
	}{
		{"user without id", `{"username":"alice"}`, func(c *Client, creds credential.Store) error {
			_, err := c.GetUser(context.Background(), creds, "alice")
			return err
		}},
		{"user with non-uuid id", `{"id":"7","username":"alice"}`, func(c *Client, creds credential.Store) error {
			_, err := c.GetUser(context.Background(), creds, "alice")
			return err
		}},
		{"post list with bad timestamp", `[{"id":"8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11","text":"x","author_id":"8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11","created_at":"yesterday"}]`, func(c *Client, creds credential.Store) error {
			_, err := c.GetUserPosts(context.Background(), creds, "alice")
			return err
		}},
		{"count missing", `{}`, func(c *Client, creds credential.Store) error {
			_, err := c.GetFollowers(context.Background(), creds, "8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11")
			return err
		}},
		{"negative count", `{"count":-1}`, func(c *Client, creds credential.Store) error {
			_, err := c.GetFollowings(context.Background(), creds, "8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11")
			return err
		}},
		{"followed missing", `{"followed":true}`, func(c *Client, creds credential.Store) error {
			_, err := c.GetIsFollowed(context.Background(), creds, "8c0b7e4e-4c8e-4a51-9a4f-0f3b1cbb2f11")
			return err
		}},
		{"not json", `<html>`, func(c *Client, creds credential.Store) error {
			_, err := c.GetUser(context.Background(), creds, "alice")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c := newTestClient(t, srv.URL, ClearOnAuthFailure)

			err := tt.run(c, credential.NewMemoryStore("token"))
			require.Error(t, err)
			assert.Equal(t, KindDecode, KindOf(err))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, ClearOnAnyFailure)
	creds := credential.NewMemoryStore("token")

	_, err := c.GetUser(context.Background(), creds, "alice")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 1, creds.Deletes())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    Kind
	}{
		{401, "", KindAuth},
		{400, "Invalid token", KindAuth},
		{400, "bad text", KindValidation},
		{422, "", KindValidation},
		{403, "", KindConflict},
		{404, "", KindNotFound},
		{500, "", KindServer},
		{502, "", KindServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.status, tt.message), "status %d %q", tt.status, tt.message)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindServer, KindOf(errors.New("boom")))
	assert.Equal(t, ClearOnAuthFailure, ParseClearPolicy("auth"))
	assert.Equal(t, ClearOnAnyFailure, ParseClearPolicy("any"))
	assert.Equal(t, ClearOnAnyFailure, ParseClearPolicy(""))
}
