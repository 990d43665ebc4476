// Package apitest runs an in-memory stand-in for the Twotty REST backend.
// It speaks the same routes and payload shapes and lets tests inject
// failures per route.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

var secret = []byte("test-secret")

type user struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
	About    string  `json:"about"`
	password string
}

type post struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
	Edited    bool   `json:"edited"`
}

// Backend is a fake backend served by an httptest.Server.
type Backend struct {
	mu       sync.Mutex
	users    map[string]*user // by id
	posts    []*post
	follows  map[string]map[string]bool // follower id -> followee ids
	failures map[string]int
	requests []string
	srv      *httptest.Server
}

// New starts a fake backend. Callers must Close it.
func New() *Backend {
	b := &Backend{
		users:    make(map[string]*user),
		follows:  make(map[string]map[string]bool),
		failures: make(map[string]int),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *Backend) URL() string { return b.srv.URL }

func (b *Backend) Close() { b.srv.Close() }

// UserInfo is the public view of a seeded account.
type UserInfo struct {
	ID       string
	Username string
}

// AddUser seeds an account.
func (b *Backend) AddUser(username, password string) UserInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &user{ID: uuid.NewString(), Username: username, password: password}
	b.users[u.ID] = u
	return UserInfo{ID: u.ID, Username: u.Username}
}

// AddPost seeds a post by username and returns its id.
func (b *Backend) AddPost(username, text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.byUsername(username)
	if u == nil {
		panic("apitest: unknown user " + username)
	}
	p := &post{
		ID:        uuid.NewString(),
		Text:      text,
		AuthorID:  u.ID,
		CreatedAt: time.Now().UTC().Format(timestampLayout),
	}
	b.posts = append(b.posts, p)
	return p.ID
}

// SetFollow seeds a follow relation.
func (b *Backend) SetFollow(followerID, followeeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.follow(followerID, followeeID)
}

// Token issues a valid access token for username.
func (b *Backend) Token(username string) string {
	return Token(username, time.Now().Add(time.Hour))
}

// Token signs an access token with the fake backend key.
func Token(username string, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString(secret)
	if err != nil {
		panic(err)
	}
	return s
}

// Fail makes every request matching method and exact path answer status.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

// Requests returns "METHOD path" for every request received so far.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// Followers returns the follower count of id.
func (b *Backend) Followers(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.followersOf(id)
}

// PostTexts returns the texts of username's posts in creation order.
func (b *Backend) PostTexts(username string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.byUsername(username)
	var out []string
	for _, p := range b.posts {
		if u != nil && p.AuthorID == u.ID {
			out = append(out, p.Text)
		}
	}
	return out
}

func (b *Backend) byUsername(username string) *user {
	for _, u := range b.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (b *Backend) follow(from, to string) {
	if b.follows[from] == nil {
		b.follows[from] = make(map[string]bool)
	}
	b.follows[from][to] = true
}

func (b *Backend) followersOf(id string) int {
	n := 0
	for _, set := range b.follows {
		if set[id] {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status_code": status, "message": message})
}

// caller resolves the bearer token the way the backend middleware does.
func (b *Backend) caller(r *http.Request) (*user, int, string) {
	h := r.Header.Get("Authorization")
	parts := strings.Fields(h)
	if len(parts) != 2 {
		return nil, http.StatusBadRequest, "Invalid token"
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid token"
	}
	u := b.byUsername(claims.Subject)
	if u == nil {
		return nil, http.StatusUnauthorized, "Invalid token"
	}
	return u, 0, ""
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	b.requests = append(b.requests, key)
	if status, ok := b.failures[key]; ok {
		writeError(w, status, http.StatusText(status))
		return
	}

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/auth/login":
		b.login(w, r)
		return
	case r.Method == http.MethodPost && path == "/auth/register":
		b.register(w, r)
		return
	}

	me, status, msg := b.caller(r)
	if me == nil {
		writeError(w, status, msg)
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "/auth/me":
		writeJSON(w, http.StatusOK, me)
	case r.Method == http.MethodPatch && path == "/auth":
		b.updateMe(w, r, me)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/users/@"):
		u := b.byUsername(strings.TrimPrefix(path, "/users/@"))
		if u == nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/posts/@"):
		u := b.byUsername(strings.TrimPrefix(path, "/posts/@"))
		if u == nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		out := []*post{}
		for _, p := range b.posts {
			if p.AuthorID == u.ID {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case r.Method == http.MethodPost && path == "/posts":
		b.createPost(w, r, me)
	case strings.HasPrefix(path, "/posts/"):
		b.postByID(w, r, me, strings.TrimPrefix(path, "/posts/"))
	case strings.HasPrefix(path, "/users/"):
		b.relation(w, r, me, strings.Split(strings.TrimPrefix(path, "/users/"), "/"))
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	u := b.byUsername(body.Username)
	if u == nil || u.password != body.Password || body.Password == "" {
		writeError(w, http.StatusUnauthorized, "Wrong credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": Token(u.Username, time.Now().Add(time.Hour)),
		"token_type":   "Bearer",
	})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password, About string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(body.Username) < 4 {
		writeError(w, http.StatusBadRequest, "Username must be at least 4 characters long")
		return
	}
	if b.byUsername(body.Username) != nil {
		writeError(w, http.StatusForbidden, "This username is already occupied!")
		return
	}
	u := &user{ID: uuid.NewString(), Username: body.Username, About: body.About, password: body.Password}
	b.users[u.ID] = u
	writeJSON(w, http.StatusCreated, u)
}

func (b *Backend) updateMe(w http.ResponseWriter, r *http.Request, me *user) {
	var body struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
		Avatar   *string `json:"avatar"`
		About    *string `json:"about"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Username != nil && *body.Username != me.Username {
		if b.byUsername(*body.Username) != nil {
			writeError(w, http.StatusForbidden, "This username is already occupied!")
			return
		}
		me.Username = *body.Username
	}
	if body.Password != nil {
		me.password = *body.Password
	}
	if body.Avatar != nil {
		me.Avatar = body.Avatar
	}
	if body.About != nil {
		me.About = *body.About
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (b *Backend) createPost(w http.ResponseWriter, r *http.Request, me *user) {
	var body struct{ Text string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if n := len([]rune(body.Text)); n < 1 || n > 256 {
		writeError(w, http.StatusBadRequest, "Validation errors: [text: Text length must be between 1 and 256 characters")
		return
	}
	p := &post{
		ID:        uuid.NewString(),
		Text:      body.Text,
		AuthorID:  me.ID,
		CreatedAt: time.Now().UTC().Format(timestampLayout),
	}
	b.posts = append(b.posts, p)
	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) postByID(w http.ResponseWriter, r *http.Request, me *user, id string) {
	idx := -1
	for i, p := range b.posts {
		if p.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	p := b.posts[idx]
	if p.AuthorID != me.ID {
		writeError(w, http.StatusForbidden, "You don't have permission to do this")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var body struct{ Text string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if n := len([]rune(body.Text)); n < 1 || n > 256 {
			writeError(w, http.StatusBadRequest, "Text too long (maximum 256 symbols)")
			return
		}
		p.Text = body.Text
		p.Edited = true
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case http.MethodDelete:
		b.posts = append(b.posts[:idx], b.posts[idx+1:]...)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func (b *Backend) relation(w http.ResponseWriter, r *http.Request, me *user, parts []string) {
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	target, ok := b.users[parts[0]]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	switch {
	case r.Method == http.MethodPost && parts[1] == "follow":
		if b.follows[me.ID][target.ID] {
			writeError(w, http.StatusBadRequest, "You're already following this user")
			return
		}
		b.follow(me.ID, target.ID)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case r.Method == http.MethodPost && parts[1] == "unfollow":
		if !b.follows[me.ID][target.ID] {
			writeError(w, http.StatusBadRequest, "You're not following this user")
			return
		}
		delete(b.follows[me.ID], target.ID)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case r.Method == http.MethodGet && parts[1] == "followers":
		writeJSON(w, http.StatusOK, map[string]int{"count": b.followersOf(target.ID)})
	case r.Method == http.MethodGet && parts[1] == "followings":
		writeJSON(w, http.StatusOK, map[string]int{"count": len(b.follows[target.ID])})
	case r.Method == http.MethodGet && parts[1] == "followed":
		writeJSON(w, http.StatusOK, map[string]bool{"isFollowed": b.follows[me.ID][target.ID]})
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}
