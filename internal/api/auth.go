package api

import (
	"context"
	"io"
	"net/http"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	About    string `json:"about"`
}

// ProfilePatch is a partial update of the caller's own account. Nil fields
// are left unchanged.
type ProfilePatch struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	About    *string `json:"about,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Username == nil && p.Password == nil && p.Avatar == nil && p.About == nil
}

// Login exchanges a username and password for an access token. A 401 is
// KindInvalidCredentials, not KindAuth: there is no credential to reject yet.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var token string
	err := c.send(ctx, "", call{
		endpoint: "auth.login",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     loginRequest{Username: username, Password: password},
		expect:   []int{http.StatusOK},
		classify: func(status int, message string) Kind {
			if status == http.StatusUnauthorized {
				return KindInvalidCredentials
			}
			return KindServer
		},
	}, func(r io.Reader) error {
		var err error
		token, err = decodeToken(r)
		return err
	})
	return token, err
}

// Register creates an account. A 403 means the username is taken. The created
// user is returned when the 201 body decodes; a 201 is a success either way.
func (c *Client) Register(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := c.send(ctx, "", call{
		endpoint: "auth.register",
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     registerRequest{Username: username, Password: password},
		expect:   []int{http.StatusCreated},
		classify: func(status int, message string) Kind {
			if status == http.StatusForbidden {
				return KindConflict
			}
			return KindServer
		},
	}, func(r io.Reader) error {
		if u, err := decodeUser(r); err == nil {
			user = u
		}
		return nil
	})
	return user, err
}

// GetMe resolves the identity behind token. It takes the token explicitly and
// never touches a credential store.
func (c *Client) GetMe(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, &Error{Kind: KindNoCredential, Endpoint: "auth.me"}
	}
	var user models.User
	err := c.send(ctx, token, call{
		endpoint: "auth.me",
		method:   http.MethodGet,
		path:     "/auth/me",
		expect:   []int{http.StatusOK},
	}, func(r io.Reader) error {
		var err error
		user, err = decodeUser(r)
		return err
	})
	return user, err
}

// UpdateProfile patches the caller's account. 403 is a conflict; 400 means
// the session must be re-established and is reported as KindAuth.
func (c *Client) UpdateProfile(ctx context.Context, creds credential.Store, patch ProfilePatch) error {
	return c.sendAuthed(ctx, creds, call{
		endpoint: "auth.update",
		method:   http.MethodPatch,
		path:     "/auth",
		body:     patch,
		expect:   []int{http.StatusOK},
		classify: func(status int, message string) Kind {
			switch status {
			case http.StatusForbidden:
				return KindConflict
			case http.StatusBadRequest, http.StatusUnauthorized:
				return KindAuth
			default:
				return classify(status, message)
			}
		},
	}, nil)
}
