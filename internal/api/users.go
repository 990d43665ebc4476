package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
)

// validID rejects identifiers that cannot be backend UUIDs before any network
// round trip.
func validID(endpoint, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &Error{Kind: KindValidation, Endpoint: endpoint, Message: fmt.Sprintf("invalid id %q", id), Err: err}
	}
	return nil
}

// GetUser fetches a profile by username. Failures clear the credential
// according to the client's policy.
func (c *Client) GetUser(ctx context.Context, creds credential.Store, username string) (models.User, error) {
	var user models.User
	err := c.sendAuthed(ctx, creds, call{
		endpoint: "users.get",
		method:   http.MethodGet,
		path:     "/users/@" + url.PathEscape(username),
		expect:   []int{http.StatusOK},
		clears:   true,
	}, func(r io.Reader) error {
		var err error
		user, err = decodeUser(r)
		return err
	})
	return user, err
}

func (c *Client) Follow(ctx context.Context, creds credential.Store, id string) (bool, error) {
	return c.relation(ctx, creds, "users.follow", id, "follow")
}

func (c *Client) Unfollow(ctx context.Context, creds credential.Store, id string) (bool, error) {
	return c.relation(ctx, creds, "users.unfollow", id, "unfollow")
}

func (c *Client) relation(ctx context.Context, creds credential.Store, endpoint, id, action string) (bool, error) {
	if err := validID(endpoint, id); err != nil {
		return false, err
	}
	var ok bool
	err := c.sendAuthed(ctx, creds, call{
		endpoint: endpoint,
		method:   http.MethodPost,
		path:     "/users/" + id + "/" + action,
		expect:   []int{http.StatusOK, http.StatusCreated},
	}, func(r io.Reader) error {
		var err error
		ok, err = decodeOK(r)
		return err
	})
	return ok, err
}

func (c *Client) GetFollowers(ctx context.Context, creds credential.Store, id string) (int64, error) {
	return c.count(ctx, creds, "users.followers", id, "followers")
}

func (c *Client) GetFollowings(ctx context.Context, creds credential.Store, id string) (int64, error) {
	return c.count(ctx, creds, "users.followings", id, "followings")
}

func (c *Client) count(ctx context.Context, creds credential.Store, endpoint, id, what string) (int64, error) {
	if err := validID(endpoint, id); err != nil {
		return 0, err
	}
	var n int64
	err := c.sendAuthed(ctx, creds, call{
		endpoint: endpoint,
		method:   http.MethodGet,
		path:     "/users/" + id + "/" + what,
		expect:   []int{http.StatusOK},
	}, func(r io.Reader) error {
		var err error
		n, err = decodeCount(r)
		return err
	})
	return n, err
}

// GetIsFollowed reports whether the caller follows the user id.
func (c *Client) GetIsFollowed(ctx context.Context, creds credential.Store, id string) (bool, error) {
	if err := validID("users.followed", id); err != nil {
		return false, err
	}
	var followed bool
	err := c.sendAuthed(ctx, creds, call{
		endpoint: "users.followed",
		method:   http.MethodGet,
		path:     "/users/" + id + "/followed",
		expect:   []int{http.StatusOK},
	}, func(r io.Reader) error {
		var err error
		followed, err = decodeFollowed(r)
		return err
	})
	return followed, err
}
