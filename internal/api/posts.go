package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
)

type postTextRequest struct {
	Text string `json:"text"`
}

// GetUserPosts lists the posts of username. Failures clear the credential
// according to the client's policy.
func (c *Client) GetUserPosts(ctx context.Context, creds credential.Store, username string) ([]models.Post, error) {
	var posts []models.Post
	err := c.sendAuthed(ctx, creds, call{
		endpoint: "posts.by_user",
		method:   http.MethodGet,
		path:     "/posts/@" + url.PathEscape(username),
		expect:   []int{http.StatusOK},
		clears:   true,
	}, func(r io.Reader) error {
		var err error
		posts, err = decodePosts(r)
		return err
	})
	return posts, err
}

// CreatePost publishes text as the caller. Length is validated by the
// backend; anything but 201 is a failure.
func (c *Client) CreatePost(ctx context.Context, creds credential.Store, text string) (models.Post, error) {
	var post models.Post
	err := c.sendAuthed(ctx, creds, call{
		endpoint: "posts.create",
		method:   http.MethodPost,
		path:     "/posts",
		body:     postTextRequest{Text: text},
		expect:   []int{http.StatusCreated},
	}, func(r io.Reader) error {
		var err error
		post, err = decodePost(r)
		return err
	})
	return post, err
}

// EditPost replaces the text of post id.
func (c *Client) EditPost(ctx context.Context, creds credential.Store, id, text string) (bool, error) {
	if err := validID("posts.edit", id); err != nil {
		return false, err
	}
	var ok bool
	err := c.sendAuthed(ctx, creds, call{
		endpoint: "posts.edit",
		method:   http.MethodPatch,
		path:     "/posts/" + id,
		body:     postTextRequest{Text: text},
		expect:   []int{http.StatusOK},
	}, func(r io.Reader) error {
		var err error
		ok, err = decodeOK(r)
		return err
	})
	return ok, err
}

// DeletePost removes post id. Failures clear the credential according to the
// client's policy.
func (c *Client) DeletePost(ctx context.Context, creds credential.Store, id string) error {
	if err := validID("posts.delete", id); err != nil {
		return err
	}
	return c.sendAuthed(ctx, creds, call{
		endpoint: "posts.delete",
		method:   http.MethodDelete,
		path:     "/posts/" + id,
		expect:   []int{http.StatusOK},
		clears:   true,
	}, nil)
}
