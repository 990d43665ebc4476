package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sqlmerr/twotty/internal/models"
)

// Payload shapes sent by the backend. Pointers mark fields whose absence must
// be detected.

type userPayload struct {
	ID       *string `json:"id"`
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	About    string  `json:"about"`
}

type postPayload struct {
	ID        *string `json:"id"`
	Text      *string `json:"text"`
	AuthorID  *string `json:"author_id"`
	CreatedAt *string `json:"created_at"`
	Edited    bool    `json:"edited"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type countPayload struct {
	Count *int64 `json:"count"`
}

type followedPayload struct {
	IsFollowed *bool `json:"isFollowed"`
}

type okPayload struct {
	OK *bool `json:"ok"`
}

type errorPayload struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// Timestamps arrive as naive ISO-8601 values (no zone); they are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func decodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (p userPayload) toModel() (models.User, error) {
	if p.ID == nil {
		return models.User{}, errors.New("user: missing id")
	}
	if _, err := uuid.Parse(*p.ID); err != nil {
		return models.User{}, fmt.Errorf("user: invalid id: %w", err)
	}
	if p.Username == nil || *p.Username == "" {
		return models.User{}, errors.New("user: missing username")
	}
	return models.User{
		ID:       *p.ID,
		Username: *p.Username,
		Avatar:   p.Avatar,
		About:    p.About,
	}, nil
}

func (p postPayload) toModel() (models.Post, error) {
	if p.ID == nil {
		return models.Post{}, errors.New("post: missing id")
	}
	if _, err := uuid.Parse(*p.ID); err != nil {
		return models.Post{}, fmt.Errorf("post: invalid id: %w", err)
	}
	if p.Text == nil {
		return models.Post{}, errors.New("post: missing text")
	}
	if p.AuthorID == nil {
		return models.Post{}, errors.New("post: missing author_id")
	}
	if _, err := uuid.Parse(*p.AuthorID); err != nil {
		return models.Post{}, fmt.Errorf("post: invalid author_id: %w", err)
	}
	if p.CreatedAt == nil {
		return models.Post{}, errors.New("post: missing created_at")
	}
	created, err := parseTimestamp(*p.CreatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("post: %w", err)
	}
	return models.Post{
		ID:        *p.ID,
		Text:      *p.Text,
		AuthorID:  *p.AuthorID,
		Edited:    p.Edited,
		CreatedAt: created,
	}, nil
}

func decodeUser(r io.Reader) (models.User, error) {
	var p userPayload
	if err := decodeJSON(r, &p); err != nil {
		return models.User{}, err
	}
	return p.toModel()
}

func decodePost(r io.Reader) (models.Post, error) {
	var p postPayload
	if err := decodeJSON(r, &p); err != nil {
		return models.Post{}, err
	}
	return p.toModel()
}

func decodePosts(r io.Reader) ([]models.Post, error) {
	var ps []postPayload
	if err := decodeJSON(r, &ps); err != nil {
		return nil, err
	}
	posts := make([]models.Post, 0, len(ps))
	for i, p := range ps {
		post, err := p.toModel()
		if err != nil {
			return nil, fmt.Errorf("posts[%d]: %w", i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func decodeToken(r io.Reader) (string, error) {
	var p tokenPayload
	if err := decodeJSON(r, &p); err != nil {
		return "", err
	}
	if p.AccessToken == "" {
		return "", errors.New("login: missing access_token")
	}
	if p.TokenType != "" && !strings.EqualFold(p.TokenType, "bearer") {
		return "", fmt.Errorf("login: unsupported token type %q", p.TokenType)
	}
	return p.AccessToken, nil
}

func decodeCount(r io.Reader) (int64, error) {
	var p countPayload
	if err := decodeJSON(r, &p); err != nil {
		return 0, err
	}
	if p.Count == nil {
		return 0, errors.New("missing count")
	}
	if *p.Count < 0 {
		return 0, fmt.Errorf("negative count %d", *p.Count)
	}
	return *p.Count, nil
}

func decodeFollowed(r io.Reader) (bool, error) {
	var p followedPayload
	if err := decodeJSON(r, &p); err != nil {
		return false, err
	}
	if p.IsFollowed == nil {
		return false, errors.New("missing isFollowed")
	}
	return *p.IsFollowed, nil
}

func decodeOK(r io.Reader) (bool, error) {
	var p okPayload
	if err := decodeJSON(r, &p); err != nil {
		return false, err
	}
	if p.OK == nil {
		return false, errors.New("missing ok")
	}
	return *p.OK, nil
}

// errorMessage extracts the backend error message; bodies that are not the
// error envelope yield "".
func errorMessage(r io.Reader) string {
	var p errorPayload
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&p); err != nil {
		return ""
	}
	return p.Message
}
