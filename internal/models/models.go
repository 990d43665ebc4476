package models

import "time"

// MaxPostLength is the limit the backend enforces on post text.
const MaxPostLength = 256

type User struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Avatar     *string `json:"avatar,omitempty"`
	About      string  `json:"about"`
	Followers  *int64  `json:"followers,omitempty"`
	Followings *int64  `json:"followings,omitempty"`
}

// FollowersCount returns the follower count, or 0 when it is unknown.
func (u User) FollowersCount() int64 {
	if u.Followers == nil {
		return 0
	}
	return *u.Followers
}

// FollowingsCount returns the following count, or 0 when it is unknown.
func (u User) FollowingsCount() int64 {
	if u.Followings == nil {
		return 0
	}
	return *u.Followings
}

// AvatarURL returns the avatar or the placeholder image.
func (u User) AvatarURL() string {
	if u.Avatar == nil || *u.Avatar == "" {
		return "/static/placeholder-user.svg"
	}
	return *u.Avatar
}

type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityKind string

const (
	ActivityLogin          ActivityKind = "login"
	ActivityLogout         ActivityKind = "logout"
	ActivityRegister       ActivityKind = "register"
	ActivityPostCreated    ActivityKind = "post_created"
	ActivityPostEdited     ActivityKind = "post_edited"
	ActivityPostDeleted    ActivityKind = "post_deleted"
	ActivityFollow         ActivityKind = "follow"
	ActivityUnfollow       ActivityKind = "unfollow"
	ActivityProfileUpdated ActivityKind = "profile_updated"
)

// Activity is a user action observed by the frontend.
type Activity struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Username   string       `json:"username"`
	Kind       ActivityKind `json:"kind"`
	Subject    string       `json:"subject,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
