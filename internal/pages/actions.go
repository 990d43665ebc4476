package pages

import (
	"context"

	"github.com/sqlmerr/twotty/internal/api"
	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
)

func success(v ProfileView) Result {
	return Result{Status: Success, View: &v}
}

func withMessage(v ProfileView, msg string) Result {
	r := success(v)
	r.Message = msg
	return r
}

// CreatePost publishes text on the viewer's own profile and refreshes the
// post list. A rejected post keeps the current list and shows an inline
// message.
func (o *Orchestrator) CreatePost(ctx context.Context, creds credential.Store, username, text string) Result {
	view, key, fail := o.current(ctx, creds, username)
	if fail != nil {
		return *fail
	}
	if !view.IsOwn() {
		return success(view)
	}

	post, err := o.api.CreatePost(ctx, creds, text)
	if err != nil {
		if api.IsAuth(err) {
			return toLogin()
		}
		return withMessage(view, MsgPostTooLong)
	}

	posts, err := o.api.GetUserPosts(ctx, creds, view.Author.Username)
	if err != nil {
		o.logg.Warn("pages", "Post list refresh failed: "+err.Error())
		return toLogin()
	}
	if updated, ok := o.views.Update(key, view.Author.ID, func(v *ProfileView) { v.Posts = posts }); ok {
		view = updated
	} else {
		view.Posts = posts
	}

	o.record(ctx, view.Viewer, models.ActivityPostCreated, post.ID)
	return success(view)
}

// Follow follows the viewed author.
func (o *Orchestrator) Follow(ctx context.Context, creds credential.Store, username string) Result {
	return o.setFollow(ctx, creds, username, true)
}

// Unfollow unfollows the viewed author.
func (o *Orchestrator) Unfollow(ctx context.Context, creds credential.Store, username string) Result {
	return o.setFollow(ctx, creds, username, false)
}

// setFollow flips the follow state optimistically, confirms it with the
// backend and then reconciles the follower count. A failed call reverts the
// optimistic change.
func (o *Orchestrator) setFollow(ctx context.Context, creds credential.Store, username string, follow bool) Result {
	view, key, fail := o.current(ctx, creds, username)
	if fail != nil {
		return *fail
	}
	if view.IsOwn() || view.IsFollowed == follow {
		return success(view)
	}
	authorID := view.Author.ID
	before := view.Author.FollowersCount()

	optimistic := before + 1
	if !follow {
		optimistic = max(before-1, 0)
	}
	apply := func(followed bool, followers int64) func(v *ProfileView) {
		return func(v *ProfileView) {
			v.IsFollowed = followed
			v.Author.Followers = &followers
		}
	}
	o.views.Update(key, authorID, apply(follow, optimistic))

	var ok bool
	var err error
	if follow {
		ok, err = o.api.Follow(ctx, creds, authorID)
	} else {
		ok, err = o.api.Unfollow(ctx, creds, authorID)
	}
	if err != nil || !ok {
		if api.IsAuth(err) {
			return toLogin()
		}
		reverted, found := o.views.Update(key, authorID, apply(!follow, before))
		if !found {
			reverted = view
		}
		return withMessage(reverted, MsgFollowFailed)
	}

	followers := optimistic
	if n, err := o.api.GetFollowers(ctx, creds, authorID); err == nil {
		followers = n
	} else {
		o.logg.Warn("pages", "Follower count reconcile failed: "+err.Error())
	}
	updated, found := o.views.Update(key, authorID, apply(follow, followers))
	if !found {
		apply(follow, followers)(&view)
		updated = view
	}

	kind := models.ActivityFollow
	if !follow {
		kind = models.ActivityUnfollow
	}
	o.record(ctx, view.Viewer, kind, authorID)
	return success(updated)
}

// EditPost replaces the text of one of the viewer's posts.
func (o *Orchestrator) EditPost(ctx context.Context, creds credential.Store, username, postID, text string) Result {
	view, key, fail := o.current(ctx, creds, username)
	if fail != nil {
		return *fail
	}
	if !view.IsOwn() || indexOf(view.Posts, postID) < 0 {
		return success(view)
	}

	ok, err := o.api.EditPost(ctx, creds, postID, text)
	if err != nil || !ok {
		if api.IsAuth(err) {
			return toLogin()
		}
		return withMessage(view, MsgEditInvalid)
	}

	edit := func(v *ProfileView) {
		if i := indexOf(v.Posts, postID); i >= 0 {
			v.Posts[i].Text = text
			v.Posts[i].Edited = true
		}
	}
	updated, found := o.views.Update(key, view.Author.ID, edit)
	if !found {
		edit(&view)
		updated = view
	}

	o.record(ctx, view.Viewer, models.ActivityPostEdited, postID)
	return success(updated)
}

// DeletePost removes one of the viewer's posts. Any failure sends the browser
// to the login page; the API client has already applied the clearing policy.
func (o *Orchestrator) DeletePost(ctx context.Context, creds credential.Store, username, postID string) Result {
	view, key, fail := o.current(ctx, creds, username)
	if fail != nil {
		return *fail
	}
	if !view.IsOwn() || indexOf(view.Posts, postID) < 0 {
		return success(view)
	}

	if err := o.api.DeletePost(ctx, creds, postID); err != nil {
		o.logg.Warn("pages", "Post deletion failed: "+err.Error())
		return toLogin()
	}

	remove := func(v *ProfileView) {
		if i := indexOf(v.Posts, postID); i >= 0 {
			v.Posts = append(v.Posts[:i], v.Posts[i+1:]...)
		}
	}
	updated, found := o.views.Update(key, view.Author.ID, remove)
	if !found {
		remove(&view)
		updated = view
	}

	o.record(ctx, view.Viewer, models.ActivityPostDeleted, postID)
	return success(updated)
}

func indexOf(posts []models.Post, id string) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
