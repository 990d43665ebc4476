// Package pages runs the backend call sequences behind every page and form
// of the web client.
//
// Orchestrators never render anything. They return a Result telling the
// handler what to show: a committed view, an inline message or a redirect.
package pages

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sqlmerr/twotty/internal/api"
	appkafka "github.com/sqlmerr/twotty/internal/broker"
	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/models"
	"github.com/sqlmerr/twotty/internal/monitoring"
	"github.com/sqlmerr/twotty/internal/session"
)

// Inline messages shown next to forms.
const (
	MsgInvalidLogin     = "Invalid username or password"
	MsgServerError      = "Server error"
	MsgPasswordMismatch = "Passwords do not match"
	MsgUsernameTaken    = "Username is already occupied"
	MsgPostTooLong      = "Text length must be less than 256 characters"
	MsgFollowFailed     = "Could not update follow status"
	MsgEditInvalid      = "Text length must be between 1 and 256 characters"
	MsgFieldsRequired   = "Username and password are required"
	MsgProfileUpdated   = "Profile updated"
)

const (
	loginPath       = "/login"
	activityTimeout = 2 * time.Second
	activityLimit   = 20
)

// ProfilePath is the canonical page of username.
func ProfilePath(username string) string {
	return "/user/" + username
}

type Status int

const (
	Loading Status = iota
	Success
	Error
)

// Result is the outcome of one orchestrated page operation.
type Result struct {
	Status   Status
	View     *ProfileView
	Settings *SettingsView
	// Message is an inline error, Notice an inline confirmation.
	Message string
	Notice  string
	// Redirect, when set, replaces rendering.
	Redirect string
}

// Backend is the part of the API client the orchestrators use.
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (models.User, error)
	GetMe(ctx context.Context, token string) (models.User, error)
	UpdateProfile(ctx context.Context, creds credential.Store, patch api.ProfilePatch) error
	GetUser(ctx context.Context, creds credential.Store, username string) (models.User, error)
	Follow(ctx context.Context, creds credential.Store, id string) (bool, error)
	Unfollow(ctx context.Context, creds credential.Store, id string) (bool, error)
	GetFollowers(ctx context.Context, creds credential.Store, id string) (int64, error)
	GetFollowings(ctx context.Context, creds credential.Store, id string) (int64, error)
	GetIsFollowed(ctx context.Context, creds credential.Store, id string) (bool, error)
	GetUserPosts(ctx context.Context, creds credential.Store, username string) ([]models.Post, error)
	CreatePost(ctx context.Context, creds credential.Store, text string) (models.Post, error)
	EditPost(ctx context.Context, creds credential.Store, id, text string) (bool, error)
	DeletePost(ctx context.Context, creds credential.Store, id string) error
}

// Sessions resolves and caches the signed-in user.
type Sessions interface {
	Resolve(ctx context.Context, creds credential.Store) session.Session
	Set(ctx context.Context, creds credential.Store, user models.User)
	Invalidate(ctx context.Context, creds credential.Store)
}

// ActivityReader lists recorded activity of a user.
type ActivityReader interface {
	ListActivity(userID string, limit int) ([]models.Activity, error)
}

type Options struct {
	API      Backend
	Sessions Sessions
	Views    *ViewStore
	// Activity receives user actions; nil disables publication.
	Activity appkafka.Publisher
	// History backs the recent activity list on the settings page; nil hides it.
	History ActivityReader
	// Policy decides whether the root page deletes a credential whose
	// identity lookup failed for a reason other than an auth rejection.
	Policy api.ClearPolicy
	Logger *logger.Logger
}

type Orchestrator struct {
	api      Backend
	sessions Sessions
	views    *ViewStore
	activity appkafka.Publisher
	history  ActivityReader
	policy   api.ClearPolicy
	logg     *logger.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		api:      opts.API,
		sessions: opts.Sessions,
		views:    opts.Views,
		activity: opts.Activity,
		history:  opts.History,
		policy:   opts.Policy,
		logg:     opts.Logger,
	}
	if o.views == nil {
		o.views = NewViewStore()
	}
	if o.activity == nil {
		o.activity = appkafka.NopPublisher{}
	}
	if o.logg == nil {
		o.logg = logger.New()
	}
	return o
}

// Views exposes the view store so the server can sweep it.
func (o *Orchestrator) Views() *ViewStore { return o.views }

func toLogin() Result {
	return Result{Status: Error, Redirect: loginPath}
}

// LoadProfile fetches everything the profile of username shows. The first
// failing call aborts the sequence and sends the browser to the login page.
func (o *Orchestrator) LoadProfile(ctx context.Context, creds credential.Store, username string) Result {
	key := session.Key(creds)
	if key == "" {
		return toLogin()
	}
	gen := o.views.Begin(key)

	sess := o.sessions.Resolve(ctx, creds)
	if sess.State != session.Resolved {
		o.logg.Info("pages", "Profile requested without a resolvable session")
		return toLogin()
	}

	view, err := o.fetchProfile(ctx, creds, username)
	if err != nil {
		o.logg.Warn("pages", "Profile load aborted: "+err.Error())
		return toLogin()
	}
	view.Viewer = sess.User

	if !o.views.Commit(key, gen, view) {
		o.logg.Debug("pages", "Stale profile load not committed")
	}
	return Result{Status: Success, View: &view}
}

func (o *Orchestrator) fetchProfile(ctx context.Context, creds credential.Store, username string) (ProfileView, error) {
	author, err := o.api.GetUser(ctx, creds, username)
	if err != nil {
		return ProfileView{}, err
	}

	var followers, followings int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		followings, err = o.api.GetFollowings(gctx, creds, author.ID)
		return err
	})
	g.Go(func() error {
		var err error
		followers, err = o.api.GetFollowers(gctx, creds, author.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfileView{}, err
	}
	author.Followers = &followers
	author.Followings = &followings

	posts, err := o.api.GetUserPosts(ctx, creds, author.Username)
	if err != nil {
		return ProfileView{}, err
	}

	followed, err := o.api.GetIsFollowed(ctx, creds, author.ID)
	if err != nil {
		return ProfileView{}, err
	}

	return ProfileView{Author: author, Posts: posts, IsFollowed: followed}, nil
}

// current returns the committed view of username for this session, loading
// it first when the session has none or shows another profile.
func (o *Orchestrator) current(ctx context.Context, creds credential.Store, username string) (ProfileView, string, *Result) {
	key := session.Key(creds)
	if key == "" {
		r := toLogin()
		return ProfileView{}, "", &r
	}
	if v, ok := o.views.Get(key); ok && v.Author.Username == username {
		return v, key, nil
	}
	r := o.LoadProfile(ctx, creds, username)
	if r.Status != Success {
		return ProfileView{}, "", &r
	}
	return *r.View, key, nil
}

// record publishes one activity record. Failures are logged and dropped.
func (o *Orchestrator) record(ctx context.Context, user models.User, kind models.ActivityKind, subject string) {
	if user.ID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityTimeout)
	defer cancel()

	err := o.activity.Publish(ctx, models.Activity{
		UserID:   user.ID,
		Username: user.Username,
		Kind:     kind,
		Subject:  subject,
	})
	if err != nil {
		monitoring.ActivityPublishedTotal.WithLabelValues(string(kind), "error").Inc()
		o.logg.Error("pages", "Failed to publish activity", err)
		return
	}
	monitoring.ActivityPublishedTotal.WithLabelValues(string(kind), "ok").Inc()
}
