package pages

import (
	"context"
	"strings"

	"github.com/sqlmerr/twotty/internal/api"
	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
	"github.com/sqlmerr/twotty/internal/session"
)

// Login exchanges the form credentials for a token, stores it and sends the
// browser to the user's profile.
func (o *Orchestrator) Login(ctx context.Context, creds credential.Store, username, password string) Result {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Result{Status: Error, Message: MsgFieldsRequired}
	}

	token, err := o.api.Login(ctx, username, password)
	if err != nil {
		if api.KindOf(err) == api.KindInvalidCredentials {
			return Result{Status: Error, Message: MsgInvalidLogin}
		}
		return Result{Status: Error, Message: MsgServerError}
	}

	creds.Set(token)
	me, err := o.api.GetMe(ctx, token)
	if err != nil {
		o.logg.Warn("pages", "Identity lookup after login failed: "+err.Error())
		return Result{Status: Success, Redirect: "/"}
	}
	o.sessions.Set(ctx, creds, me)
	o.record(ctx, me, models.ActivityLogin, "")

	return Result{Status: Success, Redirect: ProfilePath(me.Username)}
}

// Register creates an account. Mismatched passwords are rejected before any
// request is made.
func (o *Orchestrator) Register(ctx context.Context, username, password, confirmPassword string) Result {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Result{Status: Error, Message: MsgFieldsRequired}
	}
	if password != confirmPassword {
		return Result{Status: Error, Message: MsgPasswordMismatch}
	}

	user, err := o.api.Register(ctx, username, password)
	if err != nil {
		if api.KindOf(err) == api.KindConflict {
			return Result{Status: Error, Message: MsgUsernameTaken}
		}
		return Result{Status: Error, Message: MsgServerError}
	}

	o.record(ctx, user, models.ActivityRegister, "")
	return Result{Status: Success, Redirect: loginPath}
}

// Root sends a resolved session to its own profile. A credential that does
// not resolve is deleted so the login page does not bounce back here, unless
// the policy only clears on auth failures and the lookup failed otherwise.
// In that case, and when the request ended before the lookup did, Root
// returns a server error without a redirect.
func (o *Orchestrator) Root(ctx context.Context, creds credential.Store) Result {
	sess := o.sessions.Resolve(ctx, creds)
	switch sess.State {
	case session.Resolved:
		return Result{Status: Success, Redirect: ProfilePath(sess.User.Username)}
	case session.Unresolved:
		return Result{Status: Error, Message: MsgServerError}
	}
	if _, ok := creds.Get(); !ok {
		return toLogin()
	}
	if o.policy == api.ClearOnAuthFailure && !api.IsAuth(sess.Err) {
		o.logg.Warn("pages", "Identity lookup failed, keeping credential: "+errText(sess.Err))
		return Result{Status: Error, Message: MsgServerError}
	}
	o.forget(ctx, creds)
	return toLogin()
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// Logout deletes the credential and every cached trace of the session.
func (o *Orchestrator) Logout(ctx context.Context, creds credential.Store) Result {
	if _, ok := creds.Get(); ok {
		if sess := o.sessions.Resolve(ctx, creds); sess.State == session.Resolved {
			o.record(ctx, sess.User, models.ActivityLogout, "")
		}
	}
	o.forget(ctx, creds)
	return toLogin()
}

// forget invalidates the session and its views, then deletes the credential.
func (o *Orchestrator) forget(ctx context.Context, creds credential.Store) {
	if key := session.Key(creds); key != "" {
		o.views.Drop(key)
	}
	o.sessions.Invalidate(ctx, creds)
	creds.Delete()
}
