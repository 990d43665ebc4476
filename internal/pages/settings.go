package pages

import (
	"context"
	"strings"

	"github.com/sqlmerr/twotty/internal/api"
	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/models"
	"github.com/sqlmerr/twotty/internal/session"
)

// SettingsView backs the account settings page.
type SettingsView struct {
	User     models.User
	Activity []models.Activity
}

// SettingsForm is the submitted settings form. Empty password fields leave
// the password unchanged.
type SettingsForm struct {
	Username        string
	Password        string
	ConfirmPassword string
	Avatar          string
	About           string
}

// Settings loads the settings page for the signed-in user.
func (o *Orchestrator) Settings(ctx context.Context, creds credential.Store) Result {
	sess := o.sessions.Resolve(ctx, creds)
	if sess.State != session.Resolved {
		return toLogin()
	}
	view := o.settingsView(sess.User)
	return Result{Status: Success, Settings: &view}
}

func (o *Orchestrator) settingsView(user models.User) SettingsView {
	view := SettingsView{User: user}
	if o.history == nil {
		return view
	}
	list, err := o.history.ListActivity(user.ID, activityLimit)
	if err != nil {
		o.logg.Error("pages", "Failed to list recent activity", err)
		return view
	}
	view.Activity = list
	return view
}

// patchFrom keeps only the fields that differ from the current account.
func patchFrom(me models.User, form SettingsForm) api.ProfilePatch {
	var p api.ProfilePatch
	if u := strings.TrimSpace(form.Username); u != "" && u != me.Username {
		p.Username = &u
	}
	if form.Password != "" {
		p.Password = &form.Password
	}
	current := ""
	if me.Avatar != nil {
		current = *me.Avatar
	}
	if a := strings.TrimSpace(form.Avatar); a != current {
		p.Avatar = &a
	}
	if form.About != me.About {
		p.About = &form.About
	}
	return p
}

// UpdateProfile applies the settings form. A username change invalidates the
// current token, so it ends the session and sends the browser to log in
// again.
func (o *Orchestrator) UpdateProfile(ctx context.Context, creds credential.Store, form SettingsForm) Result {
	sess := o.sessions.Resolve(ctx, creds)
	if sess.State != session.Resolved {
		return toLogin()
	}
	me := sess.User
	page := func(user models.User, msg, notice string) Result {
		view := o.settingsView(user)
		return Result{Status: Success, Settings: &view, Message: msg, Notice: notice}
	}

	if form.Password != form.ConfirmPassword {
		return page(me, MsgPasswordMismatch, "")
	}
	patch := patchFrom(me, form)
	if patch.Empty() {
		return page(me, "", "")
	}

	if err := o.api.UpdateProfile(ctx, creds, patch); err != nil {
		switch {
		case api.KindOf(err) == api.KindConflict:
			return page(me, MsgUsernameTaken, "")
		case api.IsAuth(err):
			o.forget(ctx, creds)
			return toLogin()
		default:
			return page(me, MsgServerError, "")
		}
	}
	o.record(ctx, me, models.ActivityProfileUpdated, "")

	if patch.Username != nil {
		o.forget(ctx, creds)
		return toLogin()
	}

	token, _ := creds.Get()
	updated, err := o.api.GetMe(ctx, token)
	if err != nil {
		o.logg.Warn("pages", "Identity refresh after profile update failed: "+err.Error())
		o.sessions.Invalidate(ctx, creds)
		return page(me, "", MsgProfileUpdated)
	}
	o.sessions.Set(ctx, creds, updated)
	if key := session.Key(creds); key != "" {
		o.views.Drop(key)
	}
	return page(updated, "", MsgProfileUpdated)
}
