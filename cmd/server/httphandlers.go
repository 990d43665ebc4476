package server

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/sqlmerr/twotty/internal/middleware"
	"github.com/sqlmerr/twotty/internal/pages"
)

// --- HTTP Handlers ---

// authPage is the data of the login and register templates.
type authPage struct {
	Username string
	Message  string
}

// errorPage is the data of the error template.
type errorPage struct {
	Message string
}

// profilePage is the data of the profile template.
type profilePage struct {
	View    *pages.ProfileView
	Message string
	Notice  string
}

// settingsPage is the data of the settings template.
type settingsPage struct {
	Settings *pages.SettingsView
	Message  string
	Notice   string
}

// redirect answers a form submission with 303 so the browser follows with a
// GET, and anything else with 302.
func redirect(c echo.Context, to string) error {
	code := http.StatusFound
	if c.Request().Method == http.MethodPost {
		code = http.StatusSeeOther
	}
	return c.Redirect(code, to)
}

// aliasHandler maps /@username to the canonical profile path.
func (s *Server) aliasHandler(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, pages.ProfilePath(url.PathEscape(c.Param("username"))))
}

func (s *Server) rootHandler(c echo.Context) error {
	res := s.pages.Root(c.Request().Context(), middleware.CredentialsFrom(c))
	if res.Redirect == "" {
		return c.Render(http.StatusServiceUnavailable, "error", errorPage{Message: res.Message})
	}
	return redirect(c, res.Redirect)
}

func (s *Server) loginPageHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "login", authPage{})
}

func (s *Server) loginHandler(c echo.Context) error {
	username := c.FormValue("username")
	res := s.pages.Login(c.Request().Context(), middleware.CredentialsFrom(c), username, c.FormValue("password"))
	if res.Redirect != "" {
		logg.Info("http/auth", "User logged in: "+username)
		return redirect(c, res.Redirect)
	}
	return c.Render(statusFor(res), "login", authPage{Username: username, Message: res.Message})
}

func (s *Server) registerPageHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "register", authPage{})
}

func (s *Server) registerHandler(c echo.Context) error {
	username := c.FormValue("username")
	res := s.pages.Register(c.Request().Context(), username, c.FormValue("password"), c.FormValue("confirm_password"))
	if res.Redirect != "" {
		logg.Info("http/auth", "User registered: "+username)
		return redirect(c, res.Redirect)
	}
	return c.Render(statusFor(res), "register", authPage{Username: username, Message: res.Message})
}

func (s *Server) logoutHandler(c echo.Context) error {
	res := s.pages.Logout(c.Request().Context(), middleware.CredentialsFrom(c))
	return redirect(c, res.Redirect)
}

func (s *Server) profileHandler(c echo.Context) error {
	res := s.pages.LoadProfile(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"))
	return s.renderProfile(c, res)
}

func (s *Server) createPostHandler(c echo.Context) error {
	res := s.pages.CreatePost(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"), c.FormValue("text"))
	return s.afterAction(c, res)
}

func (s *Server) followHandler(c echo.Context) error {
	res := s.pages.Follow(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"))
	return s.afterAction(c, res)
}

func (s *Server) unfollowHandler(c echo.Context) error {
	res := s.pages.Unfollow(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"))
	return s.afterAction(c, res)
}

func (s *Server) editPostHandler(c echo.Context) error {
	res := s.pages.EditPost(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"), c.Param("id"), c.FormValue("text"))
	return s.afterAction(c, res)
}

func (s *Server) deletePostHandler(c echo.Context) error {
	res := s.pages.DeletePost(c.Request().Context(), middleware.CredentialsFrom(c), c.Param("username"), c.Param("id"))
	return s.afterAction(c, res)
}

func (s *Server) settingsHandler(c echo.Context) error {
	res := s.pages.Settings(c.Request().Context(), middleware.CredentialsFrom(c))
	return s.renderSettings(c, res)
}

func (s *Server) updateSettingsHandler(c echo.Context) error {
	form := pages.SettingsForm{
		Username:        c.FormValue("username"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
		Avatar:          c.FormValue("avatar"),
		About:           c.FormValue("about"),
	}
	res := s.pages.UpdateProfile(c.Request().Context(), middleware.CredentialsFrom(c), form)
	return s.renderSettings(c, res)
}

// afterAction renders the profile when the action left a message to show,
// otherwise it redirects back to the profile page.
func (s *Server) afterAction(c echo.Context, res pages.Result) error {
	if res.Redirect != "" || res.View == nil || res.Message != "" {
		return s.renderProfile(c, res)
	}
	return redirect(c, pages.ProfilePath(res.View.Author.Username))
}

func (s *Server) renderProfile(c echo.Context, res pages.Result) error {
	if res.Redirect != "" {
		return redirect(c, res.Redirect)
	}
	if res.View == nil {
		return redirect(c, "/login")
	}
	return c.Render(statusFor(res), "profile", profilePage{View: res.View, Message: res.Message, Notice: res.Notice})
}

func (s *Server) renderSettings(c echo.Context, res pages.Result) error {
	if res.Redirect != "" {
		return redirect(c, res.Redirect)
	}
	if res.Settings == nil {
		return redirect(c, "/login")
	}
	return c.Render(statusFor(res), "settings", settingsPage{Settings: res.Settings, Message: res.Message, Notice: res.Notice})
}

// statusFor keeps inline form errors on a 4xx so clients can tell them apart
// from a rendered page.
func statusFor(res pages.Result) int {
	if res.Status == pages.Error {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
