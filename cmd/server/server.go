package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sqlmerr/twotty/internal/credential"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/middleware"
	"github.com/sqlmerr/twotty/internal/pages"
)

const viewSweepInterval = time.Minute

// Options configure the web frontend.
type Options struct {
	Pages           *pages.Orchestrator
	Cookie          credential.CookieOptions
	LoginRateLimit  float64 // requests per second per client on the auth forms
	ShutdownTimeout time.Duration
	ViewTTL         time.Duration
	Gatherer        prometheus.Gatherer
	Logger          *logger.Logger
}

type Server struct {
	pages    *pages.Orchestrator
	renderer *Renderer
	opts     Options
}

var logg = logger.New()

func New(opts Options) *Server {
	if opts.Logger != nil {
		logg = opts.Logger
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{pages: opts.Pages, renderer: NewRenderer(), opts: opts}
}

// Router builds the echo instance with every route of the frontend.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = s.renderer

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logg))
	e.Use(middleware.Metrics())
	e.Use(middleware.Credentials(s.opts.Cookie))

	// Not gated
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/@:username", s.aliasHandler)
	e.StaticFS("/static", staticFS())

	limited := []echo.MiddlewareFunc{}
	if s.opts.LoginRateLimit > 0 {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(s.opts.LoginRateLimit))
		limited = append(limited, echomw.RateLimiter(store))
	}

	e.GET("/register", s.registerPageHandler)
	e.POST("/register", s.registerHandler, limited...)

	// Gated
	g := e.Group("", middleware.AuthGate())
	g.GET("/", s.rootHandler)
	g.GET("/login", s.loginPageHandler)
	g.POST("/login", s.loginHandler, limited...)
	g.GET("/logout", s.logoutHandler)
	g.GET("/settings", s.settingsHandler)
	g.POST("/settings", s.updateSettingsHandler)
	g.GET("/user/:username", s.profileHandler)
	g.POST("/user/:username/posts", s.createPostHandler)
	g.POST("/user/:username/follow", s.followHandler)
	g.POST("/user/:username/unfollow", s.unfollowHandler)
	g.POST("/user/:username/posts/:id/edit", s.editPostHandler)
	g.POST("/user/:username/posts/:id/delete", s.deletePostHandler)

	return e
}

// Run serves the frontend on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	e := s.Router()
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second, // prevent slowloris attacks
		WriteTimeout:      30 * time.Second,
	}

	go s.sweepViews(ctx)

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server", "Starting HTTP server on "+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logg.Info("server", "Shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}

func (s *Server) sweepViews(ctx context.Context) {
	ttl := s.opts.ViewTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ticker := time.NewTicker(viewSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.pages.Views().Sweep(ttl); n > 0 {
				logg.Debug("server", "Swept idle profile views")
			}
		}
	}
}
