// ABOUTME: Server wires the portal, back-office, store, cache and backend client together
// ABOUTME: and runs the HTTP listener with graceful shutdown and a session janitor

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/2389/guday-portal/internal/assets"
	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/cache"
	"github.com/2389/guday-portal/internal/config"
	"github.com/2389/guday-portal/internal/middleware"
	"github.com/2389/guday-portal/internal/portal"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/webadmin"
)

const (
	// sweepInterval is how often expired sessions are deleted.
	sweepInterval = 10 * time.Minute

	shutdownTimeout = 5 * time.Second
	readyTimeout    = 3 * time.Second
)

// Server is the guday-portal process: one HTTP listener serving the public
// site, the back-office, static assets and health checks.
type Server struct {
	config     *config.Config
	store      store.Store
	api        *backend.Client
	transport  *http.Transport
	cache      *cache.Cache
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	// Citizens and admins are throttled in separate buckets.
	citizenLimiter *auth.LoginLimiter
	adminLimiter   *auth.LoginLimiter

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// New creates a server from configuration. The store is opened immediately;
// call Shutdown (or Run, which shuts down on return) to release it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	api, err := backend.New(backend.Options{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		UserAgent:  cfg.Backend.UserAgent,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	s := &Server{
		config:         cfg,
		store:          st,
		api:            api,
		transport:      transport,
		cache:          cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		citizenLimiter: auth.NewLoginLimiter(cfg.Admin.LoginRate, cfg.Admin.LoginBurst),
		adminLimiter:   auth.NewLoginLimiter(cfg.Admin.LoginRate, cfg.Admin.LoginBurst),
		logger:         logger.With("component", "server"),
		sweepEvery:     sweepInterval,
		done:           make(chan struct{}),
	}

	adminSessions := auth.NewManager(st, auth.ManagerOptions{
		Kind:       store.SessionAdmin,
		CookieName: auth.AdminSessionCookie,
		Path:       "/admin",
		Duration:   cfg.Session.Duration,
		Secure:     cfg.Session.SecureCookies,
	})
	citizenSessions := auth.NewManager(st, auth.ManagerOptions{
		Kind:       store.SessionCitizen,
		CookieName: auth.CitizenSessionCookie,
		Path:       "/",
		Duration:   cfg.Session.Duration,
		Secure:     cfg.Session.SecureCookies,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.Handle("GET "+assets.Prefix, http.StripPrefix(assets.Prefix, assets.FileServer()))

	site := portal.New(api, s.cache, citizenSessions, s.citizenLimiter, portal.Config{
		SiteName:       cfg.Portal.SiteName,
		FeaturedCount:  cfg.Portal.FeaturedCount,
		SearchPageSize: cfg.Portal.SearchPageSize,
		SecureCookies:  cfg.Session.SecureCookies,
		TrustProxy:     cfg.Server.TrustProxy,
	})
	site.RegisterRoutes(mux)

	admin := webadmin.New(api, s.cache, adminSessions, st, s.adminLimiter, webadmin.Config{
		SiteName:      cfg.Portal.SiteName,
		SecureCookies: cfg.Session.SecureCookies,
		TrustProxy:    cfg.Server.TrustProxy,
	})
	admin.RegisterRoutes(mux)

	s.handler = middleware.Chain(mux,
		middleware.RequestID,
		middleware.WithLogging(logger.With("component", "http")),
		middleware.Recover(logger),
		middleware.SecurityHeaders,
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and blocks until the context is
// canceled or the listener fails. It always shuts the server down before
// returning.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		_ = s.gracefulShutdown()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.startJanitor()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the caller's is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// startJanitor deletes expired sessions in the background until shutdown.
func (s *Server) startJanitor() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()

		s.sweep()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Server) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.store.DeleteExpiredSessions(ctx); err != nil {
		s.logger.Warn("session sweep failed", "error", err)
	}
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the listener, background workers and the store. It is safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.closeOnce.Do(func() {
		s.logger.Info("shutting down server")

		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

		close(s.done)
		s.wg.Wait()

		s.cache.Close()
		s.citizenLimiter.Close()
		s.adminLimiter.Close()
		s.transport.CloseIdleConnections()
		errs = appendCloseError(errs, "store close", s.store.Close())
	})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
