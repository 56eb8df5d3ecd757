package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
	"github.com/stayward/console-core/internal/infrastructure/config"
	"github.com/stayward/console-core/internal/infrastructure/logging"
	"github.com/stayward/console-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Store       *session.Store
	Exchange    *auth.Exchange
	Users       auth.UserRepository
	Memberships auth.MembershipRepository
	Audit       audit.Repository
	Version     string
}

// Server is the HTTP server for the Stayward console core.
//
// It manages the listener, routes, middleware, and the route guard. The
// server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	store       *session.Store
	exchange    *auth.Exchange
	users       auth.UserRepository
	memberships auth.MembershipRepository
	audit       audit.Repository
	version     string
	server      *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Exchange == nil {
		return nil, fmt.Errorf("credential exchange is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}

	return &Server{
		cfg:         deps.Config,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		store:       deps.Store,
		exchange:    deps.Exchange,
		users:       deps.Users,
		memberships: deps.Memberships,
		audit:       deps.Audit,
		version:     deps.Version,
	}, nil
}

// Start begins listening for HTTP connections. The listener runs in a
// background goroutine; stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to ten seconds
// for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// auditLog records an audit entry, best effort. Audit failures are logged
// and never fail the request that triggered them.
func (s *Server) auditLog(ctx context.Context, action, entityType, entityID string, sess *auth.Session, details ...map[string]any) {
	if s.audit == nil {
		return
	}

	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if sess != nil {
		entry.UserID = sess.Identity.ID
	}
	if len(details) > 0 {
		entry.Details = details[0]
	}

	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", action, "error", err)
	}
}
