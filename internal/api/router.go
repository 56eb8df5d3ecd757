package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stayward/console-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Credential exchange (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Everything below passes the route guard on every request.
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/session", s.handleSession)
			r.Post("/auth/property", s.handleSwitchProperty)
			r.Post("/auth/password", s.handleChangePassword)

			// Module navigator
			r.Get("/modules", s.handleListModules)
			r.Post("/modules/{id}/open", s.handleOpenModule)

			// Back-office administration. The backoffice gate makes these
			// superadmin-only via the resolver's hard override.
			r.Route("/users", func(r chi.Router) {
				r.Use(s.requireModule(auth.ModuleBackOffice))

				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Patch("/", s.handleUpdateUser)
					r.Delete("/", s.handleDeleteUser)
					r.Get("/memberships", s.handleGetMemberships)
					r.Put("/memberships", s.handleSetMemberships)
				})
			})

			// Audit trail, behind the report module.
			r.Route("/audit", func(r chi.Router) {
				r.Use(s.requireModule(auth.ModuleReport))
				r.Get("/", s.handleListAuditLogs)
			})

			// Leaf screen routes from the declarative route table. The
			// screens themselves are opaque; the guard chain in front of
			// them is the point.
			for _, rt := range ScreenRoutes() {
				route := rt
				r.With(s.requireModule(route.Module)).Get("/screens"+route.Path, s.handleScreen(route))
			}
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
