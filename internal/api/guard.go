package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
)

// requireSession is the route guard in front of every protected endpoint.
//
// It consults the session store fresh on every request, never a one-time
// check cached at mount, so back/forward navigation and stale tabs are
// re-evaluated each time. The chain fails closed:
//
//   - no stored session (including a corrupt record read as nil)
//   - missing bearer token
//   - bearer not matching the stored session's token
//   - bearer failing signature or expiry validation
//
// all produce a login redirect without ever invoking the wrapped handler.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.store.Read(r.Context())
		if sess == nil {
			writeLoginRedirect(w)
			return
		}

		token := bearerToken(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sess.Token)) != 1 {
			writeLoginRedirect(w)
			return
		}

		if _, err := auth.ParseToken(token, s.secCfg.JWT.Secret); err != nil {
			// Expired or tampered. The stored session stays untouched
			// (Read is side-effect-free) but the guard treats it as absent.
			writeLoginRedirect(w)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySession, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireModule returns the module-scoped guard variant: it re-resolves the
// grant decision for the current session and rejects navigation into any
// module absent from it. It shares auth.CanAccess with the navigator, so
// rendering and authorisation can never diverge.
func (s *Server) requireModule(id auth.ModuleID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromContext(r.Context())
			if !auth.CanAccess(sess, id) {
				s.auditLog(r.Context(), audit.ActionAccessDenied, "module", string(id), sess)
				writeAccessDenied(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionFromContext returns the session placed by requireSession, or nil.
func sessionFromContext(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(ctxKeySession).(*auth.Session)
	return sess
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
