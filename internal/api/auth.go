package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
)

// sessionView is the session payload returned to the UI. The bearer token
// travels alongside it once, at login; afterwards the UI presents it in the
// Authorization header.
type sessionView struct {
	Identity       auth.Identity     `json:"identity"`
	Memberships    []auth.Membership `json:"memberships"`
	ActiveProperty string            `json:"active_property"`
	Modules        []auth.ModuleID   `json:"modules"`
}

// newSessionView builds the UI payload, resolving the grant decision fresh.
func newSessionView(sess *auth.Session) sessionView {
	return sessionView{
		Identity:       sess.Identity,
		Memberships:    sess.Memberships,
		ActiveProperty: sess.ActiveProperty,
		Modules:        auth.Resolve(sess).Modules(),
	}
}

// handleLogin performs the credential exchange.
//
// Responses:
//   - 200 with a session payload and bearer token on full resolution
//   - 200 with a choice payload when several properties are candidates and
//     none was requested (the UI re-invokes with a concrete property code)
//   - 401 with an inline message on any authentication failure
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.CustomerID == "" || req.Password == "" {
		writeBadRequest(w, "customer_id and password are required")
		return
	}

	result, err := s.exchange.Login(r.Context(), req)
	if err != nil {
		s.auditLog(r.Context(), audit.ActionLoginDenied, "session", req.CustomerID, nil, map[string]any{
			"reason": loginFailureMessage(err),
		})
		writeUnauthorized(w, loginFailureMessage(err))
		return
	}

	if result.ChooseProperty {
		// Intermediate state, not a login: nothing was written.
		writeJSON(w, http.StatusOK, map[string]any{
			"choose_property": true,
			"properties":      result.Properties,
			"user":            result.User,
		})
		return
	}

	sess := result.Session
	s.auditLog(r.Context(), audit.ActionLogin, "session", sess.Identity.CustomerID, sess, map[string]any{
		"active_property": sess.ActiveProperty,
		"role":            sess.Identity.Role,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   sess.Token,
		"session": newSessionView(sess),
	})
}

// loginFailureMessage maps exchange errors to user-displayable messages.
// Unknown accounts and wrong passwords share one message on purpose.
func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUserInactive):
		return "account is locked — contact your administrator"
	case errors.Is(err, auth.ErrNoPropertyAccess):
		return "no property access granted — contact your administrator"
	case errors.Is(err, auth.ErrPropertyNotGranted):
		return "no membership at the requested property"
	case errors.Is(err, auth.ErrPropertyRequired):
		return "property code required"
	default:
		return "invalid customer ID or password"
	}
}

// handleLogout destroys the current session. Both slots clear atomically;
// other open tabs discover the logout on their next guarded request.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("session clear failed", "error", err)
		writeInternalError(w, "failed to log out")
		return
	}

	s.auditLog(r.Context(), audit.ActionLogout, "session", sess.Identity.CustomerID, sess)
	w.WriteHeader(http.StatusNoContent)
}

// handleSession returns the current session with a freshly resolved module
// list.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

// switchPropertyRequest is the request body for POST /auth/property.
type switchPropertyRequest struct {
	PropertyCode string `json:"property_code"`
}

// handleSwitchProperty rebinds the session to another membership property.
// The rewritten session forces the next grant resolution to start from the
// new property; nothing from the previous property's decision survives.
func (s *Server) handleSwitchProperty(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	var req switchPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PropertyCode == "" {
		writeBadRequest(w, "property_code is required")
		return
	}

	updated, err := s.exchange.SwitchProperty(r.Context(), sess, req.PropertyCode)
	if err != nil {
		if errors.Is(err, auth.ErrPropertyNotGranted) {
			writeForbidden(w, "no membership at the requested property")
			return
		}
		s.logger.Error("property switch failed", "error", err)
		writeInternalError(w, "failed to switch property")
		return
	}

	s.auditLog(r.Context(), audit.ActionPropertySwitch, "session", updated.Identity.CustomerID, updated, map[string]any{
		"active_property": updated.ActiveProperty,
	})

	writeJSON(w, http.StatusOK, newSessionView(updated))
}

// changePasswordRequest is the request body for POST /auth/password.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword changes the current operator's password.
// Response shape is {ok:true} or {ok:false, message}.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.exchange.ChangePassword(r.Context(), sess.Identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":      false,
				"message": "current password is incorrect or the new password is too short",
			})
			return
		}
		s.logger.Error("password change failed", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	s.auditLog(r.Context(), audit.ActionPasswordChange, "user", sess.Identity.ID, sess)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
