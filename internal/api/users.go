package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
)

// minPasswordLength is the minimum length for operator passwords.
const minPasswordLength = 8

// handleListUsers returns all operator accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// createUserRequest is the request body for POST /users.
type createUserRequest struct {
	CustomerID  string    `json:"customer_id"`
	DisplayName string    `json:"display_name"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
	IsActive    *bool     `json:"is_active"`
}

// handleCreateUser creates a new operator account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidCustomerID(req.CustomerID) {
		writeBadRequest(w, "customer_id must be 1-64 characters (alphanumeric, dots, hyphens, underscores)")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleStaff
	}
	if !auth.IsValidRole(req.Role) {
		writeBadRequest(w, "invalid role")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.CustomerID
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	user := &auth.User{
		CustomerID:   req.CustomerID,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		CreatedBy:    sess.Identity.ID,
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrCustomerIDExists) {
			writeConflict(w, "customer ID already exists")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	s.auditLog(r.Context(), audit.ActionCreate, "user", user.ID, sess, map[string]any{
		"customer_id": user.CustomerID,
		"role":        user.Role,
	})

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns one operator account with its memberships.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to get user", "id", id, "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	memberships, err := s.memberships.ListByUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list memberships", "id", id, "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"memberships": memberships,
	})
}

// updateUserRequest is the request body for PATCH /users/{id}. All fields
// are optional; absent fields keep their current value.
type updateUserRequest struct {
	DisplayName *string    `json:"display_name"`
	Role        *auth.Role `json:"role"`
	IsActive    *bool      `json:"is_active"`
	Password    *string    `json:"password"`
}

// handleUpdateUser modifies an operator account. Operators cannot demote or
// deactivate themselves; that would strand the terminal with no way back in.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to get user", "id", id, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if id == sess.Identity.ID {
		if req.Role != nil && *req.Role != user.Role {
			writeForbidden(w, "cannot change your own role")
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			writeForbidden(w, "cannot deactivate your own account")
			return
		}
	}

	if req.Password != nil && len(*req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		if !auth.IsValidRole(*req.Role) {
			writeBadRequest(w, "invalid role")
			return
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		s.logger.Error("failed to update user", "id", id, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("failed to hash password", "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
		if err := s.users.UpdatePassword(r.Context(), id, hash); err != nil {
			s.logger.Error("failed to update password", "id", id, "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
	}

	s.auditLog(r.Context(), audit.ActionUpdate, "user", id, sess)
	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes an operator account and its memberships.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if id == sess.Identity.ID {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	if err := s.memberships.Clear(r.Context(), id); err != nil {
		s.logger.Error("failed to clear memberships", "id", id, "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to delete user", "id", id, "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.auditLog(r.Context(), audit.ActionDelete, "user", id, sess)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetMemberships returns a user's property memberships.
func (s *Server) handleGetMemberships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to get user", "id", id, "error", err)
		writeInternalError(w, "failed to get memberships")
		return
	}

	memberships, err := s.memberships.ListByUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list memberships", "id", id, "error", err)
		writeInternalError(w, "failed to get memberships")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memberships": memberships,
	})
}

// setMembershipsRequest is the request body for PUT /users/{id}/memberships.
// The grant list replaces all existing memberships in one transaction.
type setMembershipsRequest struct {
	Memberships []auth.MembershipGrant `json:"memberships"`
}

// handleSetMemberships replaces a user's property memberships. The change
// takes effect at the target user's next grant resolution; their current
// session keeps its membership snapshot until it is rewritten or cleared.
func (s *Server) handleSetMemberships(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req setMembershipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("failed to get user", "id", id, "error", err)
		writeInternalError(w, "failed to set memberships")
		return
	}

	seen := make(map[string]bool, len(req.Memberships))
	for _, g := range req.Memberships {
		if g.PropertyCode == "" {
			writeBadRequest(w, "property_code is required on every grant")
			return
		}
		if seen[g.PropertyCode] {
			writeBadRequest(w, "duplicate property_code: "+g.PropertyCode)
			return
		}
		seen[g.PropertyCode] = true
		if !auth.IsValidRole(g.Role) {
			writeBadRequest(w, "invalid role for property "+g.PropertyCode)
			return
		}
		for _, m := range g.Modules {
			if !auth.IsValidModule(m) {
				writeBadRequest(w, "unknown module: "+string(m))
				return
			}
		}
	}

	if err := s.memberships.Set(r.Context(), id, req.Memberships, sess.Identity.ID); err != nil {
		s.logger.Error("failed to set memberships", "id", id, "error", err)
		writeInternalError(w, "failed to set memberships")
		return
	}

	memberships, err := s.memberships.ListByUser(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list memberships", "id", id, "error", err)
		writeInternalError(w, "failed to set memberships")
		return
	}

	s.auditLog(r.Context(), audit.ActionUpdate, "memberships", id, sess, map[string]any{
		"properties": len(memberships),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"memberships": memberships,
	})
}
