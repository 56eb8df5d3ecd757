package auth

import (
	"errors"
	"regexp"
	"time"
)

// customerIDPattern defines the valid format for customer IDs:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var customerIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxCustomerIDLength is the maximum allowed customer ID length.
const maxCustomerIDLength = 64

// IsValidCustomerID checks if a login identifier meets format requirements.
func IsValidCustomerID(customerID string) bool {
	return len(customerID) <= maxCustomerIDLength && customerIDPattern.MatchString(customerID)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleStaff is an ordinary operator: access only through explicit
	// per-property module grants.
	RoleStaff Role = "staff"

	// RoleManager is a property manager. Same grant mechanics as staff;
	// the tier exists for reporting and administration semantics, not for
	// implicit module access.
	RoleManager Role = "manager"

	// RoleAdmin is a property administrator. Still subject to membership
	// grant lists; admin does not imply back-office access.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin is the distinguished franchise-level role. Bypasses
	// membership lookups entirely and is the only role that may open the
	// back-office module.
	RoleSuperAdmin Role = "superadmin"
)

// ValidRoles is the set of roles a user account may hold.
var ValidRoles = []Role{RoleStaff, RoleManager, RoleAdmin, RoleSuperAdmin}

// IsValidRole returns true if the role is a valid account role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents a stored operator account.
type User struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the session-facing view of an authenticated principal.
// It carries no credential material and is immutable for the lifetime of
// a session.
type Identity struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Identity returns the session-facing view of the account.
func (u *User) Identity() Identity {
	return Identity{
		ID:          u.ID,
		CustomerID:  u.CustomerID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}
}

// IsSuperAdmin reports whether this identity holds the distinguished role.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// Membership describes what an identity may do at one hotel property:
// a (property, role, module grant list) tuple.
type Membership struct {
	PropertyCode string     `json:"property_code"`
	Role         Role       `json:"role"`
	Modules      []ModuleID `json:"modules"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Session is the live runtime binding of an identity, its bearer token, the
// full membership list, and exactly one active property.
//
// The token is deliberately excluded from JSON serialisation: the session
// store persists it in its own slot, never inside the session record.
type Session struct {
	Identity       Identity     `json:"identity"`
	Token          string       `json:"-"`
	Memberships    []Membership `json:"memberships"`
	ActiveProperty string       `json:"active_property"`
	CreatedAt      time.Time    `json:"created_at"`
}

// MembershipFor returns the membership matching the given property code,
// or nil if the identity holds none there.
func (s *Session) MembershipFor(propertyCode string) *Membership {
	for i := range s.Memberships {
		if s.Memberships[i].PropertyCode == propertyCode {
			return &s.Memberships[i]
		}
	}
	return nil
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrCustomerIDExists   = errors.New("customer ID already exists")
	ErrNoPropertyAccess   = errors.New("no property access granted")
	ErrPropertyNotGranted = errors.New("no membership at requested property")
	ErrPropertyRequired   = errors.New("property code required")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")
)
