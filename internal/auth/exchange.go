package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/stayward/console-core/internal/infrastructure/logging"
)

// SessionWriter is the slice of the session store the exchange needs.
// Defined here so the auth package does not depend on the store's
// implementation package.
type SessionWriter interface {
	Write(ctx context.Context, s *Session) error
}

// Exchange performs credential exchange: it authenticates raw login input
// against the user store and either writes a fully formed session or
// returns a multi-property choice prompt.
//
// Each call is idempotent and performs no internal retries; retrying is a
// caller concern.
type Exchange struct {
	users       UserRepository
	memberships MembershipRepository
	store       SessionWriter
	secret      string
	ttlMinutes  int
	logger      *logging.Logger
}

// NewExchange creates a credential exchange service.
func NewExchange(users UserRepository, memberships MembershipRepository, store SessionWriter, secret string, ttlMinutes int, logger *logging.Logger) *Exchange {
	return &Exchange{
		users:       users,
		memberships: memberships,
		store:       store,
		secret:      secret,
		ttlMinutes:  ttlMinutes,
		logger:      logger,
	}
}

// LoginRequest is the raw login input. PropertyCode is optional when the
// identity holds exactly one membership.
type LoginRequest struct {
	PropertyCode string `json:"property_code,omitempty"`
	CustomerID   string `json:"customer_id"`
	Password     string `json:"password"`
}

// PropertyChoice is one candidate property in the choice payload.
type PropertyChoice struct {
	PropertyCode string `json:"property_code"`
	Role         Role   `json:"role"`
}

// ChoiceUser is the minimal identity echoed with a choice payload.
type ChoiceUser struct {
	Name       string `json:"name"`
	CustomerID string `json:"customer_id"`
}

// LoginResult is the outcome of a successful exchange call: either a
// resolved session (written to the store) or a choice payload (nothing
// written; the caller must re-invoke with a concrete property code).
type LoginResult struct {
	ChooseProperty bool             `json:"choose_property,omitempty"`
	Properties     []PropertyChoice `json:"properties,omitempty"`
	User           *ChoiceUser      `json:"user,omitempty"`
	Session        *Session         `json:"session,omitempty"`
}

// Login authenticates the request and resolves the active property.
//
// Outcomes:
//   - resolved session: written to the store as a side effect, returned.
//   - choice payload: multiple candidate properties and no disambiguating
//     property code; no store write occurs.
//   - error: ErrInvalidCredentials, ErrUserInactive, ErrNoPropertyAccess,
//     ErrPropertyNotGranted, or ErrPropertyRequired. No partial session is
//     ever written on any error path.
//
// If ctx is cancelled while the call is in flight, the result is discarded
// before the store write; a login the user navigated away from never
// produces a session.
func (e *Exchange) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := e.authenticate(ctx, req.CustomerID, req.Password)
	if err != nil {
		return nil, err
	}

	memberships, err := e.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading memberships: %w", err)
	}

	activeProperty, choice, err := resolveActiveProperty(user, memberships, req.PropertyCode)
	if err != nil {
		return nil, err
	}
	if choice != nil {
		// Legitimate intermediate state, not a failure: the caller re-invokes
		// with a concrete property code. Nothing is written.
		return choice, nil
	}

	token, err := GenerateAccessToken(user.Identity(), activeProperty, e.secret, e.ttlMinutes)
	if err != nil {
		return nil, fmt.Errorf("minting bearer token: %w", err)
	}

	sess := &Session{
		Identity:       user.Identity(),
		Token:          token,
		Memberships:    memberships,
		ActiveProperty: activeProperty,
		CreatedAt:      time.Now().UTC(),
	}

	// The caller may have gone away while we were hashing and querying.
	// Never write a session nobody is waiting for.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("login abandoned: %w", err)
	}

	if err := e.store.Write(ctx, sess); err != nil {
		return nil, fmt.Errorf("writing session: %w", err)
	}

	e.logger.Info("session established",
		"customer_id", user.CustomerID,
		"role", user.Role,
		"active_property", activeProperty,
	)

	return &LoginResult{Session: sess}, nil
}

// authenticate verifies the credential pair and account state.
// Unknown accounts and wrong passwords are indistinguishable to the caller.
func (e *Exchange) authenticate(ctx context.Context, customerID, password string) (*User, error) {
	user, err := e.users.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// resolveActiveProperty applies the property selection rules.
//
// An explicit property code must match a membership, except for a
// superadmin, whose active property is unconstrained. Without a code:
// exactly one membership resolves to it, several produce the choice
// payload, and none fails (superadmins are asked for an explicit code,
// everyone else simply has no property access).
func resolveActiveProperty(user *User, memberships []Membership, requested string) (string, *LoginResult, error) {
	if requested != "" {
		if user.Role == RoleSuperAdmin {
			return requested, nil, nil
		}
		for _, m := range memberships {
			if m.PropertyCode == requested {
				return requested, nil, nil
			}
		}
		return "", nil, ErrPropertyNotGranted
	}

	switch len(memberships) {
	case 0:
		if user.Role == RoleSuperAdmin {
			return "", nil, ErrPropertyRequired
		}
		return "", nil, ErrNoPropertyAccess
	case 1:
		return memberships[0].PropertyCode, nil, nil
	default:
		choices := make([]PropertyChoice, 0, len(memberships))
		for _, m := range memberships {
			choices = append(choices, PropertyChoice{PropertyCode: m.PropertyCode, Role: m.Role})
		}
		return "", &LoginResult{
			ChooseProperty: true,
			Properties:     choices,
			User:           &ChoiceUser{Name: user.DisplayName, CustomerID: user.CustomerID},
		}, nil
	}
}

// SwitchProperty rebinds an established session to another of its
// properties and writes the updated session, which forces every subsequent
// grant decision to re-resolve. Superadmins may switch to any property.
func (e *Exchange) SwitchProperty(ctx context.Context, sess *Session, propertyCode string) (*Session, error) {
	if sess == nil {
		return nil, ErrInvalidCredentials
	}
	if propertyCode == "" {
		return nil, ErrPropertyRequired
	}

	if !sess.Identity.IsSuperAdmin() && sess.MembershipFor(propertyCode) == nil {
		return nil, ErrPropertyNotGranted
	}

	updated := *sess
	updated.ActiveProperty = propertyCode

	if err := e.store.Write(ctx, &updated); err != nil {
		return nil, fmt.Errorf("writing session: %w", err)
	}

	e.logger.Info("active property switched",
		"customer_id", updated.Identity.CustomerID,
		"active_property", propertyCode,
	)

	return &updated, nil
}

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// ChangePassword verifies the current password and replaces it.
func (e *Exchange) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLength)
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := e.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	e.logger.Info("password changed", "customer_id", user.CustomerID)
	return nil
}
