package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/stayward/console-core/internal/auth"
	"github.com/stayward/console-core/internal/infrastructure/logging"
)

// Slot names in the session_slots table. The session record and the bearer
// token are persisted separately, but always written and cleared together
// in one transaction.
const (
	slotSession = "session"
	slotToken   = "token"
)

// Store is the durable holder of the terminal's current session.
//
// Writes are serialised by a mutex; the login and logout flows are the only
// writers and last write wins. Reads never mutate state.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
	mu     sync.Mutex
}

// New creates a session store on the given database.
func New(db *sql.DB, logger *logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Write persists the session, fully replacing any prior one. The session
// record and bearer token land in one transaction, so an observer never sees
// one slot updated without the other.
//
// Sessions that would fail the read-side validation are rejected up front;
// a partial or malformed session is never persisted.
func (s *Store) Write(ctx context.Context, sess *auth.Session) error {
	if err := validateSession(sess); err != nil {
		return fmt.Errorf("refusing to store session: %w", err)
	}

	record, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	for slot, value := range map[string]string{
		slotSession: string(record),
		slotToken:   sess.Token,
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_slots (slot, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
			 ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			slot, value); err != nil {
			return fmt.Errorf("writing slot %s: %w", slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session write: %w", err)
	}
	return nil
}

// Read returns the current session, or nil if none exists.
//
// Read is side-effect-free and safe to call on every request. It fails
// closed: a missing slot, malformed JSON, or a record that no longer
// satisfies the session invariants all yield nil: never an error, never
// partial data. The user experiences corruption as nothing worse than an
// unexpected logout.
func (s *Store) Read(ctx context.Context) *auth.Session {
	record, ok := s.readSlot(ctx, slotSession)
	if !ok {
		return nil
	}
	token, ok := s.readSlot(ctx, slotToken)
	if !ok || token == "" {
		return nil
	}

	var sess auth.Session
	if err := json.Unmarshal([]byte(record), &sess); err != nil {
		s.logger.Warn("discarding malformed session record", "error", err)
		return nil
	}
	sess.Token = token

	if err := validateSession(&sess); err != nil {
		s.logger.Warn("discarding invalid session record", "reason", err)
		return nil
	}

	return &sess
}

// Clear removes the session record and bearer token in one transaction.
// Clearing an already-empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM session_slots WHERE slot IN (?, ?)", slotSession, slotToken); err != nil {
		return fmt.Errorf("clearing session slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session clear: %w", err)
	}
	return nil
}

// readSlot fetches one slot value. Absence and query failure both read as
// "no value"; the caller treats either as no session.
func (s *Store) readSlot(ctx context.Context, slot string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session_slots WHERE slot = ?", slot).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("session slot read failed", "slot", slot, "error", err)
		}
		return "", false
	}
	return value, true
}

// validateSession enforces the session invariants at the storage boundary,
// so downstream consumers (grant resolver, route guard) never have to guess
// at malformed shapes:
//
//   - the identity must be populated with a known role
//   - there is exactly one non-empty active property
//   - for non-superadmins, the active property must correspond to one of
//     the identity's memberships
func validateSession(sess *auth.Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if sess.Identity.ID == "" || sess.Identity.CustomerID == "" {
		return errors.New("missing identity")
	}
	if !auth.IsValidRole(sess.Identity.Role) {
		return fmt.Errorf("unknown role %q", sess.Identity.Role)
	}
	if sess.ActiveProperty == "" {
		return errors.New("missing active property")
	}
	if !sess.Identity.IsSuperAdmin() && sess.MembershipFor(sess.ActiveProperty) == nil {
		return fmt.Errorf("active property %q has no membership", sess.ActiveProperty)
	}
	for _, m := range sess.Memberships {
		if m.PropertyCode == "" {
			return errors.New("membership with empty property code")
		}
	}
	return nil
}
