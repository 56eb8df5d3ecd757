package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the console schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'staff',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;

		CREATE TABLE memberships (
			user_id TEXT NOT NULL,
			property_code TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'staff',
			modules TEXT NOT NULL DEFAULT '[]',
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (user_id, property_code),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// mustCreateUser inserts an operator account or fails the test.
func mustCreateUser(t *testing.T, repo UserRepository, customerID, password string, role Role) *User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user := &User{
		CustomerID:   customerID,
		DisplayName:  customerID,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create(%s) error = %v", customerID, err)
	}
	return user
}

// mustSetMemberships replaces a user's memberships or fails the test.
func mustSetMemberships(t *testing.T, repo MembershipRepository, userID string, grants []MembershipGrant) {
	t.Helper()

	if err := repo.Set(context.Background(), userID, grants, ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

// staffSession builds a session bound to one property with the given grants.
func staffSession(property string, modules ...ModuleID) *Session {
	return &Session{
		Identity: Identity{
			ID:         "usr-test1",
			CustomerID: "staff01",
			Role:       RoleStaff,
		},
		Token: "test-token",
		Memberships: []Membership{
			{PropertyCode: property, Role: RoleStaff, Modules: modules},
		},
		ActiveProperty: property,
	}
}

// memoryWriter is a SessionWriter that records writes in memory.
type memoryWriter struct {
	sessions []*Session
}

func (w *memoryWriter) Write(_ context.Context, s *Session) error {
	w.sessions = append(w.sessions, s)
	return nil
}

func (w *memoryWriter) last() *Session {
	if len(w.sessions) == 0 {
		return nil
	}
	return w.sessions[len(w.sessions)-1]
}
