package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
	"github.com/stayward/console-core/internal/infrastructure/config"
	"github.com/stayward/console-core/internal/infrastructure/logging"
	"github.com/stayward/console-core/internal/session"
)

const testSecret = "test-secret-at-least-32-characters-long"

// testEnv wires a full server against a temporary database, mirroring the
// production composition in cmd/stayward.
type testEnv struct {
	server      *Server
	handler     http.Handler
	db          *sql.DB
	users       auth.UserRepository
	memberships auth.MembershipRepository
	store       *session.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
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

		CREATE TABLE session_slots (
			slot TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			user_id TEXT,
			source TEXT NOT NULL DEFAULT 'api',
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	logger := logging.Default()
	users := auth.NewUserRepository(db)
	memberships := auth.NewMembershipRepository(db)
	store := session.New(db, logger)
	exchange := auth.NewExchange(users, memberships, store, testSecret, 60, logger)

	server, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 8090},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 60},
		},
		Logger:      logger,
		Store:       store,
		Exchange:    exchange,
		Users:       users,
		Memberships: memberships,
		Audit:       audit.NewSQLiteRepository(db),
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{
		server:      server,
		handler:     server.buildRouter(),
		db:          db,
		users:       users,
		memberships: memberships,
		store:       store,
	}
}

// createUser inserts an operator account with the given memberships.
func (e *testEnv) createUser(t *testing.T, customerID, password string, role auth.Role, grants ...auth.MembershipGrant) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user := &auth.User{
		CustomerID:   customerID,
		DisplayName:  customerID,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create(%s) error = %v", customerID, err)
	}

	if len(grants) > 0 {
		if err := e.memberships.Set(context.Background(), user.ID, grants, ""); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	return user
}

// do issues a request against the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login performs the credential exchange and returns the bearer token.
func (e *testEnv) login(t *testing.T, customerID, password, propertyCode string) string {
	t.Helper()

	body := map[string]string{"customer_id": customerID, "password": password}
	if propertyCode != "" {
		body["property_code"] = propertyCode
	}

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login response carried no token")
	}
	return resp.Token
}

// decode unmarshals a recorder body or fails the test.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body = %s)", err, rec.Body.String())
	}
}
