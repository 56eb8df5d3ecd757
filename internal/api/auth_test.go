package api

import (
	"net/http"
	"testing"

	"github.com/stayward/console-core/internal/auth"
)

func TestLogin_SingleProperty(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk, auth.ModuleHousekeeping}})

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"customer_id": "alice",
		"password":    "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token   string      `json:"token"`
		Session sessionView `json:"session"`
	}
	decode(t, rec, &resp)

	if resp.Token == "" {
		t.Error("response carried no token")
	}
	if resp.Session.ActiveProperty != "BEACH01" {
		t.Errorf("ActiveProperty = %q, want BEACH01", resp.Session.ActiveProperty)
	}
	if len(resp.Session.Modules) != 2 {
		t.Errorf("Modules = %v, want [frontdesk, housekeeping]", resp.Session.Modules)
	}
}

func TestLogin_MultiPropertyChoiceThenResolve(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "password123", auth.RoleManager,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleManager, Modules: []auth.ModuleID{auth.ModuleReport}},
		auth.MembershipGrant{PropertyCode: "CITY02", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModulePOS}})

	// First call: no property code, two candidates. The server answers with
	// a choice payload and writes nothing.
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"customer_id": "bob",
		"password":    "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var choice struct {
		ChooseProperty bool `json:"choose_property"`
		Properties     []struct {
			PropertyCode string `json:"property_code"`
			Role         string `json:"role"`
		} `json:"properties"`
		User struct {
			Name       string `json:"name"`
			CustomerID string `json:"customer_id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	decode(t, rec, &choice)

	if !choice.ChooseProperty {
		t.Fatal("expected a choice payload")
	}
	if len(choice.Properties) != 2 {
		t.Fatalf("Properties = %d entries, want 2", len(choice.Properties))
	}
	if choice.User.CustomerID != "bob" {
		t.Errorf("choice user = %q, want bob", choice.User.CustomerID)
	}
	if choice.Token != "" {
		t.Error("choice payload must not carry a token")
	}

	// A guarded request still bounces: no session was established.
	if rec := env.do(t, http.MethodGet, "/api/v1/modules", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("guarded request after choice prompt = %d, want 401", rec.Code)
	}

	// Second call with the chosen property completes the exchange.
	token := env.login(t, "bob", "password123", "CITY02")
	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d", rec.Code)
	}

	var view sessionView
	decode(t, rec, &view)
	if view.ActiveProperty != "CITY02" {
		t.Errorf("ActiveProperty = %q, want CITY02", view.ActiveProperty)
	}
	if len(view.Modules) != 1 || view.Modules[0] != auth.ModulePOS {
		t.Errorf("Modules = %v, want [pos]", view.Modules)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"customer_id": "alice",
		"password":    "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp Error
	decode(t, rec, &resp)
	if resp.Message != "invalid customer ID or password" {
		t.Errorf("message = %q", resp.Message)
	}

	// Unknown account yields the identical message.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"customer_id": "nobody",
		"password":    "password123",
	})
	var resp2 Error
	decode(t, rec, &resp2)
	if resp2.Message != resp.Message {
		t.Errorf("unknown-account message %q differs from wrong-password message %q", resp2.Message, resp.Message)
	}
}

func TestLogin_LockedAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	if _, err := env.db.Exec("UPDATE users SET is_active = 0 WHERE id = ?", user.ID); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"customer_id": "alice",
		"password":    "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp Error
	decode(t, rec, &resp)
	if resp.Message != "account is locked — contact your administrator" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"customer_id": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	token := env.login(t, "alice", "password123", "")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	// Both slots cleared: the old bearer no longer passes the guard.
	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("post-logout status = %d, want 401", rec.Code)
	}
}

func TestSwitchProperty(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}},
		auth.MembershipGrant{PropertyCode: "CITY02", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModulePOS}})

	token := env.login(t, "bob", "password123", "BEACH01")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/property", token, map[string]string{
		"property_code": "CITY02",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var view sessionView
	decode(t, rec, &view)
	if view.ActiveProperty != "CITY02" {
		t.Errorf("ActiveProperty = %q, want CITY02", view.ActiveProperty)
	}
	if len(view.Modules) != 1 || view.Modules[0] != auth.ModulePOS {
		t.Errorf("Modules = %v, want [pos]", view.Modules)
	}
}

func TestSwitchProperty_NotGranted(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	token := env.login(t, "alice", "password123", "")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/property", token, map[string]string{
		"property_code": "CITY02",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	token := env.login(t, "alice", "password123", "")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/password", token, map[string]string{
		"current_password": "password123",
		"new_password":     "newpassword456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK bool `json:"ok"`
	}
	decode(t, rec, &resp)
	if !resp.OK {
		t.Error("ok = false, want true")
	}

	// Wrong current password answers inline, not with an HTTP error.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/password", token, map[string]string{
		"current_password": "password123", // now stale
		"new_password":     "anotherpassword",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var fail struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	decode(t, rec, &fail)
	if fail.OK {
		t.Error("ok = true with a stale current password")
	}
	if fail.Message == "" {
		t.Error("failure response carried no message")
	}
}
