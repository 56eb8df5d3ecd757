package api

import (
	"net/http"
	"testing"

	"github.com/stayward/console-core/internal/auth"
)

// superAdminToken seeds a superadmin and logs it in.
func superAdminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	env.createUser(t, "root", "password123", auth.RoleSuperAdmin)
	return env.login(t, "root", "password123", "HQ")
}

func TestUsers_RequireBackOffice(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	token := env.login(t, "alice", "password123", "")

	rec := env.do(t, http.MethodGet, "/api/v1/users/", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("staff user admin status = %d, want 403", rec.Code)
	}
}

func TestUsers_CreateListGet(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/users/", token, map[string]any{
		"customer_id":  "frontdesk1",
		"display_name": "Front Desk 1",
		"password":     "password123",
		"role":         "staff",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created auth.User
	decode(t, rec, &created)
	if created.ID == "" {
		t.Fatal("created user has no ID")
	}
	if created.CustomerID != "frontdesk1" {
		t.Errorf("CustomerID = %q", created.CustomerID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Users []auth.User `json:"users"`
		Count int         `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 2 { // root + frontdesk1
		t.Errorf("count = %d, want 2", list.Count)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestUsers_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)

	cases := []map[string]any{
		{"customer_id": "", "password": "password123"},
		{"customer_id": "has space", "password": "password123"},
		{"customer_id": "ok", "password": "short"},
		{"customer_id": "ok", "password": "password123", "role": "janitor"},
	}
	for i, body := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/users/", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, rec.Code)
		}
	}
}

func TestUsers_DuplicateCustomerID(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)

	body := map[string]any{"customer_id": "dup", "password": "password123"}
	if rec := env.do(t, http.MethodPost, "/api/v1/users/", token, body); rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/users/", token, body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}
}

func TestUsers_Update(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)
	target := env.createUser(t, "alice", "password123", auth.RoleStaff)

	rec := env.do(t, http.MethodPatch, "/api/v1/users/"+target.ID, token, map[string]any{
		"display_name": "Alice Smith",
		"role":         "manager",
		"is_active":    false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var updated auth.User
	decode(t, rec, &updated)
	if updated.DisplayName != "Alice Smith" || updated.Role != auth.RoleManager || updated.IsActive {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUsers_SelfDemotionBlocked(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)

	var rootID string
	if err := env.db.QueryRow("SELECT id FROM users WHERE customer_id = 'root'").Scan(&rootID); err != nil {
		t.Fatalf("looking up root: %v", err)
	}

	rec := env.do(t, http.MethodPatch, "/api/v1/users/"+rootID, token, map[string]any{"role": "staff"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("self-demotion status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/users/"+rootID, token, map[string]any{"is_active": false})
	if rec.Code != http.StatusForbidden {
		t.Errorf("self-deactivation status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/users/"+rootID, token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("self-deletion status = %d, want 403", rec.Code)
	}
}

func TestUsers_Delete(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)
	target := env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	rec := env.do(t, http.MethodDelete, "/api/v1/users/"+target.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+target.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestUsers_SetMemberships(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)
	target := env.createUser(t, "alice", "password123", auth.RoleStaff)

	rec := env.do(t, http.MethodPut, "/api/v1/users/"+target.ID+"/memberships", token, map[string]any{
		"memberships": []map[string]any{
			{"property_code": "BEACH01", "role": "staff", "modules": []string{"frontdesk", "housekeeping"}},
			{"property_code": "CITY02", "role": "manager", "modules": []string{"report"}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Memberships []auth.Membership `json:"memberships"`
	}
	decode(t, rec, &resp)
	if len(resp.Memberships) != 2 {
		t.Fatalf("memberships = %d, want 2", len(resp.Memberships))
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/"+target.ID+"/memberships", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestUsers_SetMembershipsValidation(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)
	target := env.createUser(t, "alice", "password123", auth.RoleStaff)

	cases := []map[string]any{
		{"memberships": []map[string]any{{"property_code": "", "role": "staff"}}},
		{"memberships": []map[string]any{{"property_code": "BEACH01", "role": "janitor"}}},
		{"memberships": []map[string]any{{"property_code": "BEACH01", "role": "staff", "modules": []string{"spa"}}}},
		{"memberships": []map[string]any{
			{"property_code": "BEACH01", "role": "staff"},
			{"property_code": "BEACH01", "role": "manager"},
		}},
	}
	for i, body := range cases {
		rec := env.do(t, http.MethodPut, "/api/v1/users/"+target.ID+"/memberships", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, rec.Code)
		}
	}
}

func TestAuditTrail_RequiresReportModule(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "password123", auth.RoleStaff,
		auth.MembershipGrant{PropertyCode: "BEACH01", Role: auth.RoleStaff, Modules: []auth.ModuleID{auth.ModuleFrontDesk}})

	token := env.login(t, "alice", "password123", "")
	if rec := env.do(t, http.MethodGet, "/api/v1/audit/", token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("status without report grant = %d, want 403", rec.Code)
	}
}

func TestAuditTrail_RecordsLogins(t *testing.T) {
	env := newTestEnv(t)
	token := superAdminToken(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/audit/?action=login", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Entries []struct {
			Action   string `json:"action"`
			EntityID string `json:"entity_id"`
		} `json:"entries"`
		Total int `json:"total"`
	}
	decode(t, rec, &resp)
	if resp.Total < 1 {
		t.Fatal("login left no audit trail")
	}
	if resp.Entries[0].Action != "login" {
		t.Errorf("action = %q, want login", resp.Entries[0].Action)
	}
}
