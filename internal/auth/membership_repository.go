package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MembershipRepository defines the interface for property membership
// persistence.
type MembershipRepository interface {
	Set(ctx context.Context, userID string, grants []MembershipGrant, createdBy string) error
	ListByUser(ctx context.Context, userID string) ([]Membership, error)
	Get(ctx context.Context, userID, propertyCode string) (*Membership, error)
	Clear(ctx context.Context, userID string) error
}

// MembershipGrant is the input for setting memberships (used by API handlers).
type MembershipGrant struct {
	PropertyCode string     `json:"property_code"`
	Role         Role       `json:"role"`
	Modules      []ModuleID `json:"modules"`
}

// SQLiteMembershipRepository implements MembershipRepository using SQLite.
type SQLiteMembershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new SQLite-backed membership repository.
func NewMembershipRepository(db *sql.DB) *SQLiteMembershipRepository {
	return &SQLiteMembershipRepository{db: db}
}

// Set replaces all memberships for a user. Pass an empty slice to revoke
// every property (the user can no longer complete a login).
func (r *SQLiteMembershipRepository) Set(ctx context.Context, userID string, grants []MembershipGrant, createdBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM memberships WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing memberships: %w", err)
	}

	for _, g := range grants {
		modulesJSON, err := json.Marshal(g.Modules)
		if err != nil {
			return fmt.Errorf("encoding modules for %s: %w", g.PropertyCode, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memberships (user_id, property_code, role, modules, created_by) VALUES (?, ?, ?, ?, ?)",
			userID, g.PropertyCode, string(g.Role), string(modulesJSON), nullString(createdBy)); err != nil {
			return fmt.Errorf("granting property %s: %w", g.PropertyCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing memberships: %w", err)
	}
	return nil
}

// ListByUser returns all memberships for a user ordered by property code.
func (r *SQLiteMembershipRepository) ListByUser(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT property_code, role, modules, created_by, created_at
		 FROM memberships WHERE user_id = ? ORDER BY property_code`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memberships: %w", err)
	}

	if memberships == nil {
		memberships = []Membership{}
	}
	return memberships, nil
}

// Get returns the membership at one property, or ErrPropertyNotGranted.
func (r *SQLiteMembershipRepository) Get(ctx context.Context, userID, propertyCode string) (*Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT property_code, role, modules, created_by, created_at
		 FROM memberships WHERE user_id = ? AND property_code = ?`, userID, propertyCode)

	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotGranted
		}
		return nil, err
	}
	return m, nil
}

// Clear removes all memberships for a user.
func (r *SQLiteMembershipRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM memberships WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing memberships: %w", err)
	}
	return nil
}

// scanMembership scans a membership row, decoding the module grant list.
// Unknown module ids in the stored list are kept as-is here; normalisation
// against the catalog happens in the grant resolver and the session store
// boundary, not in the repository.
func scanMembership(s scanner) (*Membership, error) {
	var m Membership
	var role, modulesJSON string
	var createdBy sql.NullString
	var createdAt string

	if err := s.Scan(&m.PropertyCode, &role, &modulesJSON, &createdBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scanning membership: %w", err)
	}

	m.Role = Role(role)
	if err := json.Unmarshal([]byte(modulesJSON), &m.Modules); err != nil {
		return nil, fmt.Errorf("decoding modules for %s: %w", m.PropertyCode, err)
	}
	if m.Modules == nil {
		m.Modules = []ModuleID{}
	}
	if createdBy.Valid {
		m.CreatedBy = createdBy.String
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &m, nil
}
