// Package database manages the SQLite connection and schema migrations for
// the Stayward console core.
//
// The store holds user accounts, property memberships, the terminal's
// session slots, and the audit trail. Migrations are embedded into the
// binary by the top-level migrations package and applied on startup.
package database
