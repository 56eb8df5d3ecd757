// Package auth provides authentication and module-access resolution for the
// Stayward console core.
//
// It implements:
//   - Argon2id password hashing with PHC-encoded hashes
//   - JWT bearer tokens carrying role and active-property claims
//   - Per-property memberships with explicit module grant lists
//   - A single grant-resolution function used by both rendering and
//     navigation authorisation, so the two can never diverge
//
// Access follows a "zero access by default, grant explicitly" model: a user
// whose active property has no membership sees nothing. The back-office
// module is additionally hard-gated to the superadmin role: a membership
// grant list naming it is ignored for everyone else.
package auth
