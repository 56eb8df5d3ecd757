// Package session holds the terminal's one durable operator session.
//
// The store is a single logical slot: a write fully replaces whatever was
// there, reads are side-effect-free and fail closed, and clear removes the
// session record and bearer token atomically. Persistence uses two named
// slots in SQLite so the session survives UI reloads and process restarts.
//
// The store is injected into its consumers (route guard, navigator
// handlers, credential exchange) rather than living as ambient global
// state, so each can be tested in isolation.
package session
