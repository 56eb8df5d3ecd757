// Package logging provides structured logging for the Stayward console core.
//
// It is a thin wrapper over log/slog that applies the configured format and
// level and stamps every record with the service name and version.
package logging
