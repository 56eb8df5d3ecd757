// Package config loads and validates the Stayward console configuration.
//
// Configuration comes from three layers, later layers winning:
// compiled-in defaults, a YAML file, and STAYWARD_* environment variables.
// Validation refuses to start without a strong JWT secret, since the bearer
// token is what the route guard trusts.
package config
