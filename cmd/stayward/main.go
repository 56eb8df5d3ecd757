// Stayward Console Core
//
// This is the main entry point for the Stayward console core: the per-terminal
// service that owns credential exchange, the durable operator session, module
// grant resolution, and the route guard in front of every hotel console screen.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/stayward/console-core/migrations"

	"github.com/stayward/console-core/internal/api"
	"github.com/stayward/console-core/internal/audit"
	"github.com/stayward/console-core/internal/auth"
	"github.com/stayward/console-core/internal/infrastructure/config"
	"github.com/stayward/console-core/internal/infrastructure/database"
	"github.com/stayward/console-core/internal/infrastructure/logging"
	"github.com/stayward/console-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Stayward console core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	membershipRepo := auth.NewMembershipRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// First boot: create the initial superadmin account if no users exist.
	// The generated password is logged once and must be changed immediately.
	if _, seedErr := auth.SeedSuperAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding superadmin: %w", seedErr)
	}

	// Session store: the terminal's single durable session
	store := session.New(db.DB, log.With("component", "session"))

	// Credential exchange
	exchange := auth.NewExchange(
		userRepo,
		membershipRepo,
		store,
		cfg.Security.JWT.Secret,
		cfg.Security.JWT.AccessTokenTTL,
		log.With("component", "auth"),
	)

	// API server: route guard, module navigator, administration
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Security:    cfg.Security,
		Logger:      log.With("component", "api"),
		Store:       store,
		Exchange:    exchange,
		Users:       userRepo,
		Memberships: membershipRepo,
		Audit:       auditRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify everything came up healthy
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"console_id", cfg.Console.ID,
		"console_name", cfg.Console.Name,
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (graceful drain)
	// 2. Database

	log.Info("Stayward console core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STAYWARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STAYWARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure is healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
