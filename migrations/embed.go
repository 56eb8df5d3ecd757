// Package migrations embeds SQL migration files into the binary so the
// console can migrate its database without the SQL files present on disk.
package migrations

import (
	"embed"

	"github.com/stayward/console-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // files are at root of embedded FS
}
