package cmd

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/campusjobs/jobboard-auth/database"

	"github.com/joho/godotenv"
)

// openDatabaseFromEnv serves the maintenance commands, which only need
// MYSQL_DSN and must not require the rest of the server configuration.
func openDatabaseFromEnv(ctx context.Context) (*sql.DB, error) {
	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return database.Open(ctx, dsn)
}
