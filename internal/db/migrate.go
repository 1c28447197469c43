package db

import (
	"errors"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"

	"github.com/golang-migrate/migrate/v4"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Migrate applies all pending schema migrations. A missing migrations
// directory is a deployment error, an already current schema is not.
func Migrate() error {
	dir := util.GetEnvString("MIGRATIONS_DIR", "migrations")
	databaseURL := util.GetEnv("DATABASE_URL")

	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("[DB] Schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("[DB] Schema migrated", "version", version, "dirty", dirty)
	return nil
}
