// Command migrate manages the simulator's Postgres schema (the persisted
// state layout: simulation runs and events, experiments, iterations,
// policy evaluations). The database URL comes from DATABASE_URL; the
// migrations directory defaults to ./migrations and can be overridden
// with MIGRATIONS_PATH.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"rtgssim/pkg/logger"
)

func main() {
	log := logger.New("rtgssim-migrate")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required", nil)
	}
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate [up|down|version|force VERSION]", nil)
	}
	command := os.Args[1]

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatal("connecting to database", map[string]interface{}{"error": err})
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("creating migration driver", map[string]interface{}{"error": err})
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		log.Fatal("creating migrate instance", map[string]interface{}{"error": err, "path": migrationsPath})
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal("migration failed", map[string]interface{}{"error": err})
		}
		log.Info("migrations applied", nil)

	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatal("migration rollback failed", map[string]interface{}{"error": err})
		}
		log.Info("migrations rolled back", nil)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("reading schema version", map[string]interface{}{"error": err})
		}
		log.Info("schema version", map[string]interface{}{"version": version, "dirty": dirty})

	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate force VERSION", nil)
		}
		var version int
		if _, err := fmt.Sscanf(os.Args[2], "%d", &version); err != nil {
			log.Fatal("parsing version", map[string]interface{}{"error": err, "arg": os.Args[2]})
		}
		if err := m.Force(version); err != nil {
			log.Fatal("forcing schema version", map[string]interface{}{"error": err})
		}
		log.Info("schema version forced", map[string]interface{}{"version": version})

	default:
		log.Fatal("unknown command", map[string]interface{}{"command": command})
	}
}
