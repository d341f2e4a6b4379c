// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"database/sql"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/cmd/httpserver"
	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/internal/enveloperepo"
	"github.com/go-petr/pet-budget/internal/middleware"
	"github.com/go-petr/pet-budget/pkg/cachepkg"
	"github.com/go-petr/pet-budget/pkg/configpkg"
	"github.com/go-petr/pet-budget/pkg/dbpkg"
)

// LoadConfig loads the application config from dir and points it at Postgres.
func LoadConfig(t *testing.T, dir string) configpkg.Config {
	t.Helper()

	config, err := configpkg.Load(dir)
	if err != nil {
		t.Fatalf("configpkg.Load(%q) returned error: %v", dir, err)
	}

	config.StoreBackend = configpkg.BackendPostgres

	return config
}

// SetupServer returns a Postgres backed test server that cleans up database after each integration test.
func SetupServer(t *testing.T, configDir string) (*httpserver.Server, *sql.DB) {
	t.Helper()

	config := LoadConfig(t, configDir)

	zerolog.SetGlobalLevel(zerolog.FatalLevel)

	logger := middleware.CreateLogger(config)

	db := SetupDB(t, config.DBDriver, config.DBSource)

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(enveloperepo.NewRepoPGS(db), cachepkg.NopCache[domain.Envelope]{}, logger, config)
	if err != nil {
		t.Fatalf(`httpserver.New() returned error: %v`, err)
	}

	return server, db
}

// Flush flushes all db tables except the migration bookkeeping without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables sql.NullString

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables
	WHERE table_schema='public' AND table_name <> 'schema_migrations';`

	if err := db.QueryRow(query).Scan(&tables); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	if !tables.Valid {
		return
	}

	if _, err := db.Exec(`TRUNCATE TABLE ` + tables.String + " RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB migrates the database, connects to it for testing and cleans it once the test is done.
func SetupDB(t *testing.T, driver, source string) *sql.DB {
	t.Helper()

	if err := dbpkg.Migrate(driver, source); err != nil {
		t.Fatalf("db migration failed. err: %v", err)
	}

	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	Flush(t, db)

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T, driver, source string) *sql.Tx {
	t.Helper()

	if err := dbpkg.Migrate(driver, source); err != nil {
		t.Fatalf("db migration failed. err: %v", err)
	}

	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() failed: %v", err)
		}
	})

	return tx
}
