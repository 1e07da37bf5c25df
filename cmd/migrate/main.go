package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const migrationsPath = "file://scripts/migrations"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		dbHost  = flag.String("db-host", "localhost", "database host, ignored if DATABASE_URL is set")
		dbPort  = flag.Int("db-port", 5432, "database port, ignored if DATABASE_URL is set")
		dbUser  = flag.String("db-user", "admin", "database user, ignored if DATABASE_URL is set")
		dbPass  = flag.String("db-pass", "securepassword", "database password, ignored if DATABASE_URL is set")
		dbName  = flag.String("db-name", "x402_gateway", "database name, ignored if DATABASE_URL is set")
		command = flag.String("command", "up", "migration command: up, down, force")
		version = flag.Int("version", 1, "target schema_migrations version for -command=force")
	)
	flag.Parse()

	dsn := resolveDSN(*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: failed to open database connection")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("migrate: database unreachable")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: failed to build postgres driver")
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate: failed to construct migrator")
	}

	runCommand(m, *command, *version)
}

// resolveDSN prefers DATABASE_URL, matching the same env var internal/config
// reads for the proxy server, so both entrypoints point at the same database
// without duplicating connection settings. The discrete -db-* flags remain
// for local development against a non-default Postgres instance.
func resolveDSN(host string, port int, user, pass, name string) string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, pass, name)
}

func runCommand(m *migrate.Migrate, command string, forceVersion int) {
	switch command {
	case "up":
		log.Info().Msg("migrate: applying migrations")
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal().Err(err).Msg("migrate: up failed")
		}
		log.Info().Msg("migrate: up complete")
	case "down":
		log.Info().Msg("migrate: reverting migrations")
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatal().Err(err).Msg("migrate: down failed")
		}
		log.Info().Msg("migrate: down complete")
	case "force":
		log.Info().Int("version", forceVersion).Msg("migrate: forcing schema_migrations version")
		if err := m.Force(forceVersion); err != nil {
			log.Fatal().Err(err).Msg("migrate: force failed")
		}
		log.Info().Msg("migrate: force complete")
	default:
		log.Fatal().Str("command", command).Msg("migrate: unknown command")
	}
}
