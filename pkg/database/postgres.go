package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"convo-relay/config"
	"convo-relay/pkg/logger"
)

const driverName = "pgx"

// CoreTables are created by the init migration, in dependency order.
var CoreTables = []string{"users", "convos", "convo_participants", "messages", "message_deliveries"}

func DSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return Open(ctx, DSN(cfg))
}

// Open opens a pgx-backed *sql.DB and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Connection pool settings
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := HealthCheck(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Database connection established")
	return db, nil
}

func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func migrationFiles(migrationsDir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func execFile(ctx context.Context, db *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", filepath.Base(path), err)
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ApplyRawMigrations executes every *.up.sql file in name order. The files
// are written to be idempotent.
func ApplyRawMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	names, err := migrationFiles(migrationsDir, ".up.sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		logger.Infof("Applying migration: %s", name)
		if err := execFile(ctx, db, filepath.Join(migrationsDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigrations executes every *.down.sql file in reverse name order.
func RollbackMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	names, err := migrationFiles(migrationsDir, ".down.sql")
	if err != nil {
		return err
	}
	for i := len(names) - 1; i >= 0; i-- {
		logger.Infof("Rolling back migration: %s", names[i])
		if err := execFile(ctx, db, filepath.Join(migrationsDir, names[i])); err != nil {
			return err
		}
	}
	return nil
}

func TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`, table).Scan(&exists)
	return exists, err
}

// TableCount counts rows in one of CoreTables.
func TableCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	if !isCoreTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func TruncateAllTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(CoreTables, ", ")+" CASCADE")
	return err
}

func isCoreTable(table string) bool {
	for _, t := range CoreTables {
		if t == table {
			return true
		}
	}
	return false
}
