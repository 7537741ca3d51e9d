package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"convo-relay/config"
	"convo-relay/internal/repository"
	"convo-relay/internal/services"
	"convo-relay/pkg/database"
	"convo-relay/pkg/logger"
)

const usage = `
Convo Relay - Database CLI Tool

Usage:
  migrate [flags] [command]

Commands:
  up          Apply all *.up.sql migrations
  down        Roll back all migrations
  status      Show database connection status and table sizes
  seed        Seed development users and a demo convo
  truncate    Truncate all tables (DANGEROUS)
  token       Print a development HS256 token for -user

Flags:
  -migrations string   Path to migrations directory (default from MIGRATIONS_DIR)
  -users string        Comma-separated user ids to seed (default "alice,bob,carol")
  -user string         Subject for the token command (default "alice")
  -ttl duration        Token lifetime (default 24h)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed
  go run ./cmd/migrate -user bob token
`

func main() {
	cfg := config.LoadConfig()

	migrationsDir := flag.String("migrations", cfg.MigrationsDir, "Path to migrations directory")
	users := flag.String("users", "alice,bob,carol", "Comma-separated user ids to seed")
	subject := flag.String("user", "alice", "Subject for the token command")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	logger.SetGlobalLogger(logger.New(cfg.LogMode))
	ctx := context.Background()
	command := flag.Arg(0)

	if command == "token" {
		runToken(cfg, *subject, *ttl)
		return
	}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		runMigrationsUp(ctx, db, *migrationsDir)
	case "down":
		runMigrationsDown(ctx, db, *migrationsDir)
	case "status":
		showStatus(ctx, db)
	case "seed":
		runSeed(ctx, db, *users)
	case "truncate":
		runTruncate(ctx, db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, db *sql.DB, migrationsDir string) {
	log.Println("🚀 Running migrations UP...")

	if err := database.ApplyRawMigrations(ctx, db, migrationsDir); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func runMigrationsDown(ctx context.Context, db *sql.DB, migrationsDir string) {
	log.Println("⬇️  Rolling back migrations...")

	if err := database.RollbackMigrations(ctx, db, migrationsDir); err != nil {
		log.Fatalf("❌ Rollback failed: %v", err)
	}

	log.Println("✅ Rollback completed successfully!")
}

func showStatus(ctx context.Context, db *sql.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range database.CoreTables {
		exists, err := database.TableExists(ctx, db, table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.TableCount(ctx, db, table)
			log.Printf("✅ Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-20s does not exist", table)
		}
	}
}

func runSeed(ctx context.Context, db *sql.DB, users string) {
	log.Println("🌱 Seeding database...")

	seedCfg := database.DefaultSeedConfig()
	if ids := splitIDs(users); len(ids) > 0 {
		seedCfg.UserIDs = ids
	}

	result, err := database.Seed(ctx, db, seedCfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Users: %d", len(result.Users))
	if result.Convo != nil {
		log.Printf("   - Demo convo: %s", result.Convo.ID)
	}
	log.Println("✅ Seeding completed!")
}

func runTruncate(ctx context.Context, db *sql.DB) {
	log.Println("⚠️  WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAllTables(ctx, db); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}

// runToken signs without a store; the subject is checked on connect.
func runToken(cfg *config.Config, subject string, ttl time.Duration) {
	auth, err := services.NewAuthService(repository.NewMemoryStore(), cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	token, err := auth.IssueToken(subject, ttl)
	if err != nil {
		log.Fatalf("❌ Token signing failed: %v", err)
	}
	fmt.Println(token)
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
