package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/user"
	"convo-relay/pkg/logger"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	UserIDs         []string
	CreateDemoConvo bool
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		UserIDs:         []string{"alice", "bob", "carol"},
		CreateDemoConvo: true,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users []user.User
	Convo *conversation.Convo
}

// Seed inserts development users and, optionally, one convo joining all of
// them. Existing rows are left untouched.
func Seed(ctx context.Context, db *sql.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	logger.Infof("Starting database seeding...")
	result := &SeedResult{}

	for _, id := range cfg.UserIDs {
		u := user.User{
			ID:          id,
			DisplayName: id,
			Email:       sql.NullString{String: id + "@example.com", Valid: true},
			IsActive:    true,
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO users (id, display_name, email, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, u.ID, u.DisplayName, u.Email, u.IsActive); err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", id, err)
		}
		result.Users = append(result.Users, u)
	}

	if cfg.CreateDemoConvo && len(cfg.UserIDs) >= 2 {
		c, err := seedConvo(ctx, db, cfg.UserIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to seed convo: %w", err)
		}
		result.Convo = c
	}

	logger.Infof("Database seeding completed successfully!")
	return result, nil
}

func seedConvo(ctx context.Context, db *sql.DB, members []string) (*conversation.Convo, error) {
	now := time.Now().UTC()
	c := &conversation.Convo{
		ID:        uuid.NewString(),
		Title:     sql.NullString{String: "Welcome", Valid: true},
		IsGroup:   len(members) > 2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO convos (id, title, is_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Title, c.IsGroup, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, err
	}
	for i, uid := range members {
		role := conversation.RoleMember
		if i == 0 {
			role = conversation.RoleOwner
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO convo_participants (convo_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, c.ID, uid, role, now); err != nil {
			return nil, err
		}
	}
	return c, tx.Commit()
}
