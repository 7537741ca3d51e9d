package conversation

import (
	"database/sql"
	"time"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Convo represents the convos table
type Convo struct {
	ID        string
	LocalID   sql.NullString
	Title     sql.NullString
	IsGroup   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bump advances UpdatedAt to at, never moving it backwards.
func (c *Convo) Bump(at time.Time) {
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
}

// Participant represents the convo_participants table
type Participant struct {
	ConvoID    string
	UserID     string
	Role       string
	JoinedAt   time.Time
	LastReadAt sql.NullTime
}
