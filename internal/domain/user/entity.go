package user

import (
	"database/sql"
)

// User represents the users table. Rows are owned by the identity
// provider; the relay only reads them.
type User struct {
	ID          string
	DisplayName string
	Email       sql.NullString
	IsActive    bool
}

// Identity is the verified caller attached to a connection or request.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}
