package services

// Connection is one live duplex connection of a user.
type Connection interface {
	ID() string
	UserID() string
	Send(frame []byte) error
	Close() error
}

// Registry tracks the live connections of every user in this process.
type Registry interface {
	// Register reports whether c is the user's first live connection.
	Register(userID string, c Connection) bool
	// Unregister removes exactly c and reports whether it was the user's
	// last one. Removing an unknown connection is a no-op returning false.
	Unregister(userID string, c Connection) bool
	// ConnectionsFor returns a snapshot safe to iterate without locks.
	ConnectionsFor(userID string) []Connection
}
