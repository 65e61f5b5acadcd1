package domain

import "context"

// Database defines lifecycle operations for the underlying store.
// Each implementation (SQLite, DynamoDB, Pebble) owns its own bootstrap
// strategy, ensuring the backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
