package domain

import "context"

// DefaultDeliveryStatus is assigned to every record at signup.
const DefaultDeliveryStatus = "Pending"

// UserRecord is the single persisted ledger record for a user: account
// metadata plus the two parallel location lists that together form the
// user's orders.
type UserRecord struct {
	Username        string
	Email           string
	PasswordHash    string
	PickupLocations []string
	DropLocations   []string
	DeliveryStatus  string
	// Version is bumped by every order mutation and guards conditional writes.
	Version int64
}

// OrderCount is the number of complete pickup/drop pairs in the record.
func (u *UserRecord) OrderCount() int {
	return min(len(u.PickupLocations), len(u.DropLocations))
}

// LedgerRepository persists user records keyed by username.
type LedgerRepository interface {
	// Create stores a new record. Returns ErrDuplicateUsername if the key exists.
	Create(ctx context.Context, user *UserRecord) error
	// GetByUsername performs a consistent read of the record.
	GetByUsername(ctx context.Context, username string) (*UserRecord, error)
	// AppendOrder appends to both location lists in one atomic update and
	// returns the new pickup list length. The append is rejected with
	// ErrLengthMismatch when the stored lists already differ in length.
	AppendOrder(ctx context.Context, username string, order Order) (int, error)
	// ReplaceOrders overwrites both location lists if the stored version still
	// equals version, otherwise it returns ErrVersionConflict.
	ReplaceOrders(ctx context.Context, username string, pickups, drops []string, version int64) error
}
