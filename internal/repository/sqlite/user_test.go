package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo *sqlite.LedgerRepository, username string) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.UserRecord{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpw",
	})
	if err != nil {
		t.Fatalf("Create %s: %v", username, err)
	}
}

func TestLedgerRepository_CreateAndGet(t *testing.T) {
	repo := newTestDB(t).Ledger()
	ctx := context.Background()

	user := &domain.UserRecord{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashedpw",
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.DeliveryStatus != domain.DefaultDeliveryStatus {
		t.Fatalf("expected status %q, got %q", domain.DefaultDeliveryStatus, user.DeliveryStatus)
	}

	found, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if found.Email != "alice@example.com" {
		t.Fatalf("expected email alice@example.com, got %q", found.Email)
	}
	if len(found.PickupLocations) != 0 || len(found.DropLocations) != 0 {
		t.Fatalf("expected empty lists, got %v / %v", found.PickupLocations, found.DropLocations)
	}
	if found.Version != 0 {
		t.Fatalf("expected version 0, got %d", found.Version)
	}
}

func TestLedgerRepository_Create_Duplicate(t *testing.T) {
	repo := newTestDB(t).Ledger()
	createUser(t, repo, "dup")

	err := repo.Create(context.Background(), &domain.UserRecord{Username: "dup", Email: "x@example.com", PasswordHash: "h"})
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestLedgerRepository_GetByUsername_NotFound(t *testing.T) {
	repo := newTestDB(t).Ledger()

	_, err := repo.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLedgerRepository_AppendOrder(t *testing.T) {
	repo := newTestDB(t).Ledger()
	ctx := context.Background()
	createUser(t, repo, "alice")

	n, err := repo.AppendOrder(ctx, "alice", domain.Order{Pickup: "Loc1", Drop: "Loc2"})
	if err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected length 1, got %d", n)
	}
	n, err = repo.AppendOrder(ctx, "alice", domain.Order{Pickup: "Loc3", Drop: "Loc4"})
	if err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected length 2, got %d", n)
	}

	found, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if !slices.Equal(found.PickupLocations, []string{"Loc1", "Loc3"}) {
		t.Fatalf("unexpected pickups %v", found.PickupLocations)
	}
	if !slices.Equal(found.DropLocations, []string{"Loc2", "Loc4"}) {
		t.Fatalf("unexpected drops %v", found.DropLocations)
	}
	if found.Version != 2 {
		t.Fatalf("expected version 2, got %d", found.Version)
	}
}

func TestLedgerRepository_AppendOrder_NotFound(t *testing.T) {
	repo := newTestDB(t).Ledger()

	_, err := repo.AppendOrder(context.Background(), "ghost", domain.Order{Pickup: "a", Drop: "b"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLedgerRepository_AppendOrder_RejectsMismatch(t *testing.T) {
	db := newTestDB(t)
	repo := db.Ledger()
	ctx := context.Background()
	createUser(t, repo, "bob")

	if _, err := db.SqlDB.ExecContext(ctx,
		`UPDATE users SET pickup_locations = '["a","b"]', drop_locations = '["c"]' WHERE username = 'bob'`,
	); err != nil {
		t.Fatalf("seed mismatch: %v", err)
	}

	_, err := repo.AppendOrder(ctx, "bob", domain.Order{Pickup: "x", Drop: "y"})
	if !errors.Is(err, domain.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}

	found, err := repo.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if len(found.PickupLocations) != 2 || len(found.DropLocations) != 1 {
		t.Fatalf("rejected append must not write, got %v / %v", found.PickupLocations, found.DropLocations)
	}
}

func TestLedgerRepository_ReplaceOrders(t *testing.T) {
	repo := newTestDB(t).Ledger()
	ctx := context.Background()
	createUser(t, repo, "carol")

	if _, err := repo.AppendOrder(ctx, "carol", domain.Order{Pickup: "p1", Drop: "d1"}); err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}

	// Stale version is rejected.
	err := repo.ReplaceOrders(ctx, "carol", nil, nil, 0)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	if err := repo.ReplaceOrders(ctx, "carol", nil, nil, 1); err != nil {
		t.Fatalf("ReplaceOrders: %v", err)
	}

	found, err := repo.GetByUsername(ctx, "carol")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if len(found.PickupLocations) != 0 || len(found.DropLocations) != 0 {
		t.Fatalf("expected empty lists, got %v / %v", found.PickupLocations, found.DropLocations)
	}
	if found.Version != 2 {
		t.Fatalf("expected version 2, got %d", found.Version)
	}
}

func TestLedgerRepository_ReplaceOrders_NotFound(t *testing.T) {
	repo := newTestDB(t).Ledger()

	err := repo.ReplaceOrders(context.Background(), "ghost", nil, nil, 0)
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
