package pebble_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/repository/pebble"
)

var (
	_ domain.LedgerRepository = (*pebble.Store)(nil)
	_ domain.Database         = (*pebble.Store)(nil)
)

func newStore(t *testing.T) *pebble.Store {
	t.Helper()
	s, err := pebble.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	user := &domain.UserRecord{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, s.Create(ctx, user))
	assert.Equal(t, domain.DefaultDeliveryStatus, user.DeliveryStatus)

	got, err := s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Empty(t, got.PickupLocations)
	assert.Empty(t, got.DropLocations)

	err = s.Create(ctx, &domain.UserRecord{Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestStore_GetByUsername_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_AppendAndReplace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.UserRecord{Username: "bob"}))

	n, err := s.AppendOrder(ctx, "bob", domain.Order{Pickup: "p1", Drop: "d1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.AppendOrder(ctx, "bob", domain.Order{Pickup: "p2", Drop: "d2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, s.ReplaceOrders(ctx, "bob", []string{"p2"}, []string{"d2"}, 1), domain.ErrVersionConflict)
	require.NoError(t, s.ReplaceOrders(ctx, "bob", []string{"p2"}, []string{"d2"}, 2))

	got, err := s.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, got.PickupLocations)
	assert.Equal(t, []string{"d2"}, got.DropLocations)
	assert.Equal(t, int64(3), got.Version)
}

func TestStore_AppendOrder_RejectsMismatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.UserRecord{Username: "carol"}))
	require.NoError(t, s.ReplaceOrders(ctx, "carol", []string{"a", "b"}, []string{"c"}, 0))

	_, err := s.AppendOrder(ctx, "carol", domain.Order{Pickup: "x", Drop: "y"})
	assert.ErrorIs(t, err, domain.ErrLengthMismatch)
}

func TestStore_MissingUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AppendOrder(ctx, "ghost", domain.Order{Pickup: "a", Drop: "b"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, s.ReplaceOrders(ctx, "ghost", nil, nil, 0), domain.ErrUserNotFound)
}

func TestStore_CanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	s, err := pebble.Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, &domain.UserRecord{Username: "dave", Email: "dave@example.com"}))
	_, err = s.AppendOrder(ctx, "dave", domain.Order{Pickup: "p", Drop: "d"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = pebble.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, got.PickupLocations)
	assert.Equal(t, []string{"d"}, got.DropLocations)
}
