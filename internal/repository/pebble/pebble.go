// Package pebble stores ledger records in an embedded Pebble key-value store.
// It suits single-process deployments: conditional updates are serialized
// by an in-process mutex, which Pebble itself does not provide.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/msomdec/trackitnow/internal/domain"
)

const keyPrefix = "user/"

// record is the on-disk encoding of a domain.UserRecord.
type record struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	PasswordHash    string   `json:"password_hash"`
	PickupLocations []string `json:"pickup_locations"`
	DropLocations   []string `json:"drop_locations"`
	DeliveryStatus  string   `json:"delivery_status"`
	Version         int64    `json:"version"`
}

// Store implements domain.LedgerRepository and domain.Database.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

// Open opens (or creates) a Pebble store in dir.
func Open(dir string) (*Store, error) {
	return open(dir, &pebble.Options{})
}

// OpenInMemory opens a store backed by an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate is a no-op; Pebble has no schema.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, user *domain.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load(user.Username)
	if err == nil {
		return domain.ErrDuplicateUsername
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	rec := record{
		Username:        user.Username,
		Email:           user.Email,
		PasswordHash:    user.PasswordHash,
		PickupLocations: []string{},
		DropLocations:   []string{},
		DeliveryStatus:  user.DeliveryStatus,
	}
	if rec.DeliveryStatus == "" {
		rec.DeliveryStatus = domain.DefaultDeliveryStatus
	}
	if err := s.save(rec); err != nil {
		return err
	}

	user.DeliveryStatus = rec.DeliveryStatus
	user.Version = 0
	return nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(username)
	if err != nil {
		return nil, err
	}
	return &domain.UserRecord{
		Username:        rec.Username,
		Email:           rec.Email,
		PasswordHash:    rec.PasswordHash,
		PickupLocations: slices.Clone(rec.PickupLocations),
		DropLocations:   slices.Clone(rec.DropLocations),
		DeliveryStatus:  rec.DeliveryStatus,
		Version:         rec.Version,
	}, nil
}

func (s *Store) AppendOrder(ctx context.Context, username string, order domain.Order) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(username)
	if err != nil {
		return 0, err
	}
	if len(rec.PickupLocations) != len(rec.DropLocations) {
		return 0, domain.ErrLengthMismatch
	}

	rec.PickupLocations = append(rec.PickupLocations, order.Pickup)
	rec.DropLocations = append(rec.DropLocations, order.Drop)
	rec.Version++
	if err := s.save(rec); err != nil {
		return 0, err
	}
	return len(rec.PickupLocations), nil
}

func (s *Store) ReplaceOrders(ctx context.Context, username string, pickups, drops []string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(username)
	if err != nil {
		return err
	}
	if rec.Version != version {
		return domain.ErrVersionConflict
	}

	rec.PickupLocations = append([]string{}, pickups...)
	rec.DropLocations = append([]string{}, drops...)
	rec.Version++
	return s.save(rec)
}

func (s *Store) load(username string) (record, error) {
	val, closer, err := s.db.Get(key(username))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return record{}, domain.ErrUserNotFound
		}
		return record{}, fmt.Errorf("get %s: %w", username, err)
	}
	defer closer.Close()

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return record{}, fmt.Errorf("decode %s: %w", username, err)
	}
	return rec, nil
}

func (s *Store) save(rec record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Username, err)
	}
	if err := s.db.Set(key(rec.Username), val, pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", rec.Username, err)
	}
	return nil
}

func key(username string) []byte {
	return []byte(keyPrefix + username)
}
