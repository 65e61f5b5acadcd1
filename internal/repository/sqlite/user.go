package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/msomdec/trackitnow/internal/domain"
)

// LedgerRepository implements domain.LedgerRepository using SQLite. The two
// location lists are stored as JSON arrays and mutated with SQLite's JSON
// functions so every order mutation is a single statement.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new SQLite-backed LedgerRepository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db.SqlDB}
}

func (r *LedgerRepository) Create(ctx context.Context, user *domain.UserRecord) error {
	pickups, drops, err := encodeLists(user.PickupLocations, user.DropLocations)
	if err != nil {
		return err
	}
	status := user.DeliveryStatus
	if status == "" {
		status = domain.DefaultDeliveryStatus
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, pickup_locations, drop_locations, delivery_status, version)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		user.Username, user.Email, user.PasswordHash, pickups, drops, status,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.DeliveryStatus = status
	user.Version = 0
	return nil
}

func (r *LedgerRepository) GetByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	user := &domain.UserRecord{}
	var pickups, drops string
	err := r.db.QueryRowContext(ctx,
		`SELECT username, email, password_hash, pickup_locations, drop_locations, delivery_status, version
		 FROM users WHERE username = ?`, username,
	).Scan(&user.Username, &user.Email, &user.PasswordHash, &pickups, &drops, &user.DeliveryStatus, &user.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}

	if err := json.Unmarshal([]byte(pickups), &user.PickupLocations); err != nil {
		return nil, fmt.Errorf("decode pickup locations: %w", err)
	}
	if err := json.Unmarshal([]byte(drops), &user.DropLocations); err != nil {
		return nil, fmt.Errorf("decode drop locations: %w", err)
	}
	return user, nil
}

func (r *LedgerRepository) AppendOrder(ctx context.Context, username string, order domain.Order) (int, error) {
	var length int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET pickup_locations = json_insert(pickup_locations, '$[#]', ?),
		     drop_locations = json_insert(drop_locations, '$[#]', ?),
		     version = version + 1
		 WHERE username = ?
		   AND json_array_length(pickup_locations) = json_array_length(drop_locations)
		 RETURNING json_array_length(pickup_locations)`,
		order.Pickup, order.Drop, username,
	).Scan(&length)
	if err == nil {
		return length, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("append order: %w", err)
	}

	if err := r.exists(ctx, username); err != nil {
		return 0, err
	}
	return 0, domain.ErrLengthMismatch
}

func (r *LedgerRepository) ReplaceOrders(ctx context.Context, username string, pickups, drops []string, version int64) error {
	p, d, err := encodeLists(pickups, drops)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET pickup_locations = ?, drop_locations = ?, version = version + 1
		 WHERE username = ? AND version = ?`,
		p, d, username, version,
	)
	if err != nil {
		return fmt.Errorf("replace orders: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	if err := r.exists(ctx, username); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func (r *LedgerRepository) exists(ctx context.Context, username string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username = ?", username).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("check user exists: %w", err)
	}
	return nil
}

func encodeLists(pickups, drops []string) (string, string, error) {
	if pickups == nil {
		pickups = []string{}
	}
	if drops == nil {
		drops = []string{}
	}
	p, err := json.Marshal(pickups)
	if err != nil {
		return "", "", fmt.Errorf("encode pickup locations: %w", err)
	}
	d, err := json.Marshal(drops)
	if err != nil {
		return "", "", fmt.Errorf("encode drop locations: %w", err)
	}
	return string(p), string(d), nil
}

// isUniqueConstraintError checks if the error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: PRIMARY KEY")
}
