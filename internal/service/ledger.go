package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/metrics"
)

// maxCASAttempts bounds the read-validate-write loop in DeleteOrder.
const maxCASAttempts = 5

// DefaultStoreTimeout bounds each store call made by AuthService, and by
// LedgerService when it is given a zero timeout.
const DefaultStoreTimeout = 5 * time.Second

// LedgerService places, lists and deletes a user's orders. An order is the
// pair at position i of the record's pickup and drop lists.
type LedgerService struct {
	repo    domain.LedgerRepository
	timeout time.Duration
}

// NewLedgerService creates a LedgerService. Every store call is bounded by
// timeout.
func NewLedgerService(repo domain.LedgerRepository, timeout time.Duration) *LedgerService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &LedgerService{repo: repo, timeout: timeout}
}

// PlaceOrder appends one pickup/drop pair and returns its index.
func (s *LedgerService) PlaceOrder(ctx context.Context, username, pickup, drop string) (index int, err error) {
	defer func() { observe("place", err) }()

	order, err := validateOrder(pickup, drop)
	if err != nil {
		return 0, err
	}

	n, err := s.appendOrder(ctx, username, order)
	if errors.Is(err, domain.ErrLengthMismatch) {
		slog.WarnContext(ctx, "repairing diverged order lists", "username", username)
		if err := s.repair(ctx, username); err != nil {
			return 0, err
		}
		n, err = s.appendOrder(ctx, username, order)
	}
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// ListOrders reads the user's orders. If the stored lists have diverged the
// read still succeeds, truncated to the shorter list, and OrderList.Err
// reports ErrLengthMismatch.
func (s *LedgerService) ListOrders(ctx context.Context, username string) (list OrderList, err error) {
	defer func() { observe("list", err) }()

	rec, err := s.get(ctx, username)
	if err != nil {
		return OrderList{}, err
	}

	list = OrderList{pickups: rec.PickupLocations, drops: rec.DropLocations}
	if len(rec.PickupLocations) != len(rec.DropLocations) {
		list.err = fmt.Errorf("%w: %d pickups, %d drops", domain.ErrLengthMismatch, len(rec.PickupLocations), len(rec.DropLocations))
		slog.WarnContext(ctx, "order lists diverged", "username", username,
			"pickups", len(rec.PickupLocations), "drops", len(rec.DropLocations))
	}
	return list, nil
}

// DeleteOrder removes the order at index from both lists. The write is
// conditioned on the record version observed by the read; a lost race is
// retried up to maxCASAttempts times before ErrConflict is returned.
func (s *LedgerService) DeleteOrder(ctx context.Context, username string, index int) (err error) {
	defer func() { observe("delete", err) }()

	for range maxCASAttempts {
		rec, err := s.get(ctx, username)
		if err != nil {
			return err
		}

		n := rec.OrderCount()
		if index < 0 || index >= n {
			return fmt.Errorf("%w: index %d, %d orders", domain.ErrIndexOutOfRange, index, n)
		}

		pickups := without(rec.PickupLocations[:n], index)
		drops := without(rec.DropLocations[:n], index)

		err = s.replace(ctx, username, pickups, drops, rec.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			slog.DebugContext(ctx, "delete lost race, retrying", "username", username, "version", rec.Version)
			continue
		}
		return err
	}
	return fmt.Errorf("%w: delete order %d for %s", domain.ErrConflict, index, username)
}

// GetEmail returns the email stored on the user's record.
func (s *LedgerService) GetEmail(ctx context.Context, username string) (string, error) {
	rec, err := s.get(ctx, username)
	if err != nil {
		return "", err
	}
	return rec.Email, nil
}

// repair truncates both lists to the shorter length. Losing the version race
// means another writer already changed the record, which is left to the
// caller's retry.
func (s *LedgerService) repair(ctx context.Context, username string) error {
	rec, err := s.get(ctx, username)
	if err != nil {
		return err
	}
	n := rec.OrderCount()
	err = s.replace(ctx, username, rec.PickupLocations[:n], rec.DropLocations[:n], rec.Version)
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil
	}
	return err
}

func (s *LedgerService) get(ctx context.Context, username string) (*domain.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	return rec, nil
}

func (s *LedgerService) appendOrder(ctx context.Context, username string, order domain.Order) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.AppendOrder(ctx, username, order)
	if err != nil {
		return 0, storeErr("append order", err)
	}
	return n, nil
}

func (s *LedgerService) replace(ctx context.Context, username string, pickups, drops []string, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.ReplaceOrders(ctx, username, pickups, drops, version); err != nil {
		return storeErr("replace orders", err)
	}
	return nil
}

// storeErr passes domain errors through and classifies everything else,
// deadlines included, as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrLengthMismatch),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrDuplicateUsername):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func validateOrder(pickup, drop string) (domain.Order, error) {
	pickup = strings.TrimSpace(pickup)
	drop = strings.TrimSpace(drop)

	if pickup == "" || drop == "" {
		return domain.Order{}, fmt.Errorf("%w: pickup and drop locations are required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(pickup) > domain.MaxLocationLength || utf8.RuneCountInString(drop) > domain.MaxLocationLength {
		return domain.Order{}, fmt.Errorf("%w: locations must be at most %d characters", domain.ErrInvalidInput, domain.MaxLocationLength)
	}
	return domain.Order{Pickup: pickup, Drop: drop}, nil
}

func without(values []string, index int) []string {
	out := make([]string, 0, len(values)-1)
	out = append(out, values[:index]...)
	return append(out, values[index+1:]...)
}

func observe(op string, err error) {
	metrics.ObserveLedgerOp(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return "out_of_range"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// OrderList is a read-only view of a user's orders.
type OrderList struct {
	pickups []string
	drops   []string
	err     error
}

// Len is the number of complete orders.
func (l OrderList) Len() int {
	return min(len(l.pickups), len(l.drops))
}

// All yields orders by index. It can be ranged over any number of times.
func (l OrderList) All() iter.Seq2[int, domain.Order] {
	return func(yield func(int, domain.Order) bool) {
		for i := range l.Len() {
			if !yield(i, domain.Order{Pickup: l.pickups[i], Drop: l.drops[i]}) {
				return
			}
		}
	}
}

func (l OrderList) Slice() []domain.Order {
	out := make([]domain.Order, 0, l.Len())
	for _, o := range l.All() {
		out = append(out, o)
	}
	return out
}

// Err reports ErrLengthMismatch when the stored lists were found diverged.
func (l OrderList) Err() error {
	return l.err
}
