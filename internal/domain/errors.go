package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrIndexOutOfRange    = errors.New("order index out of range")
	ErrLengthMismatch     = errors.New("pickup and drop lists differ in length")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrVersionConflict    = errors.New("record version changed")
	ErrConflict           = errors.New("concurrent modification, try again")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotificationFailed = errors.New("notification failed")
)
