package emberdb

import (
	"errors"

	"emberdb/internal/base"
)

var (
	// ErrKeyNotFound is returned when a key does not exist in the store.
	ErrKeyNotFound = base.ErrKeyNotFound

	// ErrDatabaseClosed is returned when operating on a closed store.
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrKeyTooLarge is returned when a key exceeds MaxKeySize.
	ErrKeyTooLarge = base.ErrKeyTooLarge

	// ErrValueTooLarge is returned when a value exceeds MaxValueSize.
	ErrValueTooLarge = base.ErrValueTooLarge

	// ErrCorruption wraps CRC and structural failures detected in the WAL
	// or the snapshot file. Match with errors.Is.
	ErrCorruption = base.ErrCorruption
)

const (
	// MaxKeySize is the maximum length of a key, in bytes.
	MaxKeySize = base.MaxKeySize

	// MaxValueSize is the maximum length of a value, in bytes.
	MaxValueSize = base.MaxValueSize
)
