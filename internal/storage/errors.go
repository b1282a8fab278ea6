package storage

import "errors"

// Storage errors. Lookup misses are reported through an ok flag, not
// ErrNotFound; ErrNotFound is reserved for updates of missing records.
var (
	// ErrNotFound is returned when a record to update does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose unique key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
