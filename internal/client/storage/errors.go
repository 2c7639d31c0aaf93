package storage

import "errors"

// Common client storage errors
var (
	// ErrChangeNotFound indicates that no pending change exists for the key
	ErrChangeNotFound = errors.New("pending change not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
