package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found in storage
	ErrRecordNotFound = errors.New("record not found")

	// ErrRevisionMismatch indicates that the stored revision changed
	// between read and write (compare-and-swap failed)
	ErrRevisionMismatch = errors.New("revision mismatch")

	// ErrInvalidRecord indicates that record can not be written as is
	ErrInvalidRecord = errors.New("invalid record")

	// ErrStoreClosed indicates that storage was already closed
	ErrStoreClosed = errors.New("storage closed")
)
