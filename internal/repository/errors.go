package repository

import "errors"

// Storage-layer sentinel errors. Infra implementations map driver errors
// onto these so services can branch with errors.Is without importing gorm
// or redis.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means an insert violated a uniqueness constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrCacheMiss means the cache has no entry for the key. A miss is an
	// expected outcome, not a failure.
	ErrCacheMiss = errors.New("repository: cache miss")
)

var (
	ErrSessionNotFound = ErrNotFound
)
