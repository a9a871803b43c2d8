package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structural failure cases. Per-entity hunter
// failures are carried inside a dispatch outcome instead and never
// abort a batch.
var (
	// ErrNotFound indicates an unknown account, media or trigger id.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an identity-resolution race that could not
	// be settled by re-reading the winner's row.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyRunning indicates a trigger whose RUNNING guard is held
	// by another run.
	ErrAlreadyRunning = errors.New("trigger already running")

	// ErrInvalidConfig indicates malformed dispatch or refresh
	// parameters, e.g. non-positive concurrency.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// HunterError wraps a platform hunter failure for one entity. It is
// recorded per id in the dispatch outcome.
type HunterError struct {
	Platform string
	EntityID int64
	Err      error
}

func (e *HunterError) Error() string {
	return fmt.Sprintf("hunter %s failed for entity %d: %v", e.Platform, e.EntityID, e.Err)
}

func (e *HunterError) Unwrap() error {
	return e.Err
}
