// Package apperr defines the sentinel errors shared across catalyst packages.
package apperr

import "errors"

var (
	// ErrNotFound reports a source file that vanished between discovery and read.
	ErrNotFound = errors.New("not found")
	// ErrParse reports a structured header that is present but malformed.
	ErrParse = errors.New("malformed header")

	ErrAlreadyRunning = errors.New("watcher already running")
	ErrWatchPath      = errors.New("invalid watch path")

	// ErrTargetInit reports a sync target whose vault skeleton could not be created.
	ErrTargetInit       = errors.New("target initialization failed")
	ErrUnknownTarget    = errors.New("sync target not found or disabled")
	ErrAutoSyncDisabled = errors.New("auto-sync is disabled")

	// ErrDestinationTaken reports a vault file name held by other sources.
	ErrDestinationTaken = errors.New("vault destination held by another source")
)
