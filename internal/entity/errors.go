package entity

import "errors"

var (
	// ErrInvalidTransition signals a state-machine misuse: the requested
	// stage does not immediately follow the item's current stage. Never
	// retried.
	ErrInvalidTransition = errors.New("invalid manifest stage transition")

	// ErrDuplicateKey signals a conflicting concurrent write for the same
	// source key (lost-update guard tripped).
	ErrDuplicateKey = errors.New("conflicting concurrent write for source key")

	// ErrSourceNotFound is returned when a source key has no manifest row.
	ErrSourceNotFound = errors.New("source item not found in manifest")

	// ErrLowQuality marks cleaned content below the configured quality
	// threshold. Terminal for the run, recorded and skipped, never fatal.
	ErrLowQuality = errors.New("cleaned content below quality threshold")

	// ErrNoGrounding is returned by the ask path when both index queries
	// come back empty. Callers must surface this instead of fabricating
	// context.
	ErrNoGrounding = errors.New("no grounding material found")
)
