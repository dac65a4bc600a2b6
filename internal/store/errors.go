package store

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Sentinel errors callers branch on with errors.Is. Everything else that
// comes out of this package is an infrastructure failure and should be
// treated as fatal.
var (
	// ErrEmptyStore means a random pick found no documents at all.
	ErrEmptyStore = errors.New("store has no records")

	// ErrDuplicateKey means an insert collided with an existing symbol.
	ErrDuplicateKey = errors.New("symbol already exists")

	// ErrNotFound means an update or delete matched no document.
	ErrNotFound = errors.New("symbol not found")

	// ErrStreamInvalidated means the change stream lost its place (dropped
	// collection, oplog rolled past the resume point). The stream cannot be
	// resumed; the observing side must restart and re-sync from scratch.
	ErrStreamInvalidated = errors.New("change stream invalidated")
)

// IsBenignRace reports whether err is an expected lost race against a
// concurrent mutator: the target vanished between pick and apply, or the
// store drained to empty. Callers skip the operation and move on.
func IsBenignRace(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmptyStore)
}

// Server error codes that mean the stream's resume point is gone for good.
const (
	codeCappedPositionLost      = 136
	codeChangeStreamHistoryLost = 286
)

// mapStreamError translates driver errors that end a change stream's life
// into ErrStreamInvalidated, leaving transient errors untouched.
func mapStreamError(err error) error {
	if err == nil {
		return nil
	}
	var srvErr mongo.ServerError
	if errors.As(err, &srvErr) {
		if srvErr.HasErrorCode(codeChangeStreamHistoryLost) ||
			srvErr.HasErrorCode(codeCappedPositionLost) ||
			srvErr.HasErrorLabel("NonResumableChangeStreamError") {
			return fmt.Errorf("%w: %v", ErrStreamInvalidated, err)
		}
	}
	return err
}
