package store

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID for the current time.
func NewID() string { return ulid.Make().String() }

// NewIDAt returns a ULID stamped with at. Ids from the same millisecond
// still sort in creation order, so game log files list chronologically.
func NewIDAt(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
