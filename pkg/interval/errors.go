package interval

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OverlapError reports a rejected open: the requested range intersects an
// existing interval. The conflicting interval is carried so callers can report
// precisely without re-querying.
type OverlapError struct {
	Key         Key
	Conflicting Interval
}

func (e *OverlapError) Error() string {
	if e.Conflicting.IsOpen() {
		return fmt.Sprintf("interval: subject %q already has an open interval since %s (id %s)",
			e.Key, e.Conflicting.From.Format(time.RFC3339), e.Conflicting.ID)
	}
	return fmt.Sprintf("interval: subject %q overlaps [%s, %s) (id %s)",
		e.Key, e.Conflicting.From.Format(time.RFC3339), e.Conflicting.To.Format(time.RFC3339), e.Conflicting.ID)
}

// RangeError reports an invalid bound, e.g. a close time at or before the
// interval start.
type RangeError struct {
	From   time.Time
	To     time.Time
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("interval: invalid range [%s, %s): %s",
		e.From.Format(time.RFC3339), e.To.Format(time.RFC3339), e.Reason)
}

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("interval: %s not found or already closed", e.ID)
}

// BusyError is returned when the subject-key lock could not be acquired within
// the ledger's bounded timeout. Retryable.
type BusyError struct {
	Key     Key
	Timeout time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("interval: subject %q busy after %s", e.Key, e.Timeout)
}
