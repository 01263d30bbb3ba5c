package interval

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key identifies the subject under which non-overlap is enforced: an asset id,
// or a license id combined with its target kind and target id. Keys are opaque
// to the ledger; callers build them with a stable scheme.
type Key string

// Interval is a half-open range [From, To). A nil To denotes an open interval
// and orders as +infinity in all overlap logic.
type Interval struct {
	ID   uuid.UUID
	Key  Key
	From time.Time
	To   *time.Time
}

func (iv Interval) IsOpen() bool {
	return iv.To == nil
}

// Overlaps reports whether [From, To) intersects [from, to), with nil ends
// treated as +infinity: [a1,b1) and [a2,b2) intersect iff a1 < b2 && a2 < b1.
func (iv Interval) Overlaps(from time.Time, to *time.Time) bool {
	if iv.To != nil && !from.Before(*iv.To) {
		return false
	}
	if to != nil && !iv.From.Before(*to) {
		return false
	}
	return true
}

const openSentinel = "open"

type intervalWire struct {
	ID         uuid.UUID `json:"id"`
	SubjectKey Key       `json:"subject_key"`
	From       time.Time `json:"from"`
	To         string    `json:"to"`
}

// MarshalJSON encodes an absent To as the literal "open" so that unbounded
// intervals round-trip losslessly.
func (iv Interval) MarshalJSON() ([]byte, error) {
	w := intervalWire{
		ID:         iv.ID,
		SubjectKey: iv.Key,
		From:       iv.From,
		To:         openSentinel,
	}
	if iv.To != nil {
		w.To = iv.To.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

func (iv *Interval) UnmarshalJSON(data []byte) error {
	var w intervalWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	iv.ID = w.ID
	iv.Key = w.SubjectKey
	iv.From = w.From
	iv.To = nil
	if w.To != openSentinel {
		to, err := time.Parse(time.RFC3339Nano, w.To)
		if err != nil {
			return fmt.Errorf("interval: invalid 'to' %q: %w", w.To, err)
		}
		iv.To = &to
	}
	return nil
}
