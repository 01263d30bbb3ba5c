package interval

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Ledger tracks non-overlapping half-open intervals per subject key.
//
// Each subject key holds an independent interval set guarded by its own lock,
// so writers on disjoint subjects never contend. Lock acquisition is bounded:
// exceeding the timeout yields a BusyError rather than blocking indefinitely.
// The invariant per key: intervals are pairwise non-overlapping and at most
// one is open.
type Ledger struct {
	timeout time.Duration

	mu       chan struct{} // guards subjects and byID
	subjects map[Key]*subjectSet
	byID     map[uuid.UUID]Key
}

type subjectSet struct {
	sem       chan struct{}
	intervals []Interval // ascending by From
}

func NewLedger(lockTimeout time.Duration) *Ledger {
	l := &Ledger{
		timeout:  lockTimeout,
		mu:       make(chan struct{}, 1),
		subjects: make(map[Key]*subjectSet),
		byID:     make(map[uuid.UUID]Key),
	}
	l.mu <- struct{}{}
	return l
}

func (l *Ledger) lockIndex() {
	<-l.mu
}

func (l *Ledger) unlockIndex() {
	l.mu <- struct{}{}
}

// acquire takes the per-subject lock, creating the subject set on first use.
func (l *Ledger) acquire(key Key) (*subjectSet, error) {
	l.lockIndex()
	set, ok := l.subjects[key]
	if !ok {
		set = &subjectSet{sem: make(chan struct{}, 1)}
		set.sem <- struct{}{}
		l.subjects[key] = set
	}
	l.unlockIndex()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case <-set.sem:
		return set, nil
	case <-timer.C:
		return nil, &BusyError{Key: key, Timeout: l.timeout}
	}
}

func (l *Ledger) release(set *subjectSet) {
	set.sem <- struct{}{}
}

// OpenInterval starts a new open interval [from, +inf) for the subject key.
// Fails with OverlapError if any existing interval for the key intersects it
// and with RangeError if from is zero.
func (l *Ledger) OpenInterval(key Key, from time.Time) (Interval, error) {
	if from.IsZero() {
		return Interval{}, &RangeError{From: from, Reason: "from is required"}
	}
	set, err := l.acquire(key)
	if err != nil {
		return Interval{}, err
	}
	defer l.release(set)

	from = from.UTC()
	if conflict, ok := set.findOverlap(from, nil); ok {
		return Interval{}, &OverlapError{Key: key, Conflicting: conflict}
	}

	iv := Interval{ID: uuid.New(), Key: key, From: from}
	set.insert(iv)
	l.lockIndex()
	l.byID[iv.ID] = key
	l.unlockIndex()
	return iv, nil
}

// CloseInterval sets the exclusive upper bound of an interval. Closing an
// already-closed interval with the same bound is a no-op; any other bound is
// reported as NotFoundError. A bound at or before the interval start is a
// RangeError.
func (l *Ledger) CloseInterval(id uuid.UUID, to time.Time) error {
	l.lockIndex()
	key, ok := l.byID[id]
	l.unlockIndex()
	if !ok {
		return &NotFoundError{ID: id}
	}

	set, err := l.acquire(key)
	if err != nil {
		return err
	}
	defer l.release(set)

	idx := set.indexOf(id)
	if idx < 0 {
		return &NotFoundError{ID: id}
	}
	iv := set.intervals[idx]
	to = to.UTC()
	if iv.To != nil {
		if iv.To.Equal(to) {
			return nil
		}
		return &NotFoundError{ID: id}
	}
	if !to.After(iv.From) {
		return &RangeError{From: iv.From, To: to, Reason: "to must be after from"}
	}
	set.intervals[idx].To = &to
	return nil
}

// Rollover atomically closes the current open interval at to and opens a new
// one at from, under a single subject-key acquisition. from must not precede
// to: backdating past the closing boundary is a RangeError.
func (l *Ledger) Rollover(key Key, to, from time.Time) (closed, opened Interval, err error) {
	if from.Before(to) {
		return Interval{}, Interval{}, &RangeError{From: from, To: to, Reason: "new interval may not start before the closing boundary"}
	}
	set, err := l.acquire(key)
	if err != nil {
		return Interval{}, Interval{}, err
	}
	defer l.release(set)

	idx := set.openIndex()
	if idx < 0 {
		return Interval{}, Interval{}, &NotFoundError{}
	}
	current := set.intervals[idx]
	to = to.UTC()
	if !to.After(current.From) {
		return Interval{}, Interval{}, &RangeError{From: current.From, To: to, Reason: "to must be after from"}
	}

	set.intervals[idx].To = &to
	closed = set.intervals[idx]

	from = from.UTC()
	if conflict, ok := set.findOverlap(from, nil); ok {
		set.intervals[idx].To = nil
		return Interval{}, Interval{}, &OverlapError{Key: key, Conflicting: conflict}
	}

	opened = Interval{ID: uuid.New(), Key: key, From: from}
	set.insert(opened)
	l.lockIndex()
	l.byID[opened.ID] = key
	l.unlockIndex()
	return closed, opened, nil
}

// CurrentInterval returns the open interval for the subject key, if any.
func (l *Ledger) CurrentInterval(key Key) (Interval, bool) {
	set, err := l.acquire(key)
	if err != nil {
		return Interval{}, false
	}
	defer l.release(set)

	if idx := set.openIndex(); idx >= 0 {
		return set.intervals[idx], true
	}
	return Interval{}, false
}

// IntervalsFor returns all intervals for the subject key ascending by From.
func (l *Ledger) IntervalsFor(key Key) ([]Interval, error) {
	set, err := l.acquire(key)
	if err != nil {
		return nil, err
	}
	defer l.release(set)

	out := make([]Interval, len(set.intervals))
	copy(out, set.intervals)
	return out, nil
}

// Restore loads an interval into the ledger, validating the non-overlap
// invariant. Used to warm the ledger from durable storage and to reinstate
// state after a failed storage write.
func (l *Ledger) Restore(iv Interval) error {
	if iv.ID == uuid.Nil || iv.Key == "" || iv.From.IsZero() {
		return &RangeError{From: iv.From, Reason: "id, key and from are required"}
	}
	if iv.To != nil && !iv.To.After(iv.From) {
		return &RangeError{From: iv.From, To: *iv.To, Reason: "to must be after from"}
	}
	set, err := l.acquire(iv.Key)
	if err != nil {
		return err
	}
	defer l.release(set)

	if conflict, ok := set.findOverlap(iv.From, iv.To); ok {
		return &OverlapError{Key: iv.Key, Conflicting: conflict}
	}
	set.insert(iv)
	l.lockIndex()
	l.byID[iv.ID] = iv.Key
	l.unlockIndex()
	return nil
}

// Discard removes an interval entirely. Compensation path for mutations whose
// durable write failed; never part of normal operation, which only ever closes.
func (l *Ledger) Discard(id uuid.UUID) error {
	l.lockIndex()
	key, ok := l.byID[id]
	l.unlockIndex()
	if !ok {
		return &NotFoundError{ID: id}
	}

	set, err := l.acquire(key)
	if err != nil {
		return err
	}
	defer l.release(set)

	idx := set.indexOf(id)
	if idx < 0 {
		return &NotFoundError{ID: id}
	}
	set.intervals = append(set.intervals[:idx], set.intervals[idx+1:]...)
	l.lockIndex()
	delete(l.byID, id)
	l.unlockIndex()
	return nil
}

// Reopen clears the upper bound of a closed interval. Compensation for a
// failed durable close.
func (l *Ledger) Reopen(id uuid.UUID) error {
	l.lockIndex()
	key, ok := l.byID[id]
	l.unlockIndex()
	if !ok {
		return &NotFoundError{ID: id}
	}

	set, err := l.acquire(key)
	if err != nil {
		return err
	}
	defer l.release(set)

	idx := set.indexOf(id)
	if idx < 0 {
		return &NotFoundError{ID: id}
	}
	set.intervals[idx].To = nil
	return nil
}

func (s *subjectSet) findOverlap(from time.Time, to *time.Time) (Interval, bool) {
	for _, iv := range s.intervals {
		if iv.Overlaps(from, to) {
			return iv, true
		}
	}
	return Interval{}, false
}

func (s *subjectSet) insert(iv Interval) {
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].From.After(iv.From)
	})
	s.intervals = append(s.intervals, Interval{})
	copy(s.intervals[i+1:], s.intervals[i:])
	s.intervals[i] = iv
}

func (s *subjectSet) indexOf(id uuid.UUID) int {
	for i, iv := range s.intervals {
		if iv.ID == id {
			return i
		}
	}
	return -1
}

func (s *subjectSet) openIndex() int {
	for i, iv := range s.intervals {
		if iv.To == nil {
			return i
		}
	}
	return -1
}
