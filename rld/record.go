package rld

import (
	"github.com/flimlab/gorld/lifetime"
)

// Record is one archived measurement: the parameters it ran with, the raw
// stacks, wall-clock bounds, and the derived lifetime map once computed.
// A record is owned exclusively by the run (or folder load) that created
// it until archived into a Session, after which it is treated as immutable.
type Record struct {
	Params Parameters
	Stack  Stack

	// StartNS and EndNS bound the capture loop in wall-clock nanoseconds.
	// Zero for records loaded from disk.
	StartNS int64
	EndNS   int64

	// Lifetime is the derived per-pixel decay map, nil until computed
	Lifetime *lifetime.Map

	// Partial marks a record whose stacks hold fewer sets than requested
	Partial bool
}

// ComputeLifetime fills in the record's lifetime map from its stacks.
func (r *Record) ComputeLifetime() error {
	m, err := lifetime.Compute(r.Params.DeltaT(),
		r.Stack.Window1.Frames, r.Stack.Window2.Frames, r.Stack.Dark.Frames)
	if err != nil {
		return err
	}
	r.Lifetime = &m
	return nil
}

// Session is the ordered history of records within one process lifetime.
// Records are appended by measurement or folder load and dropped only by
// the Clear/Remove operations; the session is the sole owner.
type Session struct {
	records []*Record
}

// Add archives a record and returns its index
func (s *Session) Add(r *Record) int {
	s.records = append(s.records, r)
	return len(s.records) - 1
}

// Len is the number of archived records
func (s *Session) Len() int {
	return len(s.records)
}

// Get returns the record at index, or nil if out of range
func (s *Session) Get(i int) *Record {
	if i < 0 || i >= len(s.records) {
		return nil
	}
	return s.records[i]
}

// Last returns the most recent record, or nil for an empty session
func (s *Session) Last() *Record {
	return s.Get(len(s.records) - 1)
}

// Remove drops the record at index
func (s *Session) Remove(i int) {
	if i < 0 || i >= len(s.records) {
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
}

// Clear drops all records
func (s *Session) Clear() {
	s.records = nil
}
