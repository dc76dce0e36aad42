package session

import "sync/atomic"

// Category classifies a serialization failure handled by [Codec].
type Category uint8

const (
	// CategoryUnknownField counts payloads carrying fields the record no longer declares.
	CategoryUnknownField Category = iota
	// CategoryUnknownType counts payloads whose type discriminator did not resolve.
	CategoryUnknownType
	// CategoryFormat counts syntax and value-type errors.
	CategoryFormat
	// CategoryUnreadable counts reads that produced nothing usable.
	CategoryUnreadable
	// CategoryEncode counts writes that needed a sanitizing second attempt.
	CategoryEncode
	// CategoryEncodeFailed counts writes that failed every attempt.
	CategoryEncodeFailed
	categoryCount
)

var categoryNames = [categoryCount]string{
	CategoryUnknownField: "unknown_field",
	CategoryUnknownType:  "unknown_type",
	CategoryFormat:       "format",
	CategoryUnreadable:   "unreadable",
	CategoryEncode:       "encode",
	CategoryEncodeFailed: "encode_failed",
}

func (c Category) String() string {
	if c >= categoryCount {
		return "unknown"
	}
	return categoryNames[c]
}

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// ErrorStats holds per-category failure counters for one [Codec].
//
// Counters only move forward until Reset is called. The zero value is ready
// to use and a nil *ErrorStats ignores every call.
type ErrorStats struct {
	counters [categoryCount]paddedCounter
}

// NewErrorStats returns an empty counter set.
func NewErrorStats() *ErrorStats {
	return &ErrorStats{}
}

// Inc adds one to the counter for c.
func (s *ErrorStats) Inc(c Category) {
	if s == nil || c >= categoryCount {
		return
	}
	s.counters[c].value.Add(1)
}

// Value returns the current count for c.
func (s *ErrorStats) Value(c Category) uint64 {
	if s == nil || c >= categoryCount {
		return 0
	}
	return s.counters[c].value.Load()
}

// Snapshot copies every counter, including zero ones.
func (s *ErrorStats) Snapshot() map[Category]uint64 {
	out := make(map[Category]uint64, int(categoryCount))
	for c := Category(0); c < categoryCount; c++ {
		out[c] = s.Value(c)
	}
	return out
}

// Reset zeroes all counters.
func (s *ErrorStats) Reset() {
	if s == nil {
		return
	}
	for i := range s.counters {
		s.counters[i].value.Store(0)
	}
}
