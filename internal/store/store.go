// Package store holds the bounded in-memory log of received webhook
// notifications. History lives only for the process lifetime; a restart
// loses it, which is the documented contract.
package store

import (
	"sync"
	"time"
)

// MaxRecords is the retention bound: once the log is full, the oldest
// record is evicted for every new one appended.
const MaxRecords = 50

// Record is one received webhook notification. The payload is stored
// verbatim; unknown fields are preserved but never interpreted. The
// wire shape (unix-seconds timestamp + "data") matches what consumers
// of GET /notifications already expect.
type Record struct {
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewRecord stamps payload with the current time.
func NewRecord(payload map[string]any) Record {
	return Record{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      payload,
	}
}

// Store is an insertion-ordered, mutex-guarded notification log bounded
// at MaxRecords. Append, Snapshot, and Clear are atomic relative to each
// other; no caller can observe the log mid-eviction or a count that
// disagrees with the returned slice.
type Store struct {
	mu      sync.Mutex
	records []Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make([]Record, 0, MaxRecords)}
}

// Append inserts rec at the end, evicting from the front until the
// bound holds again.
func (s *Store) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	for len(s.records) > MaxRecords {
		s.records = s.records[1:]
	}
}

// Snapshot returns a copy of the current contents in insertion order,
// plus the count. Later appends never mutate the returned slice.
func (s *Store) Snapshot() ([]Record, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, len(out)
}

// Clear empties the log and returns the number of records removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	s.records = make([]Record, 0, MaxRecords)
	return n
}

// Len returns the current record count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
