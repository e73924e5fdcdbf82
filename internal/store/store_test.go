package store

import (
	"fmt"
	"sync"
	"testing"
)

func payloadN(n int) map[string]any {
	return map[string]any{"event": "deployment.succeeded", "seq": n}
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Append(NewRecord(payloadN(i)))
	}

	records, count := s.Snapshot()
	if count != 5 || len(records) != 5 {
		t.Fatalf("expected 5 records, got count=%d len=%d", count, len(records))
	}
	for i, rec := range records {
		if rec.Data["seq"] != i {
			t.Fatalf("record %d out of order: seq=%v", i, rec.Data["seq"])
		}
		if rec.Timestamp == 0 {
			t.Fatalf("record %d missing timestamp", i)
		}
	}
}

func TestAppendEvictsOldestAtBound(t *testing.T) {
	s := New()
	total := MaxRecords + 17
	for i := 0; i < total; i++ {
		s.Append(NewRecord(payloadN(i)))
	}

	records, count := s.Snapshot()
	if count != MaxRecords {
		t.Fatalf("expected bound of %d, got %d", MaxRecords, count)
	}
	// The survivors are the last MaxRecords appends, oldest first.
	if got := records[0].Data["seq"]; got != total-MaxRecords {
		t.Fatalf("expected oldest survivor seq=%d, got %v", total-MaxRecords, got)
	}
	if got := records[MaxRecords-1].Data["seq"]; got != total-1 {
		t.Fatalf("expected newest survivor seq=%d, got %v", total-1, got)
	}
}

func TestClearReturnsPriorCount(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.Append(NewRecord(payloadN(i)))
	}

	if n := s.Clear(); n != 3 {
		t.Fatalf("expected Clear to report 3, got %d", n)
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("expected empty store after Clear, got %d", n)
	}
	if n := s.Clear(); n != 0 {
		t.Fatalf("expected Clear on empty store to report 0, got %d", n)
	}
}

func TestSnapshotIsIsolatedFromLaterAppends(t *testing.T) {
	s := New()
	s.Append(NewRecord(payloadN(0)))

	snap, _ := s.Snapshot()
	s.Append(NewRecord(payloadN(1)))
	s.Clear()

	if len(snap) != 1 {
		t.Fatalf("snapshot mutated by later operations: len=%d", len(snap))
	}
	if snap[0].Data["seq"] != 0 {
		t.Fatalf("snapshot contents changed: %v", snap[0].Data)
	}
}

func TestConcurrentAppendsHoldTheBound(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Append(NewRecord(map[string]any{
					"event": "deployment.failed",
					"id":    fmt.Sprintf("g%d-%d", g, i),
				}))
			}
		}(g)
	}
	wg.Wait()

	records, count := s.Snapshot()
	if count != MaxRecords || len(records) != MaxRecords {
		t.Fatalf("expected exactly %d records after concurrent appends, got %d", MaxRecords, count)
	}
}
