// Package audit keeps a bounded in-memory trail of completed assessments.
// Entries never contain raw event payloads, only an input hash and the
// derived scores, so the trail can be exported without leaking PII.
package audit

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// defaultCapacity bounds the ring buffer when no size is configured.
const defaultCapacity = 500

// Entry is one assessment's audit record.
type Entry struct {
	RequestID          string             `json:"request_id"`
	InputHash          string             `json:"input_hash"`
	IntermediateScores map[string]float64 `json:"intermediate_scores"`
	FinalThreatLevel   string             `json:"final_threat_level"`
	Timestamp          time.Time          `json:"timestamp"`
}

// Trail is an append-only ring buffer. Oldest entries are dropped once the
// capacity is reached; Record is O(1) and never blocks on I/O.
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	size    int
	byID    map[string]int
}

// NewTrail creates a trail holding at most capacity entries. A non-positive
// capacity falls back to the default.
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Trail{
		entries: make([]Entry, capacity),
		byID:    make(map[string]int, capacity),
	}
}

// HashInput derives the stable FNV-1a digest stored in place of raw input.
func HashInput(raw []byte) string {
	h := fnv.New64a()
	h.Write(raw)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Record appends an entry, evicting the oldest when full.
func (t *Trail) Record(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := (t.head + t.size) % len(t.entries)
	if t.size == len(t.entries) {
		// overwrite the oldest slot
		evicted := t.entries[t.head]
		if idx, ok := t.byID[evicted.RequestID]; ok && idx == t.head {
			delete(t.byID, evicted.RequestID)
		}
		pos = t.head
		t.head = (t.head + 1) % len(t.entries)
	} else {
		t.size++
	}
	t.entries[pos] = e
	if e.RequestID != "" {
		t.byID[e.RequestID] = pos
	}
}

// Get returns the entry for a request id, if it is still in the buffer.
func (t *Trail) Get(requestID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byID[requestID]
	if !ok {
		return Entry{}, false
	}
	return t.entries[idx], true
}

// Recent returns up to limit entries, newest first.
func (t *Trail) Recent(limit int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 || limit > t.size {
		limit = t.size
	}
	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		pos := (t.head + t.size - 1 - i + len(t.entries)) % len(t.entries)
		out = append(out, t.entries[pos])
	}
	return out
}

// Len reports the number of retained entries.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// ExportJSON serializes all retained entries oldest first.
func (t *Trail) ExportJSON() ([]byte, error) {
	t.mu.RLock()
	all := make([]Entry, 0, t.size)
	for i := 0; i < t.size; i++ {
		all = append(all, t.entries[(t.head+i)%len(t.entries)])
	}
	t.mu.RUnlock()

	b, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("export audit trail: %w", err)
	}
	return b, nil
}
