// Package validate rejects malformed or abusive input before it reaches the
// assessment core. Everything past this boundary is typed and size-bounded.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/homewatch-io/homewatch/internal/event"
)

// Request bounds. Input outside these limits never reaches the core.
const (
	MaxRequestBytes  = 100 * 1024
	MaxDepth         = 10
	MaxArrayElements = 1000
	MaxEvents        = 100
	MaxLocationChars = 200
)

// Timestamps outside this window around the current time are rejected to
// keep the chain window from being poisoned by bogus clocks.
const maxTimestampSkew = 24 * time.Hour

// RequestError describes why a request was rejected at the boundary.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func reject(field, format string, args ...interface{}) error {
	return &RequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RawRequest checks structural bounds on the undecoded payload: total size,
// nesting depth and array sizes.
func RawRequest(raw []byte) error {
	if len(raw) == 0 {
		return reject("", "empty request body")
	}
	if len(raw) > MaxRequestBytes {
		return reject("", "request body %d bytes exceeds limit %d", len(raw), MaxRequestBytes)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return reject("", "malformed JSON: %v", err)
	}
	return checkShape(doc, 0)
}

func checkShape(v interface{}, depth int) error {
	if depth > MaxDepth {
		return reject("", "nesting depth exceeds %d levels", MaxDepth)
	}
	switch n := v.(type) {
	case map[string]interface{}:
		for _, child := range n {
			if err := checkShape(child, depth+1); err != nil {
				return err
			}
		}
	case []interface{}:
		if len(n) > MaxArrayElements {
			return reject("", "array of %d elements exceeds limit %d", len(n), MaxArrayElements)
		}
		for _, child := range n {
			if err := checkShape(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Request checks semantic bounds on the decoded request.
func Request(req *event.Request, now time.Time) error {
	if req == nil {
		return reject("", "missing request")
	}
	if len(req.Events) == 0 {
		return reject("events", "at least one event is required")
	}
	if len(req.Events) > MaxEvents {
		return reject("events", "%d events exceeds limit %d", len(req.Events), MaxEvents)
	}
	for i, ev := range req.Events {
		if ev == nil {
			return reject(fmt.Sprintf("events[%d]", i), "missing event")
		}
		if err := Event(ev, now); err != nil {
			var re *RequestError
			if errors.As(err, &re) {
				return reject(fmt.Sprintf("events[%d].%s", i, re.Field), "%s", re.Reason)
			}
			return err
		}
	}
	return nil
}

// Event checks one event's fields.
func Event(ev *event.Event, now time.Time) error {
	if ev.Type == "" {
		return reject("type", "event type is required")
	}
	if len(ev.Location) > MaxLocationChars {
		return reject("location", "location of %d chars exceeds limit %d", len(ev.Location), MaxLocationChars)
	}
	if ev.Confidence < 0 || ev.Confidence > 1 {
		return reject("confidence", "confidence %v outside [0,1]", ev.Confidence)
	}
	if ev.Timestamp.IsZero() {
		return reject("timestamp", "timestamp is required")
	}
	if skew := now.Sub(ev.Timestamp); skew > maxTimestampSkew || skew < -maxTimestampSkew {
		return reject("timestamp", "timestamp more than %s away from now", maxTimestampSkew)
	}
	return nil
}
