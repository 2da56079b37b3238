package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// The wire format carries timestamps as unix seconds (possibly fractional);
// RFC 3339 strings are accepted too for replay files and tests.

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t, nil
	}
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("timestamp %s: not finite", raw)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}

// UnmarshalJSON accepts unix-second or RFC 3339 timestamps.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	aux := struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*plain
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	return nil
}

// UnmarshalJSON accepts unix-second or RFC 3339 timestamps.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	aux := struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*plain
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	r.Timestamp = ts
	return nil
}
