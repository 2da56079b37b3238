package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/homewatch-io/homewatch/internal/event"
)

var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func validEvent() event.Event {
	return event.Event{
		ID:         "e-1",
		Type:       "motion",
		Timestamp:  testNow.Add(-10 * time.Second),
		Location:   "front_door",
		Confidence: 0.9,
	}
}

func TestRawRequest(t *testing.T) {
	cases := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{"valid", []byte(`{"events":[{"type":"motion"}]}`), false},
		{"empty", nil, true},
		{"malformed", []byte(`{"events":`), true},
		{"oversized", []byte(`{"pad":"` + strings.Repeat("x", MaxRequestBytes) + `"}`), true},
		{"too deep", []byte(strings.Repeat(`{"a":`, MaxDepth+2) + `1` + strings.Repeat(`}`, MaxDepth+2)), true},
		{"array too long", []byte(`{"a":[` + strings.TrimSuffix(strings.Repeat("1,", MaxArrayElements+1), ",") + `]}`), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RawRequest(tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("RawRequest err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				var re *RequestError
				if !errors.As(err, &re) {
					t.Fatalf("error type = %T, want *RequestError", err)
				}
			}
		})
	}
}

func TestEvent(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*event.Event)
		wantErr string
	}{
		{"valid", func(*event.Event) {}, ""},
		{"missing type", func(e *event.Event) { e.Type = "" }, "type"},
		{"location too long", func(e *event.Event) { e.Location = strings.Repeat("x", MaxLocationChars+1) }, "location"},
		{"confidence below range", func(e *event.Event) { e.Confidence = -0.1 }, "confidence"},
		{"confidence above range", func(e *event.Event) { e.Confidence = 1.1 }, "confidence"},
		{"zero timestamp", func(e *event.Event) { e.Timestamp = time.Time{} }, "timestamp"},
		{"stale timestamp", func(e *event.Event) { e.Timestamp = testNow.Add(-25 * time.Hour) }, "timestamp"},
		{"future timestamp", func(e *event.Event) { e.Timestamp = testNow.Add(25 * time.Hour) }, "timestamp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := validEvent()
			tc.mutate(&ev)
			err := Event(&ev, testNow)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			var re *RequestError
			if !errors.As(err, &re) {
				t.Fatalf("error type = %T, want *RequestError", err)
			}
			if re.Field != tc.wantErr {
				t.Fatalf("field = %q, want %q", re.Field, tc.wantErr)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if Request(nil, testNow) == nil {
			t.Fatal("nil request must be rejected")
		}
	})
	t.Run("no events", func(t *testing.T) {
		if Request(&event.Request{}, testNow) == nil {
			t.Fatal("empty event list must be rejected")
		}
	})
	t.Run("too many events", func(t *testing.T) {
		req := &event.Request{Events: make([]*event.Event, MaxEvents+1)}
		for i := range req.Events {
			ev := validEvent()
			ev.ID = fmt.Sprintf("e-%d", i)
			req.Events[i] = &ev
		}
		if Request(req, testNow) == nil {
			t.Fatal("over-limit batch must be rejected")
		}
	})
	t.Run("nil event", func(t *testing.T) {
		good := validEvent()
		req := &event.Request{Events: []*event.Event{&good, nil}}
		if Request(req, testNow) == nil {
			t.Fatal("nil event must be rejected")
		}
	})
	t.Run("bad event is addressed", func(t *testing.T) {
		good := validEvent()
		bad := validEvent()
		bad.Confidence = 2
		req := &event.Request{Events: []*event.Event{&good, &bad}}
		err := Request(req, testNow)
		if err == nil {
			t.Fatal("expected error")
		}
		var re *RequestError
		if !errors.As(err, &re) {
			t.Fatalf("error type = %T", err)
		}
		if re.Field != "events[1].confidence" {
			t.Fatalf("field = %q, want events[1].confidence", re.Field)
		}
	})
	t.Run("valid batch", func(t *testing.T) {
		a, b := validEvent(), validEvent()
		req := &event.Request{Events: []*event.Event{&a, &b}}
		if err := Request(req, testNow); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
