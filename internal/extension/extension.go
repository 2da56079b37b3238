// Package extension hosts optional post-processors that run after the core
// pipeline has produced a result. Extensions may annotate the result but the
// fusion pipeline never depends on them; a missing or failing extension only
// shows up as a health signal.
package extension

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/homewatch-io/homewatch/internal/event"
)

// Extension is the capability interface for post-processors.
type Extension interface {
	// Name returns the string key the extension is registered under.
	Name() string
	// Process may annotate the result. It must not mutate the event.
	Process(ctx context.Context, ev *event.Event, res *event.Result) error
}

// DecodeSettings maps an extension's raw configuration block onto its typed
// settings struct.
func DecodeSettings(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("extension settings decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode extension settings: %w", err)
	}
	return nil
}

// Noop satisfies Extension and does nothing. It is the default stand-in for
// any configured extension whose implementation is absent.
type Noop struct {
	ExtName string
}

func (n Noop) Name() string { return n.ExtName }

func (Noop) Process(context.Context, *event.Event, *event.Result) error { return nil }

// alerterSettings configures the threshold alerter.
type alerterSettings struct {
	Threshold float64 `mapstructure:"threshold"`
	Note      string  `mapstructure:"note"`
}

// ThresholdAlerter appends a note to the reasoning string whenever the fused
// score crosses its threshold.
type ThresholdAlerter struct {
	settings alerterSettings
}

// NewThresholdAlerter builds the alerter from raw settings. Defaults:
// threshold 0.7, a generic note.
func NewThresholdAlerter(raw map[string]interface{}) (*ThresholdAlerter, error) {
	s := alerterSettings{Threshold: 0.7, Note: "review recommended"}
	if err := DecodeSettings(raw, &s); err != nil {
		return nil, err
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return nil, fmt.Errorf("threshold_alerter: threshold %v outside [0,1]", s.Threshold)
	}
	return &ThresholdAlerter{settings: s}, nil
}

func (a *ThresholdAlerter) Name() string { return "threshold_alerter" }

func (a *ThresholdAlerter) Process(_ context.Context, _ *event.Event, res *event.Result) error {
	if res == nil || res.Score < a.settings.Threshold {
		return nil
	}
	if res.Reasoning != "" {
		res.Reasoning += "; "
	}
	res.Reasoning += a.settings.Note
	return nil
}
