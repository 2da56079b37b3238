// Package engine orchestrates the assessment pipeline: admission control,
// mode gating, chain analysis, zone classification, feature extraction, rule
// evaluation, evidence fusion, dampening, level mapping and audit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/homewatch-io/homewatch/internal/admission"
	"github.com/homewatch-io/homewatch/internal/audit"
	"github.com/homewatch-io/homewatch/internal/chain"
	"github.com/homewatch-io/homewatch/internal/config"
	"github.com/homewatch-io/homewatch/internal/dampening"
	"github.com/homewatch-io/homewatch/internal/event"
	"github.com/homewatch-io/homewatch/internal/extension"
	"github.com/homewatch-io/homewatch/internal/feature"
	"github.com/homewatch-io/homewatch/internal/fusion"
	"github.com/homewatch-io/homewatch/internal/metrics"
	"github.com/homewatch-io/homewatch/internal/mode"
	"github.com/homewatch-io/homewatch/internal/rules"
	"github.com/homewatch-io/homewatch/internal/store"
	"github.com/homewatch-io/homewatch/internal/zone"
)

// fallbackConfidence is reported by the Minimal/Emergency fixed assessment.
const fallbackConfidence = 0.3

// escalationSpan bounds the location history used for zone escalation.
const escalationSpan = 60 * time.Second

// maxLocationSamples caps the escalation history regardless of timestamps.
const maxLocationSamples = 256

// runtime is the config-derived state that hot-swaps atomically on reload.
type runtime struct {
	zones    *zone.Classifier
	rules    *rules.Engine
	temporal dampening.Config
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	ruleEngine, err := rules.NewEngine(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	return &runtime{
		zones:    zone.NewClassifier(cfg.Zones, cfg.Aliases),
		rules:    ruleEngine,
		temporal: cfg.Temporal,
	}, nil
}

type locSample struct {
	location string
	at       time.Time
}

// Options carries the engine's optional collaborators.
type Options struct {
	Log        *slog.Logger
	Store      *store.Store        // nil disables persistence
	Extensions *extension.Registry // nil disables post-processors
}

// Engine is the assessment core. Construct with New, then Start exactly once
// (Start is idempotent; concurrent callers all observe the single run).
type Engine struct {
	conf config.EngineConf
	log  *slog.Logger

	rt       atomic.Pointer[runtime]
	admit    *admission.Controller
	analyzer *chain.Analyzer
	patterns *dampening.UserPatterns
	modes    *mode.Controller
	health   *mode.Health
	trail    *audit.Trail
	exts     *extension.Registry
	db       *store.Store

	queue     *workQueue
	startOnce sync.Once
	started   atomic.Bool

	// consumer-owned: touched only by the queue's single consumer
	recentLocs []locSample
	lastEvent  *event.Event
}

// New builds an engine from a validated configuration.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		conf:     cfg.Engine,
		log:      log,
		admit:    admission.New(cfg.Admission.Capacity, cfg.Admission.RefillPerSec),
		analyzer: chain.NewWithCapacity(cfg.Engine.ChainCapacity),
		patterns: dampening.NewUserPatterns(),
		modes:    mode.NewController(mode.DefaultThresholds(), log),
		health:   &mode.Health{},
		trail:    audit.NewTrail(cfg.Audit.Capacity),
		exts:     opts.Extensions,
		db:       opts.Store,
	}
	e.rt.Store(rt)
	return e, nil
}

// Start brings up the consumer goroutine and restores persisted patterns.
// Safe to call concurrently; only the first call does work.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		if e.db != nil {
			if freqs, err := e.db.LoadPatterns(ctx); err != nil {
				e.log.Warn("loading persisted user patterns failed", "error", err)
			} else if len(freqs) > 0 {
				e.patterns.Restore(freqs)
				e.log.Info("restored user patterns", "count", len(freqs))
			}
		}
		e.queue = newWorkQueue(ctx, e.conf.QueueDepth, e.consume)
		e.started.Store(true)
		e.log.Info("engine started", "queue_depth", e.conf.QueueDepth)
	})
}

// Shutdown drains the queue and waits for in-flight work. Idempotent.
func (e *Engine) Shutdown() {
	if e.started.CompareAndSwap(true, false) {
		e.queue.Drain()
	}
}

// ApplyConfig hot-swaps the config-derived state. The previous runtime stays
// active if the new configuration cannot be built.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	e.rt.Store(rt)
	e.log.Info("engine configuration applied", "rules", rt.rules.Size())
	return nil
}

// Temporal returns the active temporal configuration.
func (e *Engine) Temporal() dampening.Config {
	return e.rt.Load().temporal
}

// ApplyTemporal hot-swaps only the temporal section, used by the runtime
// configuration API. Fails closed on invalid parameters.
func (e *Engine) ApplyTemporal(tc dampening.Config) error {
	if err := tc.Validate(); err != nil {
		return fmt.Errorf("temporal config: %w", err)
	}
	cur := e.rt.Load()
	e.rt.Store(&runtime{zones: cur.zones, rules: cur.rules, temporal: tc})
	e.log.Info("temporal configuration applied")
	return nil
}

// ExportAudit serializes the audit trail and best-effort archives it to the
// store. Archive failures are logged, never returned.
func (e *Engine) ExportAudit(ctx context.Context) ([]byte, error) {
	b, err := e.trail.ExportJSON()
	if err != nil {
		return nil, err
	}
	if e.db != nil {
		if err := e.db.ArchiveAudit(ctx, b); err != nil {
			e.log.Warn("archiving audit export failed", "error", err)
		}
	}
	return b, nil
}

// Trail exposes the audit trail for the read-side API.
func (e *Engine) Trail() *audit.Trail { return e.trail }

// Mode returns the current operational mode.
func (e *Engine) Mode() mode.Mode { return e.modes.Current() }

// PatternsSnapshot exposes the learned frequencies for persistence.
func (e *Engine) PatternsSnapshot() map[string]float64 { return e.patterns.Snapshot() }

// Assess runs one request through the pipeline and waits for its result.
func (e *Engine) Assess(ctx context.Context, req *event.Request) (*event.Result, error) {
	if !e.started.Load() {
		return nil, ErrNotInitialized
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if !e.admit.Allow() {
		metrics.RequestsRejected.WithLabelValues("rate_limited").Inc()
		metrics.RateLimitUtilization.Set(e.admit.Utilization())
		return nil, ErrRateLimited
	}
	metrics.RateLimitUtilization.Set(e.admit.Utilization())

	resultC := make(chan *event.Result, 1)
	if !e.queue.Submit(&assessWork{req: req, resultC: resultC}) {
		metrics.RequestsRejected.WithLabelValues("queue_full").Inc()
		return nil, fmt.Errorf("%w: queue full (depth %d)", ErrRateLimited, e.queue.Cap())
	}
	metrics.QueueUtilization.Set(float64(e.queue.Len()) / float64(e.queue.Cap()))

	timeout := time.Duration(e.conf.AssessTimeoutMs) * time.Millisecond
	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AssessAsync enqueues a request without waiting. False means the request
// was rejected by admission control or a full queue.
func (e *Engine) AssessAsync(req *event.Request) bool {
	if !e.started.Load() {
		return false
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if !e.admit.Allow() {
		metrics.RequestsRejected.WithLabelValues("rate_limited").Inc()
		return false
	}
	if !e.queue.Submit(&assessWork{req: req}) {
		metrics.RequestsRejected.WithLabelValues("queue_full").Inc()
		return false
	}
	return true
}

// Feedback records a user's verdict on a past assessment and updates the
// learned patterns. Ignored while mode is Minimal or Emergency.
func (e *Engine) Feedback(ctx context.Context, eventType string, falsePositive bool) bool {
	m := e.modes.Current()
	if !m.AllowsFusion() {
		return false
	}
	e.patterns.RecordFeedback(eventType, falsePositive, e.rt.Load().temporal.DeliveryLearningRate)
	metrics.FeedbackReceived.Inc()

	if e.db != nil {
		if err := e.db.SavePatterns(ctx, e.patterns.Snapshot()); err != nil {
			e.log.Warn("persisting user patterns failed", "error", err)
		}
	}
	return true
}

// HealthSnapshot is the observability view of the engine.
type HealthSnapshot struct {
	Status               string  `json:"status"`
	Mode                 string  `json:"mode"`
	TotalAssessments     uint64  `json:"total_assessments"`
	ErrorCount           uint64  `json:"error_count"`
	AvgLatencyMs         float64 `json:"avg_latency_ms"`
	RateLimitUtilization float64 `json:"rate_limit_utilization"`
}

// Health reports current health statistics and mode.
func (e *Engine) Health() HealthSnapshot {
	stats := e.health.Snapshot()
	m := e.modes.Current()
	status := "healthy"
	if m != mode.Full {
		status = "degraded"
	}
	return HealthSnapshot{
		Status:               status,
		Mode:                 m.String(),
		TotalAssessments:     stats.TotalAssessments,
		ErrorCount:           stats.ErrorCount,
		AvgLatencyMs:         stats.AvgLatencyMs,
		RateLimitUtilization: e.admit.Utilization(),
	}
}

// consume runs on the single queue consumer.
func (e *Engine) consume(w *assessWork) {
	res := e.process(w.req)
	if w.resultC != nil {
		w.resultC <- res
	}
}

// process executes the full pipeline for one request. It never panics out:
// an internal fault downgrades to the fixed fallback assessment.
func (e *Engine) process(req *event.Request) (res *event.Result) {
	start := time.Now()
	m := e.modes.Current()
	metrics.OperationalMode.Set(float64(m))

	failed := false
	defer func() {
		if r := recover(); r != nil {
			failed = true
			e.log.Error("assessment panicked, returning fallback", "request_id", req.RequestID, "panic", r)
			res = e.fallback(req, start, "internal fault: fixed safe fallback")
		}
		elapsed := time.Since(start)
		e.health.Record(elapsed, failed)
		e.modes.Observe(e.health.Snapshot().Signals())
		metrics.AssessmentDuration.Observe(float64(elapsed) / float64(time.Millisecond))
		if res != nil {
			metrics.AssessmentsTotal.WithLabelValues(res.ThreatLevel.String()).Inc()
		}
	}()

	if !m.AllowsPipeline() {
		// Emergency: constant-time fixed assessment, pipeline untouched.
		// Health is still recorded so the controller can observe recovery.
		res = e.fallback(req, start, "emergency mode: fixed safe fallback")
		return res
	}

	res = e.assess(req, m, start)
	return res
}

func (e *Engine) assess(req *event.Request, m mode.Mode, start time.Time) *event.Result {
	rt := e.rt.Load()
	primary := req.Primary()
	if primary == nil {
		return e.fallback(req, start, "empty request")
	}

	// Chain analysis over every event in timestamp order; the pattern from
	// the final insert reflects the whole request.
	events := make([]*event.Event, 0, len(req.Events))
	for _, ev := range req.Events {
		if ev != nil {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	var pattern *chain.Pattern
	var previous *event.Event
	for _, ev := range events {
		pattern = e.analyzer.Analyze(ev)
		if ev != primary {
			previous = ev
		}
		e.recentLocs = append(e.recentLocs, locSample{location: ev.Location, at: ev.Timestamp})
	}
	if previous == nil {
		previous = e.lastEvent
	}
	e.lastEvent = primary
	if pattern != nil {
		metrics.ChainPatternsDetected.WithLabelValues(pattern.Name).Inc()
	}

	z := rt.zones.Classify(primary.Location)
	escalation := rt.zones.Escalation(e.locationSequence(primary.Timestamp))

	if !m.AllowsFusion() {
		// Minimal: window stays warm but fusion is bypassed.
		res := e.fallback(req, start, "minimal mode: fusion bypassed")
		e.record(req, primary, map[string]float64{"final_score": res.Score}, res)
		return res
	}

	features := feature.Extract(primary, feature.Context{
		Zone:       z,
		Escalation: escalation,
		HomeMode:   req.HomeMode,
		Previous:   previous,
	})

	ruleRes := rt.rules.Evaluate(primary, features)

	var chainDelta float64
	if pattern != nil {
		chainDelta = pattern.Delta
	}
	fused := fusion.Fuse(fusion.Inputs{
		Features:   features,
		RuleScore:  ruleRes.RiskScore,
		RuleHits:   ruleRes.Factors,
		ChainDelta: chainDelta,
	})

	score, applied := dampening.Apply(rt.temporal, e.patterns, dampening.Inputs{
		Score:         fused.FinalScore,
		EventType:     primary.Type,
		Timestamp:     primary.Timestamp,
		HomeMode:      req.HomeMode,
		Critical:      primary.IsCritical(),
		PetClassified: features.Get("is_pet") == 1,
		DeliveryLike:  isDeliveryLike(pattern, primary),
	})

	res := &event.Result{
		RequestID:        req.RequestID,
		ThreatLevel:      event.LevelFromScore(score),
		Confidence:       fused.Confidence,
		Score:            score,
		Reasoning:        buildReasoning(z, pattern, ruleRes, fused, applied),
		ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp:        time.Now().UTC(),
	}

	if m.AllowsExtensions() && e.exts != nil {
		if failures := e.exts.RunAll(context.Background(), primary, res); failures > 0 {
			metrics.ExtensionFailures.Add(float64(failures))
			for i := 0; i < failures; i++ {
				e.health.RecordError()
			}
		}
	}

	scores := map[string]float64{
		"zone_risk":         z.BaseRisk,
		"escalation":        escalation,
		"chain_delta":       chainDelta,
		"rule_score":        ruleRes.RiskScore,
		"fused_score":       fused.FinalScore,
		"rule_contribution": fused.RuleContribution,
		"final_score":       score,
	}
	e.record(req, primary, scores, res)
	return res
}

// locationSequence returns recent locations within the escalation span,
// oldest first, and trims expired samples.
func (e *Engine) locationSequence(now time.Time) []string {
	cutoff := now.Add(-escalationSpan)
	trim := 0
	for trim < len(e.recentLocs) && e.recentLocs[trim].at.Before(cutoff) {
		trim++
	}
	e.recentLocs = e.recentLocs[trim:]
	if len(e.recentLocs) > maxLocationSamples {
		e.recentLocs = e.recentLocs[len(e.recentLocs)-maxLocationSamples:]
	}
	seq := make([]string, len(e.recentLocs))
	for i, s := range e.recentLocs {
		seq[i] = s.location
	}
	return seq
}

func (e *Engine) fallback(req *event.Request, start time.Time, reasoning string) *event.Result {
	return &event.Result{
		RequestID:        req.RequestID,
		ThreatLevel:      event.LevelStandard,
		Confidence:       fallbackConfidence,
		Score:            0.5,
		Reasoning:        reasoning,
		ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp:        time.Now().UTC(),
	}
}

func (e *Engine) record(req *event.Request, primary *event.Event, scores map[string]float64, res *event.Result) {
	hashInput := fmt.Sprintf("%s|%s|%d|%s",
		strings.ToLower(primary.Type),
		strings.ToLower(primary.Location),
		primary.Timestamp.Unix(),
		strings.ToLower(req.HomeMode),
	)
	e.trail.Record(audit.Entry{
		RequestID:          req.RequestID,
		InputHash:          audit.HashInput([]byte(hashInput)),
		IntermediateScores: scores,
		FinalThreatLevel:   res.ThreatLevel.String(),
		Timestamp:          res.Timestamp,
	})
}

func isDeliveryLike(pattern *chain.Pattern, primary *event.Event) bool {
	if pattern != nil && pattern.Name == "package_delivery" {
		return true
	}
	return strings.ToLower(primary.Type) == "doorbell_chime"
}

func buildReasoning(z zone.Zone, pattern *chain.Pattern, ruleRes rules.Result, fused fusion.Result, applied []string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("zone %s (%s, risk %.2f)", z.Name, z.Type, z.BaseRisk))
	if pattern != nil {
		parts = append(parts, fmt.Sprintf("pattern %s: %s", pattern.Name, pattern.Reasoning))
	}
	if len(ruleRes.Factors) > 0 {
		parts = append(parts, "rules: "+strings.Join(ruleRes.Factors, ", "))
	}
	if len(fused.Explanation) > 0 {
		top := fused.Explanation
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, len(top))
		for i, f := range top {
			names[i] = f.Name
		}
		parts = append(parts, "evidence: "+strings.Join(names, ", "))
	}
	if len(applied) > 0 {
		parts = append(parts, "adjustments: "+strings.Join(applied, ", "))
	}
	return strings.Join(parts, "; ")
}
