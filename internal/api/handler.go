// Package api exposes the local operator HTTP surface: assessment ingestion,
// feedback, runtime configuration, health and the audit trail.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homewatch-io/homewatch/internal/engine"
	"github.com/homewatch-io/homewatch/internal/event"
	"github.com/homewatch-io/homewatch/internal/validate"
)

const maxBatchRequests = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng *engine.Engine
	mux *http.ServeMux
	log *slog.Logger
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{eng: eng, mux: http.NewServeMux(), log: log}

	h.mux.HandleFunc("POST /v1/assess", h.assess)
	h.mux.HandleFunc("POST /v1/assess/batch", h.assessBatch)
	h.mux.HandleFunc("POST /v1/feedback", h.feedback)
	h.mux.HandleFunc("GET /v1/config", h.getConfig)
	h.mux.HandleFunc("POST /v1/config", h.setConfig)
	h.mux.HandleFunc("GET /v1/health", h.health)
	h.mux.HandleFunc("GET /v1/audit/export", h.auditExport)
	h.mux.HandleFunc("GET /v1/audit/{id}", h.auditGet)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.logging(h.mux)
}

// readBody enforces the request size bound before any decoding.
func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, validate.MaxRequestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if err := validate.RawRequest(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// POST /v1/assess: synchronous single-request assessment.
func (h *Handler) assess(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	var req event.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	now := time.Now()
	if err := validate.Request(&req, now); err != nil {
		writeEngineError(w, err)
		return
	}
	for _, ev := range req.Events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		ev.ReceivedAt = now
	}

	res, err := h.eng.Assess(r.Context(), &req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/assess/batch: async ingestion of up to 100 requests.
func (h *Handler) assessBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	var reqs []*event.Request
	if err := json.Unmarshal(raw, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one request")
		return
	}
	if len(reqs) > maxBatchRequests {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("batch size %d exceeds max %d", len(reqs), maxBatchRequests))
		return
	}

	now := time.Now()
	jobID := uuid.New().String()
	queued := 0
	for _, req := range reqs {
		if err := validate.Request(req, now); err != nil {
			continue
		}
		for _, ev := range req.Events {
			if ev.ID == "" {
				ev.ID = uuid.New().String()
			}
			ev.ReceivedAt = now
		}
		if h.eng.AssessAsync(req) {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(reqs),
		"queued":   queued,
		"rejected": len(reqs) - queued,
	})
}

type feedbackRequest struct {
	EventType        string `json:"event_type"`
	WasFalsePositive bool   `json:"was_false_positive"`
}

// POST /v1/feedback: online user-pattern learning.
func (h *Handler) feedback(w http.ResponseWriter, r *http.Request) {
	var fb feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if fb.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}
	applied := h.eng.Feedback(r.Context(), fb.EventType, fb.WasFalsePositive)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied": applied,
		"mode":    h.eng.Mode().String(),
	})
}

// GET /v1/config: current temporal configuration.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Temporal())
}

// POST /v1/config: replace the temporal configuration, fail closed.
func (h *Handler) setConfig(w http.ResponseWriter, r *http.Request) {
	tc := h.eng.Temporal()
	if err := json.NewDecoder(r.Body).Decode(&tc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := h.eng.ApplyTemporal(tc); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

// GET /v1/health: engine health snapshot.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Health())
}

// GET /v1/audit/{id}: one audit entry.
func (h *Handler) auditGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := h.eng.Trail().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no audit entry for request %q", id))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GET /v1/audit/export: all retained entries, archived best-effort.
func (h *Handler) auditExport(w http.ResponseWriter, r *http.Request) {
	b, err := h.eng.ExportAudit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 while the engine is not in Full or Degraded mode.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	m := h.eng.Mode()
	if !m.AllowsFusion() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"mode":   m.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"mode":   m.String(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
