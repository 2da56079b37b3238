package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homewatch-io/homewatch/internal/config"
	"github.com/homewatch-io/homewatch/internal/engine"
	"github.com/homewatch-io/homewatch/internal/event"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *engine.Engine) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	eng, err := engine.New(cfg, engine.Options{})
	require.NoError(t, err)
	eng.Start(context.Background())
	t.Cleanup(eng.Shutdown)

	srv := httptest.NewServer(New(eng, nil))
	t.Cleanup(srv.Close)
	return srv, eng
}

func assessBody(requestID string, ts time.Time) string {
	return fmt.Sprintf(`{
		"request_id": %q,
		"home_mode": "away",
		"events": [
			{"type": "doorbell_chime", "timestamp": %d, "location": "front_door", "confidence": 0.9},
			{"type": "motion", "timestamp": %d, "location": "front_door", "confidence": 0.9,
			 "metadata": {"duration": 8}}
		]
	}`, requestID, ts.Unix(), ts.Add(3*time.Second).Unix())
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAssessEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/v1/assess", assessBody("api-1", time.Now().Add(-time.Minute)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[event.Result](t, resp)
	require.Equal(t, "api-1", res.RequestID)
	require.NotEmpty(t, res.Reasoning)
	require.GreaterOrEqual(t, res.Score, 0.0)
	require.LessOrEqual(t, res.Score, 1.0)
}

func TestAssessEndpoint_Rejections(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"events":`, http.StatusBadRequest},
		{"no events", `{"home_mode":"home","events":[]}`, http.StatusBadRequest},
		{"bad confidence", fmt.Sprintf(`{"events":[{"type":"motion","timestamp":%d,"confidence":2}]}`,
			time.Now().Unix()), http.StatusBadRequest},
		{"oversized", `{"pad":"` + strings.Repeat("x", 101*1024) + `"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/v1/assess", tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			e := decode[map[string]string](t, resp)
			require.NotEmpty(t, e["error"])
		})
	}
}

func TestAssessEndpoint_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Admission.Capacity = 1
		cfg.Admission.RefillPerSec = 0.001
	})

	resp := postJSON(t, srv.URL+"/v1/assess", assessBody("rl-1", time.Now()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/v1/assess", assessBody("rl-2", time.Now()))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestBatchEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)

	body := fmt.Sprintf(`[%s, %s]`,
		assessBody("batch-1", time.Now().Add(-2*time.Minute)),
		assessBody("batch-2", time.Now().Add(-time.Minute)))
	resp := postJSON(t, srv.URL+"/v1/assess/batch", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	out := decode[map[string]interface{}](t, resp)
	require.EqualValues(t, 2, out["total"])
	require.EqualValues(t, 2, out["queued"])

	require.Eventually(t, func() bool {
		_, ok := eng.Trail().Get("batch-2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeedbackEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/v1/feedback",
		`{"event_type":"doorbell_chime","was_false_positive":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]interface{}](t, resp)
	require.Equal(t, true, out["applied"])
	require.Greater(t, eng.PatternsSnapshot()["doorbell_chime"], 0.0)

	resp = postJSON(t, srv.URL+"/v1/feedback", `{"was_false_positive":true}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfigEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tc := decode[map[string]interface{}](t, resp)
	require.EqualValues(t, 1.3, tc["night_vigilance_boost"])

	// tighten one knob through the API
	resp = postJSON(t, srv.URL+"/v1/config", `{"night_vigilance_boost": 1.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	tc = decode[map[string]interface{}](t, resp)
	require.EqualValues(t, 1.5, tc["night_vigilance_boost"])

	// invalid values fail closed
	resp = postJSON(t, srv.URL+"/v1/config", `{"night_vigilance_boost": 9}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	tc = decode[map[string]interface{}](t, resp)
	require.EqualValues(t, 1.5, tc["night_vigilance_boost"], "previous config must survive a bad update")
}

func TestAuditEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/v1/assess", assessBody("audit-1", time.Now().Add(-time.Minute)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/v1/audit/audit-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode[map[string]interface{}](t, resp)
	require.Equal(t, "audit-1", entry["request_id"])
	require.NotEmpty(t, entry["input_hash"])

	resp, err = http.Get(srv.URL + "/v1/audit/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/audit/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]map[string]interface{}](t, resp)
	require.Len(t, all, 1)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[map[string]interface{}](t, resp)
	require.Equal(t, "healthy", h["status"])
	require.Equal(t, "full", h["mode"])

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
