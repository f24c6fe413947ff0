// Package test holds end-to-end tests wiring configuration, capture,
// controller, publishing and the HTTP API together.
package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-ppg/api"
	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/config"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/profiler"
	"github.com/nvr-ai/go-ppg/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	source capture.Source
	ctrl   *controller.Controller
	hub    *publish.Hub
	srv    *httptest.Server
}

func newStack(t *testing.T, mutate func(cfg *config.Config)) *stack {
	t.Helper()

	cfg := config.Default()
	cfg.Source.Kind = config.SourceSimulator
	cfg.Source.Simulator.Illumination = true
	cfg.Publish.WebSocket.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	source, err := cfg.NewSource()
	require.NoError(t, err)

	prof := profiler.New(profiler.Options{})
	ctrl := controller.New(source, cfg.Controller(), prof)
	prof.AddCollector(ctrl)

	hub := publish.NewHub(publish.JSONCodec{}, nil)
	ctrl.Subscribe(hub)

	srv := httptest.NewServer(api.NewServer(ctrl, api.Options{Stream: hub, Profiler: prof}).Router())
	t.Cleanup(func() {
		_ = ctrl.Close()
		hub.Close()
		srv.Close()
	})
	return &stack{source: source, ctrl: ctrl, hub: hub, srv: srv}
}

func (s *stack) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.srv.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) get(t *testing.T, path string, out any) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (s *stack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor reads displays until match accepts one or the deadline passes.
func waitFor(t *testing.T, conn *websocket.Conn, timeout time.Duration, match func(d controller.Display) bool) controller.Display {
	t.Helper()
	deadline := time.Now().Add(timeout)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "no matching display before the deadline")

		var d controller.Display
		require.NoError(t, json.Unmarshal(data, &d))
		if match(d) {
			return d
		}
	}
}

func TestMeasurementOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("realtime simulation")
	}
	s := newStack(t, nil)
	conn := s.dial(t)

	resp := s.post(t, "/v1/session/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	measuring := waitFor(t, conn, 15*time.Second, func(d controller.Display) bool {
		return d.State == controller.Measuring && d.BPM != nil && *d.BPM >= 68 && *d.BPM <= 72
	})
	assert.Equal(t, 100, measuring.QualityPercent)
	assert.True(t, measuring.FingerPresent)
	assert.Empty(t, measuring.Advisory)
	assert.NotEmpty(t, measuring.SessionID)

	var status api.StatusResponse
	s.get(t, "/v1/session", &status)
	assert.True(t, status.Active)

	resp = s.post(t, "/v1/session/stop")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	waitFor(t, conn, 2*time.Second, func(d controller.Display) bool {
		return d.State == controller.Stopped
	})

	var summary ppg.Summary
	s.get(t, "/v1/session/summary", &summary)
	assert.Greater(t, summary.Beats, 3)
	assert.InDelta(t, 70, summary.MeanBPM, 3)
	assert.InDelta(t, 1.0, summary.ContactRatio, 1e-9)

	var snap profiler.Snapshot
	s.get(t, "/v1/metrics", &snap)
	assert.Contains(t, snap.Operations, "controller.frame")
}

func TestSignalLossOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("realtime simulation")
	}
	s := newStack(t, nil)
	sim, ok := s.source.(*capture.Simulator)
	require.True(t, ok)
	conn := s.dial(t)

	require.Equal(t, http.StatusOK, s.post(t, "/v1/session/start").StatusCode)
	waitFor(t, conn, 15*time.Second, func(d controller.Display) bool {
		return d.State == controller.Measuring && d.BPM != nil
	})

	sim.SetContact(false)
	lost := waitFor(t, conn, 2*time.Second, func(d controller.Display) bool { return !d.FingerPresent })
	assert.Nil(t, lost.BPM)
	assert.Zero(t, lost.QualityPercent)
	assert.Equal(t, controller.AdvisoryPlaceFinger, lost.Message)
	assert.Equal(t, controller.Measuring, lost.State, "signal loss does not leave measuring")

	sim.SetContact(true)
	back := waitFor(t, conn, 5*time.Second, func(d controller.Display) bool { return d.BPM != nil })
	assert.GreaterOrEqual(t, back.QualityPercent, 80)
}

func TestCameraUnavailableOverHTTP(t *testing.T) {
	s := newStack(t, func(cfg *config.Config) {
		cfg.Source.Simulator.FailAcquire = true
	})

	resp := s.post(t, "/v1/session/start")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var status api.StatusResponse
	s.get(t, "/v1/session", &status)
	assert.Equal(t, controller.Stopped, status.State)
	assert.Equal(t, controller.AdvisoryCameraUnavailable, status.Display.Advisory)
}
