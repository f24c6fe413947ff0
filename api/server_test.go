package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nvr-ai/go-ppg/capture"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/profiler"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockController records calls and returns canned values.
type MockController struct {
	state    controller.State
	startErr error
	starts   int
	stops    int
}

func (m *MockController) Start(ctx context.Context) error {
	m.starts++
	if m.startErr != nil {
		m.state = controller.Stopped
		return m.startErr
	}
	m.state = controller.Calibrating
	return nil
}

func (m *MockController) Stop() error {
	m.stops++
	m.state = controller.Stopped
	return nil
}

func (m *MockController) State() controller.State { return m.state }

func (m *MockController) Display() controller.Display {
	return controller.Display{State: m.state, QualityPercent: 40}
}

func (m *MockController) Summary() ppg.Summary {
	return ppg.Summary{Frames: 120, Beats: 6, MeanBPM: 71.5}
}

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStartSession(t *testing.T) {
	tests := []struct {
		name         string
		startErr     error
		expectedCode int
		expectState  string
	}{
		{name: "started", expectedCode: http.StatusOK, expectState: "calibrating"},
		{
			name:         "camera unavailable",
			startErr:     errors.Wrap(capture.ErrAcquisition, "device 0"),
			expectedCode: http.StatusServiceUnavailable,
		},
		{
			name:         "acquisition timeout",
			startErr:     controller.ErrAcquireTimeout,
			expectedCode: http.StatusGatewayTimeout,
		},
		{
			name:         "other failure",
			startErr:     errors.New("boom"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockController{state: controller.Idle, startErr: tt.startErr}
			rec := serve(t, NewServer(mock, Options{}), http.MethodPost, "/v1/session/start")

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, 1, mock.starts)
			if tt.startErr != nil {
				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "failed to start session", body.Error)
				assert.NotEmpty(t, body.Details)
				return
			}

			var body StatusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectState, body.State.String())
			assert.True(t, body.Active)
		})
	}
}

func TestStopSessionIsIdempotent(t *testing.T) {
	mock := &MockController{state: controller.Measuring}
	srv := NewServer(mock, Options{})

	for range 2 {
		rec := serve(t, srv, http.MethodPost, "/v1/session/stop")
		require.Equal(t, http.StatusOK, rec.Code)

		var body StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, controller.Stopped, body.State)
		assert.False(t, body.Active)
	}
	assert.Equal(t, 2, mock.stops)
}

func TestStatusAndSummary(t *testing.T) {
	mock := &MockController{state: controller.Measuring}
	srv := NewServer(mock, Options{})

	rec := serve(t, srv, http.MethodGet, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, controller.Measuring, status.State)
	assert.Equal(t, 40, status.Display.QualityPercent)

	rec = serve(t, srv, http.MethodGet, "/v1/session/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary ppg.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 120, summary.Frames)
	assert.Equal(t, 6, summary.Beats)
	assert.InDelta(t, 71.5, summary.MeanBPM, 1e-9)
}

func TestMetrics(t *testing.T) {
	prof := profiler.New(profiler.Options{})
	prof.RecordMetric("bpm", 72)

	rec := serve(t, NewServer(&MockController{}, Options{Profiler: prof}), http.MethodGet, "/v1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap profiler.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Contains(t, snap.Metrics, "bpm")
	assert.InDelta(t, 72, snap.Metrics["bpm"].Last, 1e-9)
}

func TestMetricsWithoutProfiler(t *testing.T) {
	rec := serve(t, NewServer(&MockController{}, Options{}), http.MethodGet, "/v1/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamRoute(t *testing.T) {
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := serve(t, NewServer(&MockController{}, Options{Stream: stream}), http.MethodGet, "/v1/stream")
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = serve(t, NewServer(&MockController{}, Options{}), http.MethodGet, "/v1/stream")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(&MockController{}, Options{AllowOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/session/start", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
