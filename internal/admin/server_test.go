package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arminwolf/ctm-estimator/internal/driver"
)

type mockProgress struct {
	p driver.Progress
}

func (m mockProgress) Progress() driver.Progress {
	return m.p
}

type mockRunLister struct {
	runs []RunSummary
	err  error
}

func (m mockRunLister) ListRuns(ctx context.Context, nStates, limit int) ([]RunSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

func newTestServer() *Server {
	return NewServer(":0", mockProgress{p: driver.Progress{Watermark: 100, TotalBatches: 10}}, nil)
}

func TestHandleHealthz_AlwaysOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandleProgress_EncodesProviderState(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()

	s.handleProgress(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got driver.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(100), got.Watermark)
	assert.Equal(t, uint64(10), got.TotalBatches)
}

func TestHandleProgress_UnavailableWithoutProvider(t *testing.T) {
	s := NewServer(":0", nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()

	s.handleProgress(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRuns_UnavailableWithoutLister(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()

	s.handleRuns(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRuns_ListsRecentRuns(t *testing.T) {
	s := newTestServer()
	s.SetRunLister(mockRunLister{runs: []RunSummary{
		{NStates: 4, HaltingTotal: 42, Enumeration: "reduced"},
	}}, 4)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()

	s.handleRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, uint64(42), body.Runs[0].HaltingTotal)
}

func TestHandleRuns_RespectsLimitQueryParam(t *testing.T) {
	var gotLimit int
	s := newTestServer()
	s.SetRunLister(limitCapturingLister{capture: &gotLimit}, 4)

	req := httptest.NewRequest(http.MethodGet, "/runs?limit=3", nil)
	rec := httptest.NewRecorder()
	s.handleRuns(rec, req)

	assert.Equal(t, 3, gotLimit)
}

type limitCapturingLister struct {
	capture *int
}

func (l limitCapturingLister) ListRuns(ctx context.Context, nStates, limit int) ([]RunSummary, error) {
	*l.capture = limit
	return nil, nil
}
