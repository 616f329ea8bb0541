package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	report  HealthReport
	details []WorkerDetail
}

func (s *staticSource) Health() HealthReport          { return s.report }
func (s *staticSource) WorkerDetails() []WorkerDetail { return s.details }

func newTestRouter(source HealthSource) *mux.Router {
	srv := NewServer(":0", source, http.NotFoundHandler())
	return srv.srv.Handler.(*mux.Router)
}

func TestHealthAnswers200WhenHealthy(t *testing.T) {
	source := &staticSource{report: HealthReport{
		Status:    "healthy",
		Workers:   map[string]string{"golden": "healthy"},
		UptimeSec: 120,
		Timestamp: time.Now().UTC(),
	}}
	rec := httptest.NewRecorder()
	newTestRouter(source).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "healthy", got.Status)
	require.Equal(t, "healthy", got.Workers["golden"])
}

func TestHealthAnswers503WhenDegraded(t *testing.T) {
	source := &staticSource{report: HealthReport{Status: "degraded"}}
	rec := httptest.NewRecorder()
	newTestRouter(source).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWorkersListsDetails(t *testing.T) {
	source := &staticSource{details: []WorkerDetail{
		{Strategy: "golden", State: "healthy", Scans: 10, Signals: 3},
		{Strategy: "strat322", State: "degraded", Errors: 25},
	}}
	rec := httptest.NewRecorder()
	newTestRouter(source).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []WorkerDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "golden", got[0].Strategy)
	require.EqualValues(t, 25, got[1].Errors)
}

func TestHealthRejectsPost(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&staticSource{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
