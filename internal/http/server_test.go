package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/causalityd/internal/tracker"
)

func newTestServer(t *testing.T) (*Server, *tracker.Tracker) {
	t.Helper()

	trk, err := tracker.New(nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(trk.Destroy)

	srv, err := NewServer(trk, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv, trk
}

func doGet(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	t.Parallel()

	trk, err := tracker.New(nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(trk.Destroy)

	_, err = NewServer(nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(trk, nil, nil)
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doGet(srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleChains_All(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	_, err := trk.StartChain(tracker.EventUserAction, "first")
	require.NoError(t, err)
	_, err = trk.StartChain(tracker.EventAPICall, "second")
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/chains")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChainsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Chains, 2)
}

func TestHandleChains_Filtered(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	failing, err := trk.StartChain(tracker.EventAPICall, "failing", tracker.WithTags("payment"))
	require.NoError(t, err)
	evtID, err := trk.AddEvent(tracker.EventAPICall, "charge", tracker.InChain(failing))
	require.NoError(t, err)
	trk.CompleteEvent(evtID, errors.New("declined"))

	_, err = trk.StartChain(tracker.EventUserAction, "healthy")
	require.NoError(t, err)

	query := url.Values{}
	query.Set("root_type", "api_call")
	query.Set("tags", "payment")
	query.Set("has_errors", "true")

	rec := doGet(srv, "/api/v1/chains?"+query.Encode())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChainsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, failing, resp.Chains[0].ID)
}

func TestHandleChains_TimeWindow(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	_, err := trk.StartChain(tracker.EventUserAction, "now-ish")
	require.NoError(t, err)

	since := time.Now().Add(-time.Minute).Format(time.RFC3339)
	rec := doGet(srv, "/api/v1/chains?since="+url.QueryEscape(since))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChainsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	future := time.Now().Add(time.Hour).Format(time.RFC3339)
	rec = doGet(srv, "/api/v1/chains?since="+url.QueryEscape(future))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestHandleChains_BadQuery(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	for _, path := range []string{
		"/api/v1/chains?root_type=bogus",
		"/api/v1/chains?since=yesterday",
		"/api/v1/chains?until=tomorrow",
		"/api/v1/chains?has_errors=maybe",
	} {
		rec := doGet(srv, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestHandleExport(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	chainID, err := trk.StartChain(tracker.EventUserAction, "exported")
	require.NoError(t, err)
	_, err = trk.AddEvent(tracker.EventAPICall, "call", tracker.InChain(chainID))
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/chains/"+chainID+"/export")
	require.Equal(t, http.StatusOK, rec.Code)

	var export tracker.ChainExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, chainID, export.Chain.ID)
	assert.Len(t, export.Timeline, 2)
}

func TestHandleExport_NotFound(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doGet(srv, "/api/v1/chains/chain_missing/export")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTimeline(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	chainID, err := trk.StartChain(tracker.EventUserAction, "root")
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/chains/"+chainID+"/timeline")
	require.Equal(t, http.StatusOK, rec.Code)

	var timeline []tracker.TimelineEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline, 1)
	assert.Equal(t, "root", timeline[0].Event.Description)
}

func TestHandlePerformance(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	chainID, err := trk.StartChain(tracker.EventAPICall, "perf")
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/chains/"+chainID+"/performance")
	require.Equal(t, http.StatusOK, rec.Code)

	var impact tracker.PerformanceImpact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &impact))
	assert.Zero(t, impact.ErrorCount)
}

func TestHandleStats(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	_, err := trk.StartChain(tracker.EventUserAction, "counted")
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats tracker.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.LiveChains)
	assert.Equal(t, int64(1), stats.ChainsStarted)
}

func TestHandleContext(t *testing.T) {
	t.Parallel()
	srv, trk := newTestServer(t)

	chainID, err := trk.StartChain(tracker.EventUserAction, "active")
	require.NoError(t, err)

	rec := doGet(srv, "/api/v1/context")
	require.Equal(t, http.StatusOK, rec.Code)

	var cc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cc))
	assert.Equal(t, chainID, cc["causalityChainId"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doGet(srv, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
