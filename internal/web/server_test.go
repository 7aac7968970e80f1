package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeena-krishna/system-monitor/internal/alerts"
	"github.com/jeena-krishna/system-monitor/internal/collector"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/jeena-krishna/system-monitor/internal/monitor"
	"github.com/jeena-krishna/system-monitor/internal/platform"
	"github.com/jeena-krishna/system-monitor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	store  store.Store
	engine *alerts.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Default()
	st, err := store.New(store.Config{
		DBPath: filepath.Join(t.TempDir(), "sysmond.db"),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	engine, err := alerts.NewEngine(alerts.DefaultConfig(), st, log)
	require.NoError(t, err)

	svc, err := monitor.NewService(monitor.Config{
		CollectInterval: 5 * time.Second,
		PruneInterval:   time.Hour,
		Retention:       24 * time.Hour,
	}, platform.New(platform.DefaultConfig()), collector.NewNormalizer(log, 10), st, engine, log)
	require.NoError(t, err)

	srv := NewServer(":0", st, engine, svc, log)

	return &testEnv{router: srv.routes(), store: st, engine: engine}
}

func (e *testEnv) request(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) insertSnapshot(t *testing.T, ts time.Time, cpuPct float64) {
	t.Helper()

	require.NoError(t, e.store.Insert(context.Background(), &metrics.Snapshot{
		Timestamp: ts,
		CPU:       metrics.CPUMetrics{TotalPct: cpuPct},
		Memory:    metrics.MemoryMetrics{UsedPct: 40},
	}))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLatest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/metrics/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code, "No snapshot collected yet")

	env.insertSnapshot(t, time.Now(), 37.5)

	rec = env.request(t, http.MethodGet, "/api/metrics/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.InDelta(t, 37.5, snapshot.CPU.TotalPct, 0.001)
}

func TestHistoryRaw(t *testing.T) {
	env := newTestEnv(t)

	base := time.Now().Add(-10 * time.Minute)
	for i := 0; i < 3; i++ {
		env.insertSnapshot(t, base.Add(time.Duration(i)*time.Minute), float64(10*i))
	}

	from := base.Add(-time.Minute).UTC().Format(time.RFC3339)
	rec := env.request(t, http.MethodGet, "/api/metrics/history?from="+from)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Snapshots []metrics.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Snapshots, 3)
}

func TestHistoryBucketed(t *testing.T) {
	env := newTestEnv(t)

	base := time.Now().Add(-10 * time.Minute)
	for i := 0; i < 4; i++ {
		env.insertSnapshot(t, base.Add(time.Duration(i)*30*time.Second), float64(10*(i+1)))
	}

	from := base.UTC().Format(time.RFC3339)
	rec := env.request(t, http.MethodGet, "/api/metrics/history?from="+from+"&bucket=1m")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bucket  string                  `json:"bucket"`
		Buckets []store.AggregateBucket `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1m0s", body.Bucket)
	assert.NotEmpty(t, body.Buckets)
}

func TestHistoryRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/metrics/history?bucket=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/metrics/history?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_argument", body.Code)
}

func TestAlertEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.request(t, http.MethodGet, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// Drive one crossing through the engine.
	transitions, err := env.engine.Evaluate(ctx, &metrics.Snapshot{
		Timestamp: time.Now(),
		CPU:       metrics.CPUMetrics{TotalPct: 91},
		Memory:    metrics.MemoryMetrics{UsedPct: 40},
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	id := transitions[0].Alert.ID

	rec = env.request(t, http.MethodGet, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var open []metrics.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &open))
	require.Len(t, open, 1)
	assert.Equal(t, metrics.SeverityCritical, open[0].Severity)

	rec = env.request(t, http.MethodPost, "/api/alerts/"+id+"/acknowledge")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/alerts/unknown-id/acknowledge")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/alerts/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []metrics.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = env.request(t, http.MethodGet, "/api/alerts/history?hours=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThresholds(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/alerts/thresholds")
	require.Equal(t, http.StatusOK, rec.Code)

	var thresholds map[metrics.Kind]alerts.Threshold
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thresholds))
	assert.InDelta(t, 70.0, thresholds[metrics.KindCPU].Warning, 0.001)
	assert.InDelta(t, 85.0, thresholds[metrics.KindCPU].Critical, 0.001)
	assert.Equal(t, alerts.ComparisonBelow, thresholds[metrics.KindBattery].Comparison)
}

func TestSystem(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/system")
	require.Equal(t, http.StatusOK, rec.Code)

	var host metrics.HostInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &host))
}
