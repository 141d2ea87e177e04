package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/accident-hotspot-service/internal/adapter/http"
	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	"github.com/couchcryptid/accident-hotspot-service/internal/observability"
	"github.com/couchcryptid/accident-hotspot-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	resolver, err := hotspot.NewAreaResolver(hotspot.DefaultAreas())
	require.NoError(t, err)
	params := hotspot.DefaultParams()
	params.Standardize = false
	det := pipeline.NewDetector(resolver, params, nil, discardLogger(), observability.NewMetricsForTesting())
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, det, discardLogger())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(t, fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- detect endpoint ---

type detectResponse struct {
	domain.DetectionResult
	CrossTabs  map[string]domain.CrossTab      `json:"cross_tabs"`
	SeverityBy map[string]domain.SeverityTable `json:"severity_by"`
	Rejected   []struct {
		Index int    `json:"index"`
		Error string `json:"error"`
	} `json:"rejected"`
}

func rawRecord(lat, lon string, severity int) domain.RawAccidentRecord {
	return domain.RawAccidentRecord{
		DateTime:         "2024-01-05 18:45:00",
		Latitude:         lat,
		Longitude:        lon,
		Severity:         fmt.Sprint(severity),
		Weather:          "Rain",
		RoadType:         "City Road",
		VehiclesInvolved: "2",
		LightCondition:   "Dusk",
		SpeedLimit:       "50",
	}
}

func kovaipudurRecords() []domain.RawAccidentRecord {
	return []domain.RawAccidentRecord{
		rawRecord("11.0014", "76.9627", 1),
		rawRecord("11.0016", "76.9629", 2),
		rawRecord("11.0012", "76.9625", 3),
		rawRecord("11.0018", "76.9630", 4),
	}
}

func postDetect(t *testing.T, srv http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/hotspots", bytes.NewReader(data))
	srv.ServeHTTP(rec, req)
	return rec
}

func TestDetect_DefaultParams(t *testing.T) {
	srv := newTestServer(t, nil)
	records := append(kovaipudurRecords(), rawRecord("28.6139", "77.2090", 2))

	rec := postDetect(t, srv, map[string]any{"records": records})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dbscan", resp.Algorithm)
	assert.Equal(t, 1, resp.Clusters)
	assert.Equal(t, 1, resp.NoisePoints)
	require.Len(t, resp.Records, 5)
	assert.Equal(t, "Kovaipudur", resp.Records[0].Area)
	assert.Equal(t, domain.OtherArea, resp.Records[4].Area)
	assert.Equal(t, []int{0, 0, 0, 0, domain.NoiseLabel}, resp.Labeling.Labels)
	assert.Empty(t, resp.Rejected)
}

func TestDetect_OverridesAndCrossTabs(t *testing.T) {
	srv := newTestServer(t, nil)
	records := append(kovaipudurRecords(), rawRecord("10.9905", "76.9614", 1), rawRecord("10.9907", "76.9612", 2))

	rec := postDetect(t, srv, map[string]any{
		"records":      records,
		"algorithm":    "kmeans",
		"k":            2,
		"cross_tabs":   []string{"weather", "severity"},
		"omit_records": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kmeans", resp.Algorithm)
	assert.Equal(t, 2, resp.Clusters)
	assert.Len(t, resp.Labeling.Centroids, 2)
	assert.Empty(t, resp.Records)
	assert.Empty(t, resp.Labeling.Labels)

	require.Contains(t, resp.CrossTabs, "weather")
	total := 0
	for _, row := range resp.CrossTabs["weather"].Counts {
		total += row["Rain"]
	}
	assert.Equal(t, 6, total)
	assert.Contains(t, resp.CrossTabs, "severity")
}

func TestDetect_SeverityBy(t *testing.T) {
	srv := newTestServer(t, nil)
	records := append(kovaipudurRecords(), rawRecord("28.6139", "77.2090", 2))

	rec := postDetect(t, srv, map[string]any{
		"records":     records,
		"severity_by": []string{"area"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.SeverityBy, "area")
	tab := resp.SeverityBy["area"]
	assert.Equal(t, []string{"Kovaipudur", domain.OtherArea}, tab.Values)
	assert.InDelta(t, 2.5, tab.Overall["Kovaipudur"], 1e-9)
	assert.InDelta(t, 2.0, tab.Overall[domain.OtherArea], 1e-9)
	assert.Equal(t, []int{0}, tab.Clusters)
	assert.Equal(t, map[string]float64{"Kovaipudur": 2.5}, tab.ByCluster[0])
	assert.Empty(t, resp.CrossTabs)
}

func TestDetect_RejectsInvalidRows(t *testing.T) {
	srv := newTestServer(t, nil)
	records := append(kovaipudurRecords(), rawRecord("51.5", "-0.12", 2), rawRecord("11.0", "77.0", 9))

	rec := postDetect(t, srv, map[string]any{"records": records})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rejected, 2)
	assert.Equal(t, 4, resp.Rejected[0].Index)
	assert.Contains(t, resp.Rejected[0].Error, "outside India")
	assert.Equal(t, 5, resp.Rejected[1].Index)
	assert.Len(t, resp.Records, 4)
}

func TestDetect_NonFiniteValues(t *testing.T) {
	srv := newTestServer(t, nil)
	nanLat := rawRecord("NaN", "76.9627", 2)
	nanVehicles := rawRecord("11.0015", "76.9626", 2)
	nanVehicles.VehiclesInvolved = "NaN"
	nanVehicles.SpeedLimit = "Inf"
	records := append(kovaipudurRecords(), nanLat, nanVehicles)

	rec := postDetect(t, srv, map[string]any{"records": records})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.Bytes())

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 4, resp.Rejected[0].Index)
	assert.Contains(t, resp.Rejected[0].Error, "not finite")

	require.Len(t, resp.Records, 5)
	assert.Zero(t, resp.Records[4].VehiclesInvolved)
	assert.Zero(t, resp.Records[4].SpeedLimit)
	require.Len(t, resp.Stats, 1)
	assert.Equal(t, 5, resp.Stats[0].Count)
}

func TestDetect_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"k larger than batch", map[string]any{"records": kovaipudurRecords(), "algorithm": "kmeans", "k": 9}},
		{"zero eps", map[string]any{"records": kovaipudurRecords(), "eps": 0}},
		{"unknown algorithm", map[string]any{"records": kovaipudurRecords(), "algorithm": "optics"}},
		{"unknown feature", map[string]any{"records": kovaipudurRecords(), "features": []string{"altitude"}}},
		{"unknown cross tab", map[string]any{"records": kovaipudurRecords(), "cross_tabs": []string{"colour"}}},
		{"unknown severity dimension", map[string]any{"records": kovaipudurRecords(), "severity_by": []string{"colour"}}},
		{"unknown field", map[string]any{"records": kovaipudurRecords(), "radius": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postDetect(t, newTestServer(t, nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDetect_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/hotspots", bytes.NewBufferString("{"))

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetect_EmptyBatch(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := postDetect(t, srv, map[string]any{"records": []any{}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Clusters)
	assert.Equal(t, 10.9, resp.Bounds.SouthWest.Lat())
}

func TestDetect_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/hotspots", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
