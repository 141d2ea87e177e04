package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	"github.com/couchcryptid/accident-hotspot-service/internal/observability"
	"github.com/couchcryptid/accident-hotspot-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockLoader struct {
	loaded []domain.OutputEvent
	err    error
	calls  int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

type commitCounter struct {
	n atomic.Int64
}

func (c *commitCounter) commit(_ context.Context) error {
	c.n.Add(1)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// rawDensityParams clusters raw degrees so a tight group at Kovaipudur is one hotspot.
func rawDensityParams() hotspot.Params {
	p := hotspot.DefaultParams()
	p.Standardize = false
	return p
}

func newDetector(t *testing.T, params hotspot.Params, geocoder domain.Geocoder, metrics *observability.Metrics) *pipeline.Detector {
	t.Helper()
	resolver, err := hotspot.NewAreaResolver(hotspot.DefaultAreas())
	require.NoError(t, err)
	return pipeline.NewDetector(resolver, params, geocoder, discardLogger(), metrics)
}

func runPipeline(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	commits := &commitCounter{}
	batch := kovaipudurBatch(t, 5, commits)

	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	det := newDetector(t, rawDensityParams(), nil, metrics)

	p := pipeline.New(ext, det, ldr, discardLogger(), metrics, 50)
	runPipeline(t, p)

	require.Len(t, ldr.loaded, 6, "five records and one summary")
	for _, ev := range ldr.loaded[:5] {
		assert.Equal(t, domain.MessageTypeRecord, ev.Headers["message_type"])
		var rec domain.LabeledRecord
		require.NoError(t, json.Unmarshal(ev.Value, &rec))
		assert.Equal(t, 0, rec.Cluster)
		assert.Equal(t, "Kovaipudur", rec.Area)
		assert.Equal(t, rec.ID, string(ev.Key))
	}

	summary := ldr.loaded[5]
	assert.Equal(t, domain.MessageTypeSummary, summary.Headers["message_type"])
	var result domain.DetectionResult
	require.NoError(t, json.Unmarshal(summary.Value, &result))
	assert.Equal(t, 1, result.Clusters)
	assert.Zero(t, result.NoisePoints)
	assert.Equal(t, result.RunID, ldr.loaded[0].Headers["run_id"])

	assert.Equal(t, int64(5), commits.n.Load())
	assert.InDelta(t, 5, counterValue(t, metrics.MessagesConsumed), 0)
	assert.InDelta(t, 6, counterValue(t, metrics.MessagesProduced), 0)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newDetector(t, hotspot.DefaultParams(), nil, metrics), ldr, discardLogger(), metrics, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_SkipsUndecodableMessages(t *testing.T) {
	commits := &commitCounter{}
	batch := kovaipudurBatch(t, 3, commits)
	batch = append(batch,
		domain.RawEvent{Value: []byte("not json"), Offset: 90, Commit: commits.commit},
		rawEvent(t, domain.RawAccidentRecord{DateTime: "2024-01-05 08:00:00", Latitude: "0", Longitude: "0", Severity: "2"}, commits),
	)

	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newDetector(t, rawDensityParams(), nil, metrics), ldr, discardLogger(), metrics, 50)
	runPipeline(t, p)

	assert.Len(t, ldr.loaded, 4, "three records and one summary")
	assert.InDelta(t, 2, counterValue(t, metrics.DecodeErrors), 0)
	assert.Equal(t, int64(5), commits.n.Load(), "poison messages are committed too")
}

func TestPipeline_Run_NonFiniteValues(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*domain.RawAccidentRecord)
		wantLoaded   int
		decodeErrors float64
	}{
		{
			name:         "NaN latitude is skipped alone",
			mutate:       func(r *domain.RawAccidentRecord) { r.Latitude = "NaN" },
			wantLoaded:   6,
			decodeErrors: 1,
		},
		{
			name:         "infinite longitude is skipped alone",
			mutate:       func(r *domain.RawAccidentRecord) { r.Longitude = "Inf" },
			wantLoaded:   6,
			decodeErrors: 1,
		},
		{
			name:       "NaN speed limit reads as zero",
			mutate:     func(r *domain.RawAccidentRecord) { r.SpeedLimit = "NaN" },
			wantLoaded: 7,
		},
		{
			name:       "NaN vehicles reads as zero",
			mutate:     func(r *domain.RawAccidentRecord) { r.VehiclesInvolved = "NaN" },
			wantLoaded: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commits := &commitCounter{}
			batch := kovaipudurBatch(t, 5, commits)
			bad := domain.RawAccidentRecord{
				DateTime:         "2024-01-05 18:00:00",
				Latitude:         "11.0015",
				Longitude:        "76.9626",
				Severity:         "2",
				VehiclesInvolved: "1",
				SpeedLimit:       "50",
			}
			tt.mutate(&bad)
			batch = append(batch, rawEvent(t, bad, commits))

			ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
			ldr := &mockLoader{}
			metrics := newTestMetrics()

			p := pipeline.New(ext, newDetector(t, rawDensityParams(), nil, metrics), ldr, discardLogger(), metrics, 50)
			runPipeline(t, p)

			require.Len(t, ldr.loaded, tt.wantLoaded)
			assert.InDelta(t, tt.decodeErrors, counterValue(t, metrics.DecodeErrors), 0)
			assert.Zero(t, counterValue(t, metrics.DetectionErrors))
			assert.Equal(t, int64(6), commits.n.Load())

			var result domain.DetectionResult
			require.NoError(t, json.Unmarshal(ldr.loaded[len(ldr.loaded)-1].Value, &result))
			require.NotEmpty(t, result.Stats)
			assert.False(t, math.IsNaN(result.Stats[0].AvgSpeedLimit))
			assert.False(t, math.IsNaN(result.Stats[0].AvgVehicles))
		})
	}
}

func TestPipeline_Run_AllUndecodable(t *testing.T) {
	commits := &commitCounter{}
	batch := []domain.RawEvent{{Value: []byte("{"), Commit: commits.commit}}

	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newDetector(t, hotspot.DefaultParams(), nil, metrics), ldr, discardLogger(), metrics, 50)
	runPipeline(t, p)

	assert.Zero(t, ldr.calls)
	assert.Equal(t, int64(1), commits.n.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ParameterErrorSkipsBatch(t *testing.T) {
	commits := &commitCounter{}
	params := hotspot.DefaultParams()
	params.Algorithm = hotspot.AlgorithmCentroid // k=5 cannot split 3 records

	ext := &mockExtractor{batches: [][]domain.RawEvent{kovaipudurBatch(t, 3, commits)}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newDetector(t, params, nil, metrics), ldr, discardLogger(), metrics, 50)
	runPipeline(t, p)

	assert.Zero(t, ldr.calls)
	assert.InDelta(t, 1, counterValue(t, metrics.DetectionErrors), 0)
	assert.Equal(t, int64(3), commits.n.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commits := &commitCounter{}

	ext := &mockExtractor{batches: [][]domain.RawEvent{kovaipudurBatch(t, 4, commits)}}
	ldr := &mockLoader{err: errors.New("broker down")}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newDetector(t, rawDensityParams(), nil, metrics), ldr, discardLogger(), metrics, 50)
	runPipeline(t, p)

	assert.Equal(t, 1, ldr.calls)
	assert.Zero(t, commits.n.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func rawEvent(t *testing.T, rec domain.RawAccidentRecord, commits *commitCounter) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return domain.RawEvent{
		Value:  data,
		Topic:  "raw-accident-reports",
		Commit: commits.commit,
	}
}

// kovaipudurBatch builds n valid records within 0.001° of Kovaipudur.
func kovaipudurBatch(t *testing.T, n int, commits *commitCounter) []domain.RawEvent {
	t.Helper()
	out := make([]domain.RawEvent, n)
	for i := range out {
		out[i] = rawEvent(t, domain.RawAccidentRecord{
			DateTime:         fmt.Sprintf("2024-01-05 %02d:15:00", 8+i),
			Latitude:         fmt.Sprintf("%.4f", 11.0014+float64(i)*0.0002),
			Longitude:        fmt.Sprintf("%.4f", 76.9627-float64(i)*0.0002),
			Severity:         fmt.Sprint(1 + i%4),
			Weather:          "Clear",
			RoadType:         "Urban",
			VehiclesInvolved: "2",
			LightCondition:   "Daylight",
			SpeedLimit:       "40",
		}, commits)
		out[i].Offset = int64(i)
	}
	return out
}
