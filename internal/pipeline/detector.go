package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	"github.com/couchcryptid/accident-hotspot-service/internal/observability"
	"github.com/google/uuid"
)

// Detector turns a batch of accident records into a DetectionResult: area
// tagging, clustering, scoring, per-cluster statistics and optional place
// names for cluster centres.
type Detector struct {
	resolver *hotspot.AreaResolver
	engine   *hotspot.Engine
	params   hotspot.Params
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewDetector creates a Detector with default parameters. Pass a nil
// geocoder to leave cluster centres unnamed.
func NewDetector(resolver *hotspot.AreaResolver, params hotspot.Params, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Detector {
	return &Detector{
		resolver: resolver,
		engine:   hotspot.NewEngine(logger),
		params:   params,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// Params returns the detector's default parameters.
func (d *Detector) Params() hotspot.Params {
	return d.params
}

// Detect runs detection with the default parameters.
func (d *Detector) Detect(ctx context.Context, records []domain.AccidentRecord) (domain.DetectionResult, error) {
	return d.DetectWith(ctx, records, d.params)
}

// DetectWith runs detection with explicit parameters. It fails only with a
// *domain.InvalidParameterError; numeric trouble yields a fallback labeling.
func (d *Detector) DetectWith(ctx context.Context, records []domain.AccidentRecord, p hotspot.Params) (domain.DetectionResult, error) {
	start := time.Now()
	records = d.resolver.ResolveAll(records)

	run, err := d.engine.Detect(records, p)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	labels := run.Labeling.Labels

	stats, err := hotspot.Aggregate(records, labels)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	areaTable, err := hotspot.CrossTabulate(records, labels, hotspot.DimensionArea)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	stats = domain.EnrichStatsWithGeocoding(ctx, stats, d.geocoder, d.logger)

	summary := hotspot.Summarize(labels)
	result := domain.DetectionResult{
		RunID:       uuid.NewString(),
		Algorithm:   string(p.Algorithm),
		Labeling:    run.Labeling,
		Score:       hotspot.Evaluate(run.Input.Matrix, labels),
		Stats:       stats,
		AreaTable:   areaTable,
		Clusters:    summary.Clusters,
		NoisePoints: summary.NoisePoints,
		Clustered:   summary.Clustered,
		AvgSize:     summary.AvgSize,
		Bounds:      hotspot.Bounds(records),
		ProcessedAt: domain.Now(),
	}
	result.Records = make([]domain.LabeledRecord, len(records))
	for i, r := range records {
		result.Records[i] = domain.LabeledRecord{
			AccidentRecord: r,
			Cluster:        labels[i],
			RunID:          result.RunID,
			ProcessedAt:    result.ProcessedAt,
		}
	}

	d.observe(result, time.Since(start))
	d.logger.Info("hotspot detection complete",
		"run_id", result.RunID,
		"algorithm", result.Algorithm,
		"records", len(records),
		"clusters", result.Clusters,
		"noise_points", result.NoisePoints,
		"score", result.Score,
		"fallback", result.Labeling.Fallback,
	)
	return result, nil
}

func (d *Detector) observe(result domain.DetectionResult, elapsed time.Duration) {
	outcome := "ok"
	if result.Labeling.Fallback {
		outcome = "fallback"
	}
	d.metrics.DetectionRuns.WithLabelValues(result.Algorithm, outcome).Inc()
	d.metrics.DetectionDuration.WithLabelValues(result.Algorithm).Observe(elapsed.Seconds())
	d.metrics.ClustersFound.Set(float64(result.Clusters))
	d.metrics.NoisePoints.Set(float64(result.NoisePoints))
	d.metrics.ClusterQuality.Set(result.Score)
}
