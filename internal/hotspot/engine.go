package hotspot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/paulmach/orb"
)

// Algorithm selects a clustering strategy.
type Algorithm string

// Supported clustering strategies.
const (
	AlgorithmDensity  Algorithm = "dbscan"
	AlgorithmCentroid Algorithm = "kmeans"
)

// ParseAlgorithm accepts "dbscan" or "kmeans" (case-insensitive, "k-means" too).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dbscan", "density":
		return AlgorithmDensity, nil
	case "kmeans", "k-means", "centroid":
		return AlgorithmCentroid, nil
	default:
		return "", &domain.InvalidParameterError{Param: "algorithm", Value: s, Reason: "must be dbscan or kmeans"}
	}
}

// Params is the full configuration of one detection run.
type Params struct {
	Algorithm   Algorithm
	Features    []Feature
	Standardize bool
	Density     DensityParams
	Centroid    CentroidParams
}

// DefaultParams mirrors the dashboard defaults: DBSCAN(eps=0.01, min_samples=3)
// and k-means with k=5 and seed 42, on standardized latitude/longitude.
func DefaultParams() Params {
	return Params{
		Algorithm:   AlgorithmDensity,
		Features:    append([]Feature(nil), DefaultFeatures...),
		Standardize: true,
		Density:     DensityParams{Eps: DefaultEps, MinSamples: DefaultMinSamples},
		Centroid:    CentroidParams{K: DefaultK, Seed: DefaultSeed},
	}
}

// Validate checks everything that can be checked without data.
func (p Params) Validate() error {
	switch p.Algorithm {
	case AlgorithmDensity:
		return p.Density.Validate()
	case AlgorithmCentroid:
		return p.Centroid.Validate()
	default:
		return &domain.InvalidParameterError{Param: "algorithm", Value: p.Algorithm, Reason: "must be dbscan or kmeans"}
	}
}

// Run is the outcome of Engine.Detect: the labeling and the feature matrix it
// was computed on, which Evaluate needs.
type Run struct {
	Labeling domain.ClusterLabeling
	Input    Normalized
}

// Engine runs clustering strategies with the fallback policy applied.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine that reports fallbacks to logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Detect normalizes records and clusters them with the configured strategy.
//
// Parameter errors are returned as *domain.InvalidParameterError. An empty
// batch returns an empty labeling. Numeric failures never surface: every
// record is put in cluster 0 and the labeling is marked Fallback.
func (e *Engine) Detect(records []domain.AccidentRecord, p Params) (Run, error) {
	if err := p.Validate(); err != nil {
		return Run{}, err
	}

	labeling := domain.ClusterLabeling{Algorithm: string(p.Algorithm), Labels: []int{}}
	input, err := Normalize(records, p.Features, p.Standardize)
	if err != nil {
		if domain.IsInvalidParameter(err) {
			return Run{}, err
		}
		return Run{Labeling: e.fallback(labeling, len(records), err), Input: input}, nil
	}
	labeling.DegenerateFeatures = input.degenerateNames()
	if len(records) == 0 {
		return Run{Labeling: labeling, Input: input}, nil
	}

	labels, centroids, err := e.cluster(records, input, p)
	if err != nil {
		if domain.IsInvalidParameter(err) {
			return Run{}, err
		}
		return Run{Labeling: e.fallback(labeling, len(records), err), Input: input}, nil
	}

	labeling.Labels = labels
	labeling.Centroids = centroids
	return Run{Labeling: labeling, Input: input}, nil
}

// cluster dispatches to the strategy, turning panics from numeric code into
// ErrNumericDegenerate.
func (e *Engine) cluster(records []domain.AccidentRecord, input Normalized, p Params) (labels []int, centroids []orb.Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels, centroids = nil, nil
			err = fmt.Errorf("%w: clustering panicked: %v", domain.ErrNumericDegenerate, r)
		}
	}()

	switch p.Algorithm {
	case AlgorithmCentroid:
		labels, _, err = ClusterCentroid(input.Matrix, p.Centroid)
		if err != nil {
			return nil, nil, err
		}
		return labels, memberCentroids(records, labels, p.Centroid.K), nil
	default:
		labels, err = ClusterDensity(input.Matrix, p.Density)
		return labels, nil, err
	}
}

// fallback labels every record as cluster 0.
func (e *Engine) fallback(labeling domain.ClusterLabeling, n int, cause error) domain.ClusterLabeling {
	reason := cause.Error()
	if !errors.Is(cause, domain.ErrNumericDegenerate) {
		reason = fmt.Sprintf("%s: %v", domain.ErrNumericDegenerate, cause)
	}
	e.logger.Warn("clustering failed, falling back to a single cluster",
		"algorithm", labeling.Algorithm,
		"records", n,
		"error", cause,
	)

	labeling.Labels = make([]int, n)
	labeling.Centroids = nil
	labeling.Fallback = true
	labeling.FallbackReason = reason
	return labeling
}

// memberCentroids returns, per cluster id, the mean location of its members
// in degrees. Feature-space centres are not usable as map markers.
func memberCentroids(records []domain.AccidentRecord, labels []int, k int) []orb.Point {
	sums := make([]orb.Point, k)
	counts := make([]float64, k)
	for i, l := range labels {
		sums[l][0] += records[i].Longitude
		sums[l][1] += records[i].Latitude
		counts[l]++
	}
	for c := range sums {
		if counts[c] > 0 {
			sums[c][0] /= counts[c]
			sums[c][1] /= counts[c]
		}
	}
	return sums
}
