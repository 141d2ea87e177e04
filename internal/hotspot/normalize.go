package hotspot

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Feature names a numeric record column that can be clustered on.
type Feature string

// Supported clustering features.
const (
	FeatureLatitude   Feature = "latitude"
	FeatureLongitude  Feature = "longitude"
	FeatureSeverity   Feature = "severity"
	FeatureVehicles   Feature = "vehicles_involved"
	FeatureSpeedLimit Feature = "speed_limit"
	FeatureHour       Feature = "hour"
)

// zeroSpread is the relative standard deviation below which a feature is
// treated as constant; summation error leaves identical values with a
// spread of order 1e-15 rather than exactly zero.
const zeroSpread = 1e-12

// DefaultFeatures clusters on location only.
var DefaultFeatures = []Feature{FeatureLatitude, FeatureLongitude}

var featureValues = map[Feature]func(domain.AccidentRecord) float64{
	FeatureLatitude:   func(r domain.AccidentRecord) float64 { return r.Latitude },
	FeatureLongitude:  func(r domain.AccidentRecord) float64 { return r.Longitude },
	FeatureSeverity:   func(r domain.AccidentRecord) float64 { return float64(r.Severity) },
	FeatureVehicles:   func(r domain.AccidentRecord) float64 { return r.VehiclesInvolved },
	FeatureSpeedLimit: func(r domain.AccidentRecord) float64 { return r.SpeedLimit },
	FeatureHour:       func(r domain.AccidentRecord) float64 { return float64(r.Hour) },
}

// ParseFeatures parses a comma-separated feature list such as "latitude,longitude".
func ParseFeatures(s string) ([]Feature, error) {
	var out []Feature
	for _, part := range strings.Split(s, ",") {
		f := Feature(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if _, ok := featureValues[f]; !ok {
			return nil, &domain.InvalidParameterError{Param: "features", Value: part, Reason: "unknown feature"}
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, &domain.InvalidParameterError{Param: "features", Value: s, Reason: "at least one feature is required"}
	}
	return out, nil
}

// Scale holds the standardization parameters of one feature for one call.
type Scale struct {
	Feature Feature
	Mean    float64
	StdDev  float64
}

// Normalized is the clustering input built from one batch.
type Normalized struct {
	// Matrix has one row per record and one column per feature. Nil for an empty batch.
	Matrix   *mat.Dense
	Features []Feature
	Scales   []Scale
	// Degenerate lists features whose sample standard deviation was zero or
	// undefined; their column is all zeros.
	Degenerate []Feature
}

// Normalize standardizes the requested features to zero mean and unit sample
// variance over this batch. A feature with no spread is written as 0.0 for
// every record instead of dividing by zero. Non-finite input values return
// domain.ErrNumericDegenerate. When standardize is false the raw
// values are copied and Scales report mean 0, std 1.
func Normalize(records []domain.AccidentRecord, features []Feature, standardize bool) (Normalized, error) {
	if len(features) == 0 {
		return Normalized{}, &domain.InvalidParameterError{Param: "features", Value: "", Reason: "at least one feature is required"}
	}
	for _, f := range features {
		if _, ok := featureValues[f]; !ok {
			return Normalized{}, &domain.InvalidParameterError{Param: "features", Value: f, Reason: "unknown feature"}
		}
	}

	out := Normalized{
		Features: append([]Feature(nil), features...),
		Scales:   make([]Scale, len(features)),
	}
	n := len(records)
	if n == 0 {
		for j, f := range features {
			out.Scales[j] = Scale{Feature: f, StdDev: 1}
		}
		return out, nil
	}

	out.Matrix = mat.NewDense(n, len(features), nil)
	col := make([]float64, n)
	for j, f := range features {
		value := featureValues[f]
		for i, r := range records {
			col[i] = value(r)
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				return Normalized{}, fmt.Errorf("%w: feature %s of record %d is %v", domain.ErrNumericDegenerate, f, i, col[i])
			}
		}

		if !standardize {
			out.Scales[j] = Scale{Feature: f, StdDev: 1}
			out.Matrix.SetCol(j, col)
			continue
		}

		var mean, std float64
		if n >= 2 {
			mean, std = stat.MeanStdDev(col, nil)
		} else {
			mean = col[0]
		}
		out.Scales[j] = Scale{Feature: f, Mean: mean, StdDev: std}

		if std <= zeroSpread*math.Max(1, math.Abs(mean)) || math.IsNaN(std) {
			out.Degenerate = append(out.Degenerate, f)
			// Column already zero from NewDense.
			continue
		}
		for i := range col {
			col[i] = (col[i] - mean) / std
		}
		out.Matrix.SetCol(j, col)
	}
	return out, nil
}

func (n Normalized) degenerateNames() []string {
	if len(n.Degenerate) == 0 {
		return nil
	}
	names := make([]string, len(n.Degenerate))
	for i, f := range n.Degenerate {
		names[i] = string(f)
	}
	return names
}
