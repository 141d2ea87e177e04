package hotspot

import (
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
)

const (
	kovaipudurLat = 11.0014
	kovaipudurLon = 76.9627
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordsAt builds one record per [lat, lon] pair with fixed attributes.
func recordsAt(points ...[2]float64) []domain.AccidentRecord {
	base := time.Date(2024, time.January, 5, 8, 30, 0, 0, time.UTC)
	out := make([]domain.AccidentRecord, len(points))
	for i, p := range points {
		out[i] = domain.WithTimestamp(domain.AccidentRecord{
			ID:               "acc-" + string(rune('a'+i%26)),
			Latitude:         p[0],
			Longitude:        p[1],
			Severity:         1 + i%4,
			Weather:          "Clear",
			RoadType:         "Urban",
			LightCondition:   "Daylight",
			VehiclesInvolved: 2,
			SpeedLimit:       40,
		}, base.Add(time.Duration(i)*time.Hour))
	}
	return out
}

// tightGroup returns 10 points within ±0.001° of (lat, lon).
func tightGroup(lat, lon float64) [][2]float64 {
	offsets := []float64{-0.001, -0.0008, -0.0005, -0.0002, 0, 0.0001, 0.0003, 0.0006, 0.0009, 0.001}
	out := make([][2]float64, len(offsets))
	for i, d := range offsets {
		out[i] = [2]float64{lat + d, lon - offsets[len(offsets)-1-i]}
	}
	return out
}

// indiaScatter returns 10 points spread over the India bounding box.
func indiaScatter() [][2]float64 {
	return [][2]float64{
		{8.5, 77.0}, {12.9, 74.8}, {13.1, 80.3}, {17.4, 78.5}, {19.1, 72.9},
		{22.6, 88.4}, {26.9, 75.8}, {28.6, 77.2}, {31.1, 77.2}, {34.1, 74.8},
	}
}

// fourGroups returns 20 points in four well separated groups of five.
func fourGroups() [][2]float64 {
	centers := [][2]float64{{11.0, 77.0}, {13.0, 80.2}, {19.0, 72.8}, {28.6, 77.2}}
	jitter := [][2]float64{{0, 0}, {0.01, 0}, {0, 0.01}, {-0.01, 0}, {0, -0.01}}
	var out [][2]float64
	for _, c := range centers {
		for _, j := range jitter {
			out = append(out, [2]float64{c[0] + j[0], c[1] + j[1]})
		}
	}
	return out
}

func densityParams(eps float64, minSamples int, standardize bool) Params {
	p := DefaultParams()
	p.Algorithm = AlgorithmDensity
	p.Density = DensityParams{Eps: eps, MinSamples: minSamples}
	p.Standardize = standardize
	return p
}

func centroidParams(k int) Params {
	p := DefaultParams()
	p.Algorithm = AlgorithmCentroid
	p.Centroid = CentroidParams{K: k, Seed: DefaultSeed}
	return p
}
