package hotspot

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// Dimension names a categorical record attribute to group records by.
type Dimension string

// Supported cross tabulation dimensions.
const (
	DimensionArea           Dimension = "area"
	DimensionWeather        Dimension = "weather"
	DimensionRoadType       Dimension = "road_type"
	DimensionLightCondition Dimension = "light_condition"
	DimensionDayOfWeek      Dimension = "day_of_week"
	DimensionMonth          Dimension = "month"
	DimensionHour           Dimension = "hour"
	DimensionSeverity       Dimension = "severity"
)

var dimensionValues = map[Dimension]func(domain.AccidentRecord) string{
	DimensionArea:           func(r domain.AccidentRecord) string { return r.Area },
	DimensionWeather:        func(r domain.AccidentRecord) string { return r.Weather },
	DimensionRoadType:       func(r domain.AccidentRecord) string { return r.RoadType },
	DimensionLightCondition: func(r domain.AccidentRecord) string { return r.LightCondition },
	DimensionDayOfWeek:      func(r domain.AccidentRecord) string { return r.DayOfWeek },
	DimensionMonth:          func(r domain.AccidentRecord) string { return r.Month },
	DimensionHour:           func(r domain.AccidentRecord) string { return strconv.Itoa(r.Hour) },
	DimensionSeverity:       func(r domain.AccidentRecord) string { return strconv.Itoa(r.Severity) },
}

// Aggregate computes per-cluster statistics. Noise records are skipped and
// clusters without records do not appear. The result is ordered by record
// count descending, then cluster id ascending.
func Aggregate(records []domain.AccidentRecord, labels []int) ([]domain.ClusterStats, error) {
	if len(records) != len(labels) {
		return nil, &domain.InvalidParameterError{Param: "labels", Value: len(labels), Reason: "length differs from records"}
	}

	groups := make(map[int][]domain.AccidentRecord)
	for i, l := range labels {
		if l == domain.NoiseLabel {
			continue
		}
		groups[l] = append(groups[l], records[i])
	}

	out := make([]domain.ClusterStats, 0, len(groups))
	for id, members := range groups {
		out = append(out, clusterStats(id, members))
	}
	slices.SortFunc(out, func(a, b domain.ClusterStats) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ClusterID, b.ClusterID)
	})
	return out, nil
}

func clusterStats(id int, members []domain.AccidentRecord) domain.ClusterStats {
	n := len(members)
	severity := make([]float64, n)
	vehicles := make([]float64, n)
	speed := make([]float64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	maxSeverity := 0
	for i, r := range members {
		severity[i] = float64(r.Severity)
		vehicles[i] = r.VehiclesInvolved
		speed[i] = r.SpeedLimit
		lats[i] = r.Latitude
		lons[i] = r.Longitude
		maxSeverity = max(maxSeverity, r.Severity)
	}
	return domain.ClusterStats{
		ClusterID:     id,
		Count:         n,
		AvgSeverity:   stat.Mean(severity, nil),
		MaxSeverity:   maxSeverity,
		AvgVehicles:   stat.Mean(vehicles, nil),
		AvgSpeedLimit: stat.Mean(speed, nil),
		Center:        orb.Point{stat.Mean(lons, nil), stat.Mean(lats, nil)},
	}
}

// StatsByCluster indexes an Aggregate result by cluster id.
func StatsByCluster(stats []domain.ClusterStats) map[int]domain.ClusterStats {
	out := make(map[int]domain.ClusterStats, len(stats))
	for _, s := range stats {
		out[s.ClusterID] = s
	}
	return out
}

// CrossTabulate counts non-noise records per cluster and per value of dim.
// Clusters and values are listed in ascending order.
func CrossTabulate(records []domain.AccidentRecord, labels []int, dim Dimension) (domain.CrossTab, error) {
	value, ok := dimensionValues[dim]
	if !ok {
		return domain.CrossTab{}, &domain.InvalidParameterError{Param: "dimension", Value: dim, Reason: "unknown dimension"}
	}
	if len(records) != len(labels) {
		return domain.CrossTab{}, &domain.InvalidParameterError{Param: "labels", Value: len(labels), Reason: "length differs from records"}
	}

	tab := domain.CrossTab{
		Dimension: string(dim),
		Counts:    make(map[int]map[string]int),
	}
	seen := make(map[string]struct{})
	for i, l := range labels {
		if l == domain.NoiseLabel {
			continue
		}
		v := value(records[i])
		row, ok := tab.Counts[l]
		if !ok {
			row = make(map[string]int)
			tab.Counts[l] = row
			tab.Clusters = append(tab.Clusters, l)
		}
		row[v]++
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			tab.Values = append(tab.Values, v)
		}
	}
	slices.Sort(tab.Clusters)
	slices.Sort(tab.Values)
	return tab, nil
}

// SeverityBy averages severity per value of dim. Overall covers every record,
// noise included; ByCluster only the records of each cluster. Values are
// ordered by overall mean descending, ties by value.
func SeverityBy(records []domain.AccidentRecord, labels []int, dim Dimension) (domain.SeverityTable, error) {
	value, ok := dimensionValues[dim]
	if !ok {
		return domain.SeverityTable{}, &domain.InvalidParameterError{Param: "dimension", Value: dim, Reason: "unknown dimension"}
	}
	if len(records) != len(labels) {
		return domain.SeverityTable{}, &domain.InvalidParameterError{Param: "labels", Value: len(labels), Reason: "length differs from records"}
	}

	overall := make(map[string][]float64)
	perCluster := make(map[int]map[string][]float64)
	for i, r := range records {
		v := value(r)
		sev := float64(r.Severity)
		overall[v] = append(overall[v], sev)
		l := labels[i]
		if l == domain.NoiseLabel {
			continue
		}
		row, ok := perCluster[l]
		if !ok {
			row = make(map[string][]float64)
			perCluster[l] = row
		}
		row[v] = append(row[v], sev)
	}

	tab := domain.SeverityTable{
		Dimension: string(dim),
		Values:    make([]string, 0, len(overall)),
		Overall:   make(map[string]float64, len(overall)),
		Counts:    make(map[string]int, len(overall)),
		Clusters:  make([]int, 0, len(perCluster)),
		ByCluster: make(map[int]map[string]float64, len(perCluster)),
	}
	for v, sev := range overall {
		tab.Values = append(tab.Values, v)
		tab.Overall[v] = stat.Mean(sev, nil)
		tab.Counts[v] = len(sev)
	}
	for l, row := range perCluster {
		tab.Clusters = append(tab.Clusters, l)
		means := make(map[string]float64, len(row))
		for v, sev := range row {
			means[v] = stat.Mean(sev, nil)
		}
		tab.ByCluster[l] = means
	}
	slices.SortFunc(tab.Values, func(a, b string) int {
		if c := cmp.Compare(tab.Overall[b], tab.Overall[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	slices.Sort(tab.Clusters)
	return tab, nil
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensionValues[d]; !ok {
		return "", &domain.InvalidParameterError{Param: "dimension", Value: s, Reason: "unknown dimension"}
	}
	return d, nil
}

// Summary counts for one labeling.
type Summary struct {
	Clusters    int
	NoisePoints int
	Clustered   int
	AvgSize     float64
}

// Summarize counts clusters and noise in a labeling.
func Summarize(labels []int) Summary {
	var s Summary
	ids := make(map[int]struct{})
	for _, l := range labels {
		if l == domain.NoiseLabel {
			s.NoisePoints++
			continue
		}
		s.Clustered++
		ids[l] = struct{}{}
	}
	s.Clusters = len(ids)
	if s.Clusters > 0 {
		s.AvgSize = float64(s.Clustered) / float64(s.Clusters)
	}
	return s
}

// defaultBounds frames central Coimbatore when there is nothing to show.
var defaultBounds = domain.MapBounds{
	SouthWest: orb.Point{76.9, 10.9},
	NorthEast: orb.Point{77.0, 11.1},
}

// Bounds returns the box around all records padded by 10% of its span on
// each axis, or a default Coimbatore box for an empty batch.
func Bounds(records []domain.AccidentRecord) domain.MapBounds {
	if len(records) == 0 {
		return defaultBounds
	}
	mp := make(orb.MultiPoint, len(records))
	for i, r := range records {
		mp[i] = r.Point()
	}
	b := mp.Bound()
	lonPad := (b.Max.Lon() - b.Min.Lon()) * 0.1
	latPad := (b.Max.Lat() - b.Min.Lat()) * 0.1
	return domain.MapBounds{
		SouthWest: orb.Point{b.Min.Lon() - lonPad, b.Min.Lat() - latPad},
		NorthEast: orb.Point{b.Max.Lon() + lonPad, b.Max.Lat() + latPad},
	}
}
