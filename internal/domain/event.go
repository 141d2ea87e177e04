package domain

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// NoiseLabel is the cluster label given to records that density-based
// clustering could not attach to any cluster.
const NoiseLabel = -1

// OtherArea is returned by area resolution when no named area matches.
const OtherArea = "Other Area"

// RawAccidentRecord represents the flat JSON structure produced by the collector.
type RawAccidentRecord struct {
	DateTime         string `json:"Date_Time"`
	Latitude         string `json:"Latitude"`
	Longitude        string `json:"Longitude"`
	Severity         string `json:"Severity"`
	Weather          string `json:"Weather"`
	RoadType         string `json:"Road_Type"`
	VehiclesInvolved string `json:"Vehicles_Involved"`
	LightCondition   string `json:"Light_Condition"`
	SpeedLimit       string `json:"Speed_Limit"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// AccidentRecord is a parsed, validated accident report. It is never mutated
// after parsing; enrichment steps return modified copies.
type AccidentRecord struct {
	ID               string    `json:"id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Severity         int       `json:"severity"`
	Timestamp        time.Time `json:"timestamp"`
	Hour             int       `json:"hour"`
	DayOfWeek        string    `json:"day_of_week"`
	Month            string    `json:"month"`
	Weather          string    `json:"weather"`
	RoadType         string    `json:"road_type"`
	LightCondition   string    `json:"light_condition"`
	VehiclesInvolved float64   `json:"vehicles_involved"`
	SpeedLimit       float64   `json:"speed_limit"`
	Area             string    `json:"area,omitempty"`
}

// Point returns the record location as an orb point (lon, lat).
func (r AccidentRecord) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// NamedArea is a fixed square region used to tag records with a place name.
// Membership is strict: |lat-center.lat| < Radius and |lon-center.lon| < Radius.
type NamedArea struct {
	Name   string
	Center orb.Point // [lon, lat]
	Radius float64   // degrees
}

// ClusterLabeling is the result of one clustering run. A new labeling replaces
// the previous one; it is never patched.
type ClusterLabeling struct {
	Algorithm string `json:"algorithm"`
	// Labels holds one cluster id per input record, in input order.
	Labels []int `json:"labels"`
	// Centroids is indexed by cluster id; set for centroid-based runs only.
	Centroids []orb.Point `json:"centroids,omitempty"`

	// Fallback is true when clustering degraded to a single cluster.
	Fallback       bool   `json:"fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	// DegenerateFeatures lists features whose spread was zero in this batch.
	DegenerateFeatures []string `json:"degenerate_features,omitempty"`
}

// ClusterStats aggregates the records of one cluster.
type ClusterStats struct {
	ClusterID     int       `json:"cluster_id"`
	Count         int       `json:"count"`
	AvgSeverity   float64   `json:"avg_severity"`
	MaxSeverity   int       `json:"max_severity"`
	AvgVehicles   float64   `json:"avg_vehicles"`
	AvgSpeedLimit float64   `json:"avg_speed_limit"`
	Center        orb.Point `json:"center"` // mean member location [lon, lat]

	// Reverse geocoding of Center, when enabled.
	PlaceName string `json:"place_name,omitempty"`
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

// CrossTab counts records per cluster and per value of one categorical dimension.
type CrossTab struct {
	Dimension string                 `json:"dimension"`
	Clusters  []int                  `json:"clusters"`
	Values    []string               `json:"values"`
	Counts    map[int]map[string]int `json:"counts"`
}

// SeverityTable is the mean severity per value of one categorical dimension,
// over the whole batch and within each cluster.
type SeverityTable struct {
	Dimension string                     `json:"dimension"`
	Values    []string                   `json:"values"` // by Overall mean, highest first
	Overall   map[string]float64         `json:"overall"`
	Counts    map[string]int             `json:"counts"`
	Clusters  []int                      `json:"clusters"`
	ByCluster map[int]map[string]float64 `json:"by_cluster"`
}

// MapBounds is the south-west / north-east box a map view should fit.
type MapBounds struct {
	SouthWest orb.Point `json:"south_west"`
	NorthEast orb.Point `json:"north_east"`
}

// LabeledRecord is a record together with the cluster it was assigned to.
type LabeledRecord struct {
	AccidentRecord
	Cluster     int       `json:"cluster"`
	RunID       string    `json:"run_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DetectionResult is everything one detection run produces for presentation.
type DetectionResult struct {
	RunID       string          `json:"run_id"`
	Algorithm   string          `json:"algorithm"`
	Records     []LabeledRecord `json:"records,omitempty"`
	Labeling    ClusterLabeling `json:"labeling"`
	Score       float64         `json:"score"`
	Stats       []ClusterStats  `json:"stats"`
	AreaTable   CrossTab        `json:"area_table"`
	Clusters    int             `json:"clusters"`
	NoisePoints int             `json:"noise_points"`
	Clustered   int             `json:"clustered"`
	AvgSize     float64         `json:"avg_cluster_size"`
	Bounds      MapBounds       `json:"bounds"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
