package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// India bounding box used to validate incoming coordinates.
const (
	MinLatitude  = 8.0
	MaxLatitude  = 37.0
	MinLongitude = 68.0
	MaxLongitude = 97.0
)

// timeLayouts are tried in order when parsing Date_Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseRawEvent deserializes a RawEvent's value into a validated AccidentRecord.
func ParseRawEvent(raw RawEvent) (AccidentRecord, error) {
	var rec RawAccidentRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return AccidentRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseRawRecord(rec)
}

// ParseRawRecord converts the collector's string columns into an AccidentRecord,
// deriving hour, weekday and month from the timestamp.
func ParseRawRecord(rec RawAccidentRecord) (AccidentRecord, error) {
	lat, err := parseFloat("Latitude", rec.Latitude)
	if err != nil {
		return AccidentRecord{}, err
	}
	lon, err := parseFloat("Longitude", rec.Longitude)
	if err != nil {
		return AccidentRecord{}, err
	}
	if lat < MinLatitude || lat > MaxLatitude || lon < MinLongitude || lon > MaxLongitude {
		return AccidentRecord{}, fmt.Errorf("coordinate (%g, %g) outside India: %w", lat, lon, ErrOutOfRange)
	}

	severity, err := strconv.Atoi(strings.TrimSpace(rec.Severity))
	if err != nil {
		return AccidentRecord{}, fmt.Errorf("parse Severity %q: %w", rec.Severity, err)
	}
	if severity < 1 || severity > 4 {
		return AccidentRecord{}, fmt.Errorf("severity %d: %w", severity, ErrOutOfRange)
	}

	ts, err := parseDateTime(rec.DateTime)
	if err != nil {
		return AccidentRecord{}, err
	}

	out := AccidentRecord{
		Latitude:         lat,
		Longitude:        lon,
		Severity:         severity,
		Weather:          strings.TrimSpace(rec.Weather),
		RoadType:         strings.TrimSpace(rec.RoadType),
		LightCondition:   strings.TrimSpace(rec.LightCondition),
		VehiclesInvolved: parseNonNegative(rec.VehiclesInvolved),
		SpeedLimit:       parseNonNegative(rec.SpeedLimit),
	}
	out = WithTimestamp(out, ts)
	out.ID = generateID(rec.DateTime, lat, lon, severity, out.RoadType)
	return out, nil
}

// WithTimestamp returns a copy of r with the timestamp and its derived
// hour, weekday and month fields set.
func WithTimestamp(r AccidentRecord, ts time.Time) AccidentRecord {
	r.Timestamp = ts
	r.Hour = ts.Hour()
	r.DayOfWeek = ts.Weekday().String()
	r.Month = ts.Month().String()
	return r
}

// parseFloat parses a required numeric column. ParseFloat accepts "NaN" and
// "Inf", which no range check can catch, so they are rejected here.
func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("%s %q is not finite: %w", field, s, ErrOutOfRange)
	}
	return v, nil
}

// parseNonNegative parses optional numeric columns; blanks, garbage,
// non-finite and negative values read as zero.
func parseNonNegative(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse Date_Time %q: unsupported format", s)
}

// generateID produces a deterministic ID from the record's key fields.
func generateID(dateTime string, lat, lon float64, severity int, roadType string) string {
	input := fmt.Sprintf("%s|%.5f|%.5f|%d|%s", strings.TrimSpace(dateTime), lat, lon, severity, roadType)
	hash := sha256.Sum256([]byte(input))
	return "acc-" + hex.EncodeToString(hash[:8])
}
