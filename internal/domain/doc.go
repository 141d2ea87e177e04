// Package domain models road-accident reports and the hotspot detection
// results derived from them.
//
// # Data Source
//
// Accident reports are exported by the upstream collector as flat JSON, one
// object per CSV row, with every column carried as a string:
//
//	{"Date_Time":"2024-01-05 08:30:00","Latitude":"11.0014","Longitude":"76.9627",
//	 "Severity":"3","Weather":"Rain","Road_Type":"Highway","Vehicles_Involved":"2",
//	 "Light_Condition":"Daylight","Speed_Limit":"60"}
//
// # Conventions
//
// Coordinates:
//
//	WGS-84 degrees. Records are accepted only inside the India bounding box
//	(latitude 8..37, longitude 68..97); anything outside is rejected by
//	[ParseRawEvent] before it can reach clustering.
//
// Severity:
//
//	Integer 1..4 (1 = minor, 4 = fatal). Values outside the range are rejected.
//
// Time:
//
//	Date_Time accepts "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05"
//	and RFC 3339. Hour, weekday name and month name are derived once at parse
//	time and never recomputed.
//
// Cluster labels:
//
//	Labels are small non-negative integers assigned per detection run. The
//	value [NoiseLabel] (-1) marks density-based noise. Labels are not stable
//	across runs: cluster 0 in one run is unrelated to cluster 0 in the next.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of time|lat|lon|severity|road
// type, so replays of the same report map to the same key downstream.
package domain
