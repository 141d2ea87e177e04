package domain

import (
	"context"
	"log/slog"
)

// EnrichStatsWithGeocoding names each cluster centre with the geocoder.
// A nil geocoder leaves stats untouched; a failed lookup marks the entry
// GeoSource="failed" and carries on (graceful degradation).
func EnrichStatsWithGeocoding(ctx context.Context, stats []ClusterStats, geocoder Geocoder, logger *slog.Logger) []ClusterStats {
	if geocoder == nil || len(stats) == 0 {
		return stats
	}

	out := make([]ClusterStats, len(stats))
	copy(out, stats)
	for i := range out {
		lat, lon := out[i].Center.Lat(), out[i].Center.Lon()
		result, err := geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"cluster", out[i].ClusterID,
				"lat", lat,
				"lon", lon,
				"error", err,
			)
			out[i].GeoSource = "failed"
			continue
		}
		if result.PlaceName == "" && result.FormattedAddress == "" {
			out[i].GeoSource = "original"
			continue
		}
		out[i].PlaceName = result.PlaceName
		if out[i].PlaceName == "" {
			out[i].PlaceName = result.FormattedAddress
		}
		out[i].GeoSource = "reverse"
	}
	return out
}
