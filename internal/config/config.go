package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Hotspot detection defaults, overridable per HTTP request.
	Hotspot hotspot.Params
	// Areas tags records with a place name; DefaultAreas unless AREAS_FILE is set.
	Areas []domain.NamedArea

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRateLimit float64 // requests per second, 0 for unlimited
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	params, err := parseHotspotParams()
	if err != nil {
		return nil, err
	}

	areas := hotspot.DefaultAreas()
	if path := os.Getenv("AREAS_FILE"); path != "" {
		areas, err = LoadAreas(path)
		if err != nil {
			return nil, err
		}
	}

	mapboxCacheSize := parseMapboxCacheSize()

	mapboxRateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAPBOX_RATE_LIMIT", "10"), 64)
	if err != nil || mapboxRateLimit < 0 {
		return nil, errors.New("invalid MAPBOX_RATE_LIMIT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-accident-reports"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "accident-hotspots"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "accident-hotspot"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		Hotspot: params,
		Areas:   areas,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
		MapboxRateLimit: mapboxRateLimit,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// parseHotspotParams reads the HOTSPOT_* variables on top of hotspot.DefaultParams.
func parseHotspotParams() (hotspot.Params, error) {
	p := hotspot.DefaultParams()

	if s := os.Getenv("HOTSPOT_ALGORITHM"); s != "" {
		algo, err := hotspot.ParseAlgorithm(s)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_ALGORITHM: %w", err)
		}
		p.Algorithm = algo
	}
	if s := os.Getenv("HOTSPOT_FEATURES"); s != "" {
		features, err := hotspot.ParseFeatures(s)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_FEATURES: %w", err)
		}
		p.Features = features
	}
	if s := os.Getenv("HOTSPOT_STANDARDIZE"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_STANDARDIZE %q", s)
		}
		p.Standardize = v
	}
	if s := os.Getenv("HOTSPOT_EPS"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_EPS %q", s)
		}
		p.Density.Eps = v
	}
	if s := os.Getenv("HOTSPOT_MIN_SAMPLES"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_MIN_SAMPLES %q", s)
		}
		p.Density.MinSamples = v
	}
	if s := os.Getenv("HOTSPOT_K"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_K %q", s)
		}
		p.Centroid.K = v
	}
	if s := os.Getenv("HOTSPOT_SEED"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid HOTSPOT_SEED %q", s)
		}
		p.Centroid.Seed = v
	}

	// Both strategies are validated so a later per-request switch cannot
	// pick up a broken default.
	if err := p.Density.Validate(); err != nil {
		return p, fmt.Errorf("invalid hotspot config: %w", err)
	}
	if err := p.Centroid.Validate(); err != nil {
		return p, fmt.Errorf("invalid hotspot config: %w", err)
	}
	return p, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
