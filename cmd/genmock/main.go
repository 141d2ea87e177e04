// Command genmock produces accident-report fixtures in the collector's raw
// JSON shape. It either converts a CSV export (one row per accident, columns
// named as in the collector) or synthesizes a seeded batch clustered around
// the configured areas. Every record is run through the domain parser so the
// fixture only contains rows the pipeline would accept.
//
// Usage:
//
//	go run ./cmd/genmock -n 60 -seed 42 -out data/mock/accident_reports_sample.json
//	go run ./cmd/genmock -csv sample.csv -out data/mock/accidents.json
//	go run ./cmd/genmock -n 200 -brokers localhost:9092 -topic raw-accident-reports
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	kafkaadapter "github.com/couchcryptid/accident-hotspot-service/internal/adapter/kafka"
	"github.com/couchcryptid/accident-hotspot-service/internal/config"
	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

var (
	weathers        = []string{"Clear", "Rain", "Fog", "Cloudy", "Windy"}
	roadTypes       = []string{"Highway", "City Road", "Rural Road", "Residential Street"}
	lightConditions = []string{"Daylight", "Dusk", "Dark - Lit", "Dark - Unlit"}
	speedLimits     = []int{30, 40, 50, 60, 80}
)

// baseDate anchors synthetic timestamps so fixtures are reproducible.
var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	n := flag.Int("n", 60, "number of synthetic records")
	seed := flag.Uint64("seed", 42, "random seed for synthetic records")
	scatter := flag.Float64("scatter", 0.15, "fraction of synthetic records spread outside the areas")
	csvPath := flag.String("csv", "", "convert this CSV export instead of synthesizing")
	out := flag.String("out", "", "output path for the raw JSON fixture")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers to publish to")
	topic := flag.String("topic", "raw-accident-reports", "Kafka topic to publish to")
	flag.Parse()

	if *out == "" && *brokers == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: set -out and/or -brokers")
	}

	var (
		raws []domain.RawAccidentRecord
		err  error
	)
	if *csvPath != "" {
		raws, err = readCSV(*csvPath)
	} else {
		raws = synthesize(*n, *seed, *scatter, hotspot.DefaultAreas())
	}
	if err != nil {
		return err
	}

	records, kept := validate(raws)
	log.Printf("records: %d valid, %d rejected", len(kept), len(raws)-len(kept))

	if *out != "" {
		if err := writeJSON(*out, kept); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote fixture: %s", *out)
	}

	if *brokers != "" {
		if err := publish(*brokers, *topic, kept, records); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
		log.Printf("published %d records to %s", len(kept), *topic)
	}

	printStats(records)
	return nil
}

// synthesize draws n records: most are jittered around an area centre, the
// rest are scattered across the wider city.
func synthesize(n int, seed uint64, scatter float64, areas []domain.NamedArea) []domain.RawAccidentRecord {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	out := make([]domain.RawAccidentRecord, n)
	for i := range out {
		var lat, lon float64
		if rng.Float64() < scatter {
			lat = 10.90 + rng.Float64()*0.20
			lon = 76.88 + rng.Float64()*0.20
		} else {
			a := areas[rng.IntN(len(areas))]
			lat = a.Center.Lat() + rng.NormFloat64()*0.002
			lon = a.Center.Lon() + rng.NormFloat64()*0.002
		}
		ts := baseDate.Add(time.Duration(rng.IntN(365*24*60)) * time.Minute)
		out[i] = domain.RawAccidentRecord{
			DateTime:         ts.Format("2006-01-02 15:04:05"),
			Latitude:         strconv.FormatFloat(lat, 'f', 4, 64),
			Longitude:        strconv.FormatFloat(lon, 'f', 4, 64),
			Severity:         strconv.Itoa(1 + rng.IntN(4)),
			Weather:          weathers[rng.IntN(len(weathers))],
			RoadType:         roadTypes[rng.IntN(len(roadTypes))],
			VehiclesInvolved: strconv.Itoa(1 + rng.IntN(4)),
			LightCondition:   lightConditions[rng.IntN(len(lightConditions))],
			SpeedLimit:       strconv.Itoa(speedLimits[rng.IntN(len(speedLimits))]),
		}
	}
	return out
}

func readCSV(path string) ([]domain.RawAccidentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	var recs []domain.RawAccidentRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		recs = append(recs, domain.RawAccidentRecord{
			DateTime:         get(row, colIdx, "Date_Time"),
			Latitude:         get(row, colIdx, "Latitude"),
			Longitude:        get(row, colIdx, "Longitude"),
			Severity:         get(row, colIdx, "Severity"),
			Weather:          get(row, colIdx, "Weather"),
			RoadType:         get(row, colIdx, "Road_Type"),
			VehiclesInvolved: get(row, colIdx, "Vehicles_Involved"),
			LightCondition:   get(row, colIdx, "Light_Condition"),
			SpeedLimit:       get(row, colIdx, "Speed_Limit"),
		})
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return recs, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// validate keeps the rows the pipeline would accept, returning both the
// parsed records and their raw form.
func validate(raws []domain.RawAccidentRecord) ([]domain.AccidentRecord, []domain.RawAccidentRecord) {
	records := make([]domain.AccidentRecord, 0, len(raws))
	kept := make([]domain.RawAccidentRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := domain.ParseRawRecord(raw)
		if err != nil {
			log.Printf("row %d rejected: %v", i, err)
			continue
		}
		records = append(records, rec)
		kept = append(kept, raw)
	}
	return records, kept
}

func publish(brokers, topic string, raws []domain.RawAccidentRecord, records []domain.AccidentRecord) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	writer := kafkaadapter.NewWriter(&config.Config{KafkaBrokers: sharedcfg.ParseBrokers(brokers), KafkaSinkTopic: topic}, logger)
	defer writer.Close()

	events := make([]domain.OutputEvent, len(raws))
	for i, raw := range raws {
		value, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		events[i] = domain.OutputEvent{Key: []byte(records[i].ID), Value: value}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return writer.LoadBatch(ctx, events)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type areaCount struct {
	area  string
	count int
}

// printStats reports per-area and per-severity counts for updating test assertions.
func printStats(records []domain.AccidentRecord) {
	resolver, err := hotspot.NewAreaResolver(hotspot.DefaultAreas())
	if err != nil {
		log.Printf("area stats unavailable: %v", err)
		return
	}

	areas := map[string]int{}
	severity := map[int]int{}
	for _, r := range resolver.ResolveAll(records) {
		areas[r.Area]++
		severity[r.Severity]++
	}

	ac := make([]areaCount, 0, len(areas))
	for a, c := range areas {
		ac = append(ac, areaCount{a, c})
	}
	sort.Slice(ac, func(i, j int) bool {
		if ac[i].count != ac[j].count {
			return ac[i].count > ac[j].count
		}
		return ac[i].area < ac[j].area
	})

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(records))
	fmt.Printf("By area:")
	for _, a := range ac {
		fmt.Printf(" %s=%d", a.area, a.count)
	}
	fmt.Println()
	fmt.Printf("By severity: 1=%d, 2=%d, 3=%d, 4=%d\n", severity[1], severity[2], severity[3], severity[4])
}
