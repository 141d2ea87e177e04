package hotspot

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default centroid parameters.
const (
	DefaultK    = 5
	DefaultSeed = 42

	maxKMeansIterations = 300
)

// CentroidParams configures ClusterCentroid.
type CentroidParams struct {
	K    int
	Seed uint64 // fixed seed for k-means++ initialisation
}

// Validate checks the parameter ranges that do not depend on the data.
func (p CentroidParams) Validate() error {
	if p.K < 1 {
		return &domain.InvalidParameterError{Param: "k", Value: p.K, Reason: "must be at least 1"}
	}
	return nil
}

// ClusterCentroid partitions the rows of m into exactly K non-empty clusters
// with k-means (k-means++ seeding, Lloyd iterations). It returns one label per
// row in [0, K) and the K cluster centres in feature space. The same input and
// seed always produce the same labels.
//
// K larger than the row count is a parameter error. Fewer distinct rows than
// K cannot be split and returns domain.ErrNumericDegenerate.
func ClusterCentroid(m *mat.Dense, params CentroidParams) ([]int, [][]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if m == nil {
		return []int{}, nil, nil
	}
	n, _ := m.Dims()
	if params.K > n {
		return nil, nil, &domain.InvalidParameterError{
			Param:  "k",
			Value:  params.K,
			Reason: fmt.Sprintf("exceeds the number of points (%d)", n),
		}
	}
	if d := distinctRows(m); d < params.K {
		return nil, nil, fmt.Errorf("%w: %d distinct points cannot form %d clusters", domain.ErrNumericDegenerate, d, params.K)
	}

	rng := rand.New(rand.NewPCG(params.Seed, params.Seed))
	centers, err := seedCenters(m, params.K, rng)
	if err != nil {
		return nil, nil, err
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := assign(m, centers, labels)
		if fillEmpty(m, centers, labels) {
			changed = true
		}
		centers = means(m, labels, len(centers))
		if !changed {
			break
		}
	}
	return labels, centers, nil
}

// seedCenters picks k initial centres with k-means++: each next centre is
// drawn with probability proportional to its squared distance from the
// nearest centre chosen so far. It fails with domain.ErrNumericDegenerate
// when every remaining row coincides with a chosen centre.
func seedCenters(m *mat.Dense, k int, rng *rand.Rand) ([][]float64, error) {
	n, _ := m.Dims()
	centers := make([][]float64, 0, k)
	centers = append(centers, cloneRow(m, rng.IntN(n)))

	d2 := make([]float64, n)
	for len(centers) < k {
		var total float64
		for i := 0; i < n; i++ {
			d := nearestDistance(m.RawRowView(i), centers)
			d2[i] = d * d
			total += d2[i]
		}

		target := rng.Float64() * total
		pick := -1
		var cum float64
		for i, w := range d2 {
			if w == 0 {
				continue
			}
			cum += w
			pick = i
			if cum >= target {
				break
			}
		}
		if pick < 0 {
			return nil, fmt.Errorf("%w: only %d distinct centres for %d clusters", domain.ErrNumericDegenerate, len(centers), k)
		}
		centers = append(centers, cloneRow(m, pick))
	}
	return centers, nil
}

// assign labels each row with its nearest centre, lowest index on ties.
// It reports whether any label changed.
func assign(m *mat.Dense, centers [][]float64, labels []int) bool {
	changed := false
	for i := range labels {
		best, _ := nearest(m.RawRowView(i), centers)
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// fillEmpty gives every empty cluster the row farthest from its own centre,
// taken from a cluster that can spare it.
func fillEmpty(m *mat.Dense, centers [][]float64, labels []int) bool {
	sizes := make([]int, len(centers))
	for _, l := range labels {
		sizes[l]++
	}

	moved := false
	for c := range centers {
		if sizes[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, l := range labels {
			if sizes[l] < 2 {
				continue
			}
			if d := floats.Distance(m.RawRowView(i), centers[l], 2); d > farDist {
				far, farDist = i, d
			}
		}
		sizes[labels[far]]--
		labels[far] = c
		sizes[c] = 1
		centers[c] = cloneRow(m, far)
		moved = true
	}
	return moved
}

func means(m *mat.Dense, labels []int, k int) [][]float64 {
	_, cols := m.Dims()
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, cols)
	}
	counts := make([]float64, k)
	for i, l := range labels {
		floats.Add(sums[l], m.RawRowView(i))
		counts[l]++
	}
	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/counts[c], sums[c])
		}
	}
	return sums
}

func nearest(p []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := floats.Distance(p, center, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func nearestDistance(p []float64, centers [][]float64) float64 {
	_, d := nearest(p, centers)
	return d
}

func cloneRow(m *mat.Dense, i int) []float64 {
	return append([]float64(nil), m.RawRowView(i)...)
}

func distinctRows(m *mat.Dense) int {
	n, _ := m.Dims()
	seen := make(map[string]struct{}, n)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.Reset()
		for _, v := range m.RawRowView(i) {
			// +0 folds -0 into 0; the two are at distance zero.
			b.WriteString(strconv.FormatFloat(v+0, 'g', -1, 64))
			b.WriteByte('|')
		}
		seen[b.String()] = struct{}{}
	}
	return len(seen)
}
