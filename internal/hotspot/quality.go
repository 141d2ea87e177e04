package hotspot

import (
	"math"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Evaluate returns the mean silhouette coefficient of labels over the rows of
// m, in [-1, 1]. Noise rows are left out. The score is 0 when fewer than two
// non-noise rows or fewer than two distinct non-noise clusters remain.
//
// For a row i with mean intra-cluster distance a and smallest mean distance b
// to another cluster, s(i) = (b-a)/max(a,b); rows alone in their cluster score 0.
func Evaluate(m *mat.Dense, labels []int) float64 {
	if m == nil {
		return 0
	}
	n, _ := m.Dims()
	if n != len(labels) {
		return 0
	}

	var idx []int
	sizes := make(map[int]int)
	for i, l := range labels {
		if l == domain.NoiseLabel {
			continue
		}
		idx = append(idx, i)
		sizes[l]++
	}
	if len(idx) < 2 || len(sizes) < 2 {
		return 0
	}

	var total float64
	sums := make(map[int]float64, len(sizes))
	for _, i := range idx {
		clear(sums)
		p := m.RawRowView(i)
		for _, j := range idx {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(p, m.RawRowView(j), 2)
		}

		own := labels[i]
		if sizes[own] < 2 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c, size := range sizes {
			if c == own {
				continue
			}
			if mean := sums[c] / float64(size); mean < b {
				b = mean
			}
		}
		if denom := math.Max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(len(idx))
}
