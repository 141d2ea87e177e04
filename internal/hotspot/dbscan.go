package hotspot

import (
	"math"
	"slices"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default density parameters.
const (
	DefaultEps        = 0.01
	DefaultMinSamples = 3
)

// DensityParams configures ClusterDensity.
type DensityParams struct {
	Eps        float64 // neighbourhood radius in feature space
	MinSamples int     // points (self included) needed within Eps for a core point
}

// Validate checks the parameter ranges.
func (p DensityParams) Validate() error {
	if !(p.Eps > 0) || math.IsInf(p.Eps, 0) {
		return &domain.InvalidParameterError{Param: "eps", Value: p.Eps, Reason: "must be a positive finite number"}
	}
	if p.MinSamples < 1 {
		return &domain.InvalidParameterError{Param: "min_samples", Value: p.MinSamples, Reason: "must be at least 1"}
	}
	return nil
}

// ClusterDensity runs DBSCAN over the rows of m. Every row gets exactly one
// label: a cluster id counted from 0 in discovery order, or domain.NoiseLabel.
// A border point reachable from two clusters stays with the first one that
// reached it, so the result is deterministic for a fixed row order.
func ClusterDensity(m *mat.Dense, params DensityParams) ([]int, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return []int{}, nil
	}
	n, _ := m.Dims()
	index := newGridIndex(m, params.Eps)

	// 0=unvisited, -1=noise, >0=clusterID+1
	state := make([]int, n)
	clusterID := 0

	for i := 0; i < n; i++ {
		if state[i] != 0 {
			continue
		}

		neighbors := index.regionQuery(i)
		if len(neighbors) < params.MinSamples {
			state[i] = domain.NoiseLabel
			continue
		}

		clusterID++
		expandCluster(index, state, i, neighbors, clusterID, params.MinSamples)
	}

	labels := make([]int, n)
	for i, s := range state {
		if s == domain.NoiseLabel {
			labels[i] = domain.NoiseLabel
			continue
		}
		labels[i] = s - 1
	}
	return labels, nil
}

// expandCluster grows a cluster from a core point, queueing the neighbours of
// every further core point it reaches.
func expandCluster(index *gridIndex, state []int, seed int, neighbors []int, clusterID, minSamples int) {
	state[seed] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if state[idx] == domain.NoiseLabel {
			state[idx] = clusterID // noise becomes border point
			continue
		}
		if state[idx] != 0 {
			continue
		}

		state[idx] = clusterID
		next := index.regionQuery(idx)
		if len(next) >= minSamples {
			neighbors = append(neighbors, next...)
		}
	}
}

// gridIndex buckets rows by their first one or two features into cells
// slightly wider than eps, so any row within eps of another lies in the same
// or an adjacent cell. Remaining features are checked by the exact distance.
type gridIndex struct {
	m     *mat.Dense
	eps   float64
	size  float64
	dims  int
	cells map[gridCell][]int // nil: scan every row
}

type gridCell [2]int64

// maxGridCoord bounds |coordinate|/cell size. Beyond it float rounding could
// push a neighbour two cells away, so the index falls back to a full scan.
const maxGridCoord = 1 << 20

func newGridIndex(m *mat.Dense, eps float64) *gridIndex {
	n, cols := m.Dims()
	g := &gridIndex{m: m, eps: eps, size: eps * (1 + 1e-9), dims: min(cols, 2)}
	for i := 0; i < n; i++ {
		for _, v := range m.RawRowView(i)[:g.dims] {
			if math.Abs(v)/g.size > maxGridCoord {
				return g
			}
		}
	}

	g.cells = make(map[gridCell][]int)
	for i := 0; i < n; i++ {
		c := g.cellOf(i)
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

func (g *gridIndex) cellOf(row int) gridCell {
	var c gridCell
	for d, v := range g.m.RawRowView(row)[:g.dims] {
		c[d] = int64(math.Floor(v / g.size))
	}
	return c
}

// regionQuery returns the rows within eps of row idx, idx included, in
// ascending row order.
func (g *gridIndex) regionQuery(idx int) []int {
	p := g.m.RawRowView(idx)
	if g.cells == nil {
		n, _ := g.m.Dims()
		var neighbors []int
		for j := 0; j < n; j++ {
			if floats.Distance(p, g.m.RawRowView(j), 2) <= g.eps {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	base := g.cellOf(idx)
	spanY := int64(0)
	if g.dims == 2 {
		spanY = 1
	}
	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := -spanY; dy <= spanY; dy++ {
			for _, j := range g.cells[gridCell{base[0] + dx, base[1] + dy}] {
				if floats.Distance(p, g.m.RawRowView(j), 2) <= g.eps {
					neighbors = append(neighbors, j)
				}
			}
		}
	}
	slices.Sort(neighbors)
	return neighbors
}
