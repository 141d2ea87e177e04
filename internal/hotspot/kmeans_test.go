package hotspot

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterCentroid_ExactlyKNonEmptyClusters(t *testing.T) {
	m := column(0, 0.1, 0.2, 5, 5.1, 9, 9.2, 9.4, 20)

	for k := 1; k <= 9; k++ {
		labels, centers, err := ClusterCentroid(m, CentroidParams{K: k, Seed: DefaultSeed})
		require.NoError(t, err, "k=%d", k)
		require.Len(t, centers, k)

		sizes := make(map[int]int)
		for _, l := range labels {
			require.GreaterOrEqual(t, l, 0)
			require.Less(t, l, k)
			sizes[l]++
		}
		assert.Len(t, sizes, k, "k=%d should leave no cluster empty", k)
	}
}

func TestClusterCentroid_SeparatesObviousGroups(t *testing.T) {
	m := column(0, 0.1, 0.2, 10, 10.1, 10.2)

	labels, centers, err := ClusterCentroid(m, CentroidParams{K: 2, Seed: DefaultSeed})
	require.NoError(t, err)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
	assert.InDelta(t, 0.1, centers[labels[0]][0], 1e-9)
	assert.InDelta(t, 10.1, centers[labels[3]][0], 1e-9)
}

func TestClusterCentroid_SameSeedSameLabels(t *testing.T) {
	records := recordsAt(append(fourGroups(), indiaScatter()...)...)
	n, err := Normalize(records, DefaultFeatures, true)
	require.NoError(t, err)

	p := CentroidParams{K: 6, Seed: 7}
	first, _, err := ClusterCentroid(n.Matrix, p)
	require.NoError(t, err)
	second, _, err := ClusterCentroid(n.Matrix, p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClusterCentroid_KExceedsPoints(t *testing.T) {
	_, _, err := ClusterCentroid(column(1), CentroidParams{K: 3, Seed: DefaultSeed})

	var perr *domain.InvalidParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "k", perr.Param)
}

func TestClusterCentroid_InvalidK(t *testing.T) {
	_, _, err := ClusterCentroid(column(1, 2), CentroidParams{K: 0})
	assert.True(t, domain.IsInvalidParameter(err))
}

func TestClusterCentroid_TooFewDistinctPoints(t *testing.T) {
	_, _, err := ClusterCentroid(column(3, 3, 3, 4), CentroidParams{K: 3, Seed: DefaultSeed})
	require.ErrorIs(t, err, domain.ErrNumericDegenerate)
	assert.False(t, domain.IsInvalidParameter(err))
}

func TestClusterCentroid_SignedZeroIsOnePoint(t *testing.T) {
	negZero := math.Copysign(0, -1)

	assert.NotPanics(t, func() {
		_, _, err := ClusterCentroid(column(0, negZero), CentroidParams{K: 2, Seed: DefaultSeed})
		require.ErrorIs(t, err, domain.ErrNumericDegenerate)
	})

	labels, _, err := ClusterCentroid(column(0, negZero, 1), CentroidParams{K: 2, Seed: DefaultSeed})
	require.NoError(t, err)
	assert.Equal(t, labels[0], labels[1])
	assert.NotEqual(t, labels[0], labels[2])
}

func TestSeedCenters_CoincidentRows(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := seedCenters(column(2, 2, 2), 2, rng)
	require.ErrorIs(t, err, domain.ErrNumericDegenerate)
}

func TestClusterCentroid_NilMatrix(t *testing.T) {
	labels, centers, err := ClusterCentroid(nil, CentroidParams{K: 5, Seed: DefaultSeed})
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Empty(t, centers)
}
