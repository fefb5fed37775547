package deduplication

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/intake/internal/types"
)

func dup(a, b string) types.SimilarityRecord {
	return types.NewSimilarityRecord(a, b, 0.95, types.ClassDuplicate)
}

func TestClusterTransitivity(t *testing.T) {
	clusters := Cluster([]string{"a", "b", "c", "d"}, []types.SimilarityRecord{dup("a", "b"), dup("b", "c")})

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"a", "b", "c"}, clusters[0].ItemIDs)
	assert.Equal(t, types.RecommendMerge, clusters[0].Recommendation)
}

func TestClusterRecommendations(t *testing.T) {
	clusters := Cluster(
		[]string{"x1", "x2", "y1", "y2", "y3", "z"},
		[]types.SimilarityRecord{dup("x1", "x2"), dup("y1", "y2"), dup("y3", "y2")},
	)

	require.Len(t, clusters, 2)
	assert.Equal(t, "cluster-1", clusters[0].ID)
	assert.Equal(t, []string{"x1", "x2"}, clusters[0].ItemIDs)
	assert.Equal(t, types.RecommendReview, clusters[0].Recommendation)
	assert.Equal(t, []string{"y1", "y2", "y3"}, clusters[1].ItemIDs)
	assert.Equal(t, types.RecommendMerge, clusters[1].Recommendation)
}

func TestClusterIgnoresNearDuplicatesAndSingletons(t *testing.T) {
	pairs := []types.SimilarityRecord{
		types.NewSimilarityRecord("a", "b", 0.85, types.ClassNearDuplicate),
		types.NewSimilarityRecord("c", "d", 0.50, types.ClassUnique),
	}
	assert.Empty(t, Cluster([]string{"a", "b", "c", "d"}, pairs))
	assert.Empty(t, Cluster(nil, nil))
}

func TestClusterIncludesIDsOnlyNamedByPairs(t *testing.T) {
	clusters := Cluster(nil, []types.SimilarityRecord{dup("p", "q")})
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"p", "q"}, clusters[0].ItemIDs)
}

func TestClusterOrderIndependent(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	pairs := []types.SimilarityRecord{
		dup("a", "b"), dup("c", "b"), dup("d", "e"),
		dup("f", "g"), dup("g", "h"), dup("h", "f"),
		types.NewSimilarityRecord("a", "i", 0.82, types.ClassNearDuplicate),
	}
	want := Cluster(ids, pairs)
	require.Len(t, want, 3)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffledPairs := append([]types.SimilarityRecord(nil), pairs...)
		rng.Shuffle(len(shuffledPairs), func(i, j int) {
			shuffledPairs[i], shuffledPairs[j] = shuffledPairs[j], shuffledPairs[i]
		})
		shuffledIDs := append([]string(nil), ids...)
		rng.Shuffle(len(shuffledIDs), func(i, j int) {
			shuffledIDs[i], shuffledIDs[j] = shuffledIDs[j], shuffledIDs[i]
		})

		assert.Equal(t, want, Cluster(shuffledIDs, shuffledPairs), "permutation %d", i)
	}
}

func TestUnionFindPathCompression(t *testing.T) {
	uf := newUnionFind([]string{"a", "b", "c", "d"})
	uf.union("a", "b")
	uf.union("c", "d")
	uf.union("b", "d")

	root := uf.find("c")
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, root, uf.find(id))
		assert.Equal(t, root, uf.parent[id], "%s should point at the root after find", id)
	}
}
