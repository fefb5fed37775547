package deduplication

import (
	"fmt"
	"sort"

	"github.com/steveyegge/intake/internal/types"
)

// unionFind is a disjoint-set forest with union by rank and path compression
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind(ids []string) *unionFind {
	uf := &unionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		uf.add(id)
	}
	return uf
}

func (uf *unionFind) add(id string) {
	if _, ok := uf.parent[id]; !ok {
		uf.parent[id] = id
	}
}

func (uf *unionFind) find(id string) string {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for id != root {
		next := uf.parent[id]
		uf.parent[id] = root
		id = next
	}
	return root
}

func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// Cluster groups items linked by direct or transitive duplicate pairs.
//
// Only pairs classified as duplicate are joined; near-duplicates stay apart.
// Singleton groups are dropped. Members of each cluster are sorted and the
// clusters are ordered by their first member, so the result is the same for
// any ordering of ids or pairs. Clusters of more than two items are
// recommended for merge, pairs for review.
func Cluster(ids []string, pairs []types.SimilarityRecord) []types.DuplicateCluster {
	uf := newUnionFind(ids)
	for _, p := range pairs {
		if p.Classification != types.ClassDuplicate {
			continue
		}
		uf.add(p.ItemA)
		uf.add(p.ItemB)
		uf.union(p.ItemA, p.ItemB)
	}

	groups := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		groups[root] = append(groups[root], id)
	}

	var members [][]string
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		sort.Strings(g)
		members = append(members, g)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i][0] < members[j][0]
	})

	clusters := make([]types.DuplicateCluster, 0, len(members))
	for i, m := range members {
		rec := types.RecommendReview
		if len(m) > 2 {
			rec = types.RecommendMerge
		}
		clusters = append(clusters, types.DuplicateCluster{
			ID:             fmt.Sprintf("cluster-%d", i+1),
			ItemIDs:        m,
			Recommendation: rec,
		})
	}
	return clusters
}
