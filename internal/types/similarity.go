package types

// Classification labels a pair of items by similarity band
type Classification string

const (
	ClassDuplicate     Classification = "duplicate"
	ClassNearDuplicate Classification = "near-duplicate"
	ClassUnique        Classification = "unique"
)

// SimilarityRecord pairs two items with their cosine similarity.
// ItemA always sorts before ItemB.
type SimilarityRecord struct {
	ItemA          string         `json:"item_a"`
	ItemB          string         `json:"item_b"`
	Score          float64        `json:"score"`
	Classification Classification `json:"classification"`
}

// NewSimilarityRecord orders the pair so records are independent of comparison order
func NewSimilarityRecord(a, b string, score float64, class Classification) SimilarityRecord {
	if b < a {
		a, b = b, a
	}
	return SimilarityRecord{ItemA: a, ItemB: b, Score: score, Classification: class}
}

// Recommendation is the suggested handling of a duplicate cluster
type Recommendation string

const (
	RecommendMerge  Recommendation = "merge"
	RecommendReview Recommendation = "review"
)

// DuplicateCluster is a set of at least two items linked by direct or
// transitive duplicate relations
type DuplicateCluster struct {
	ID             string         `json:"id"`
	ItemIDs        []string       `json:"item_ids"`
	Recommendation Recommendation `json:"recommendation"`
}

// Size returns the number of items in the cluster
func (c DuplicateCluster) Size() int {
	return len(c.ItemIDs)
}
