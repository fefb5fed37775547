// Package deduplication provides vector-based duplicate detection and
// clustering for content items.
//
// # Overview
//
// Items are embedded through an embedding.Provider and compared by cosine
// similarity. Every compared pair falls into one of three bands:
//
//   - duplicate:      similarity >= DuplicateThreshold (default 0.90)
//   - near-duplicate: NearDuplicateThreshold <= similarity < DuplicateThreshold (default 0.80)
//   - unique:         anything below
//
// Thresholds are configuration so operators can trade precision for recall.
//
// # Modes
//
//  1. Single item check (CheckDuplicate): compare one item against a supplied
//     corpus, or against the similarity index when no corpus is given. The
//     quality gate's duplicate stage uses this.
//  2. Batch detection (DetectBatch): compare every item in a batch against
//     every other item. Repeated IDs are skipped through a seen-set.
//  3. Index maintenance (Index, FindSimilar): persist item vectors and answer
//     nearest-neighbor lookups.
//
// # Clustering
//
// Cluster joins duplicate pairs with a union-find forest (union by rank, path
// compression) and reports every group of two or more items:
//
//	result, err := dedup.DetectBatch(ctx, items)
//	if err != nil {
//	    return fmt.Errorf("batch detection failed: %w", err)
//	}
//	for _, c := range deduplication.Cluster(result.ItemIDs, result.Pairs) {
//	    log.Printf("%s: %v (%s)", c.ID, c.ItemIDs, c.Recommendation)
//	}
//
// Clusters with more than two members are recommended for merge; pairs are
// recommended for review. The partition does not depend on pair order.
//
// # Error Handling
//
// An item that cannot be embedded is logged and skipped; the rest of the
// batch continues. With FailOpen=true (the default) a failed CheckDuplicate
// returns a unique decision whose Error field records the failure. With
// FailOpen=false the error is returned to the caller.
//
// Fatal (always error):
//   - Invalid configuration
//   - Nil items
package deduplication
