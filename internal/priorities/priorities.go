package priorities

import (
	"sort"

	"github.com/steveyegge/intake/internal/types"
)

// CalculateReportPriority returns the processing priority of a feedback report
// for channel. Lower values are processed first.
//
// Priority rules:
// - Channels with no items: 0 (most urgent, the channel is empty)
// - Certification channels: count/2 (scarce content, processed sooner)
// - Everything else: the channel's item count
// - Reports without a channel sort with the empty channel's count
func CalculateReportPriority(channel string, counts map[string]int, certification map[string]bool) int {
	count := counts[channel]
	if count <= 0 {
		return 0
	}
	if certification[channel] {
		return count / 2
	}
	return count
}

// SortReports orders reports ascending by priority. The sort is stable, so
// reports with equal priority keep their fetch order.
func SortReports(reports []*types.FeedbackReport, counts map[string]int, certification map[string]bool) {
	priority := make(map[*types.FeedbackReport]int, len(reports))
	for _, r := range reports {
		priority[r] = CalculateReportPriority(r.Channel, counts, certification)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return priority[reports[i]] < priority[reports[j]]
	})
}
