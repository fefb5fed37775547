package feedback

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/intake/internal/types"
)

// ErrUnparseableReport is returned when a report names no item or no known kind
var ErrUnparseableReport = errors.New("unparseable feedback report")

// Field lines may be decorated as markdown ("- **Question ID:** q1")
var (
	itemIDField  = regexp.MustCompile(`(?im)^[\s*#>-]*(?:question|item)[ _-]?id[\s*]*:[\s*]*([A-Za-z0-9_.:\-]+)`)
	kindField    = regexp.MustCompile(`(?im)^[\s*#>-]*(?:feedback[ _-]?)?type[\s*]*:[\s*]*([A-Za-z]+)`)
	channelField = regexp.MustCompile(`(?im)^[\s*#>-]*channel[\s*]*:[\s*]*([A-Za-z0-9_.\-]+)`)
	detailsField = regexp.MustCompile(`(?ims)^[\s*#>-]*details[\s*]*:[\s*]*(.*)`)
)

var kindAliases = map[string]types.ReportKind{
	"improve":     types.KindImprove,
	"improvement": types.KindImprove,
	"enhance":     types.KindImprove,
	"rewrite":     types.KindRewrite,
	"regenerate":  types.KindRewrite,
	"disable":     types.KindDisable,
	"remove":      types.KindDisable,
}

const kindLabelPrefix = "feedback:"

// ParseReport extracts the referenced item and the requested action from an
// issue. Body fields win over the feedback:<kind> label.
func ParseReport(issue types.TrackerIssue) (*types.FeedbackReport, error) {
	report := &types.FeedbackReport{
		IssueID: issue.ID,
		ItemID:  firstMatch(itemIDField, issue.Body),
		Channel: firstMatch(channelField, issue.Body),
		Detail:  strings.TrimSpace(firstMatch(detailsField, issue.Body)),
	}

	if k, ok := kindAliases[strings.ToLower(firstMatch(kindField, issue.Body))]; ok {
		report.Kind = k
	} else {
		for _, label := range issue.Labels {
			if !strings.HasPrefix(label, kindLabelPrefix) {
				continue
			}
			if k, ok := kindAliases[strings.ToLower(strings.TrimPrefix(label, kindLabelPrefix))]; ok {
				report.Kind = k
				break
			}
		}
	}

	if report.ItemID == "" {
		return report, fmt.Errorf("%w: no question id found", ErrUnparseableReport)
	}
	if report.Kind == "" {
		return report, fmt.Errorf("%w: no feedback type found", ErrUnparseableReport)
	}
	return report, nil
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
