package gates

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/steveyegge/intake/internal/types"
)

var placeholderSentinels = []string{
	"todo", "fixme", "tbd", "lorem ipsum", "placeholder", "coming soon", "[insert",
}

var genericPhrases = []string{
	"it depends", "there are many ways", "various factors", "in general",
	"and so on", "many different", "it is important to note", "best practices",
}

// codeToken matches text that looks like code: inline code, calls, operators,
// braces, big-O notation or snake/camel case identifiers
var codeToken = regexp.MustCompile("`[^`]+`|\\w+\\([^)]*\\)|[{};]|=>|==|!=|:=|->|\\bO\\([^)]+\\)|\\b[a-z]+_[a-z_]+\\b|\\b[a-z]+[A-Z][A-Za-z]+\\b")

var wordBoundary = regexp.MustCompile(`[^a-z0-9\[]+`)

// ContentStage penalizes placeholders, vague phrasing and thin answers
type ContentStage struct {
	cfg       ContentConfig
	technical map[string]bool
}

func (s *ContentStage) Name() StageName { return StageContent }

func (s *ContentStage) Run(_ context.Context, item *types.ContentItem, _ *EvalContext) *StageResult {
	res := newResult(StageContent)
	if item == nil {
		return res
	}

	text := strings.ToLower(item.Prompt + "\n" + item.Answer + "\n" + item.Explanation)
	for _, sentinel := range placeholderSentinels {
		if n := countSentinel(text, sentinel); n > 0 {
			penalty := 25 + 5*(n-1)
			if penalty > 40 {
				penalty = 40
			}
			res.deduct(penalty, fmt.Sprintf("placeholder text %q found %d time(s)", sentinel, n))
		}
	}

	if item.Difficulty != types.DifficultyBeginner {
		hits := 0
		for _, phrase := range genericPhrases {
			if strings.Contains(text, phrase) {
				hits++
			}
		}
		if hits > 0 {
			penalty := 10 * hits
			if penalty > 20 {
				penalty = 20
			}
			res.warn(penalty, fmt.Sprintf("%d generic phrase(s) for %s content", hits, difficultyLabel(item.Difficulty)))
		}
	}

	answerLen := utf8.RuneCountInString(strings.TrimSpace(item.Answer))
	if answerLen < s.cfg.AnswerFloor {
		res.deduct(20, fmt.Sprintf("answer is %d characters, below %d", answerLen, s.cfg.AnswerFloor))
	}

	if s.technical[strings.ToLower(item.Channel)] && answerLen > s.cfg.CodeCheckMinLength &&
		!codeToken.MatchString(item.Answer) {
		res.warn(15, "technical answer has no code-like tokens")
	}
	return res
}

// countSentinel counts sentinel occurrences as whole words so that
// "todos" or "placeholders" in prose still count but "mastodon" does not
func countSentinel(text, sentinel string) int {
	if strings.ContainsAny(sentinel, " [") {
		return strings.Count(text, sentinel)
	}
	n := 0
	for _, w := range wordBoundary.Split(text, -1) {
		if w == sentinel || w == sentinel+"s" {
			n++
		}
	}
	return n
}

func difficultyLabel(d types.Difficulty) string {
	if d == "" {
		return "unlabeled"
	}
	return string(d)
}
