package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNoJSON is returned when no strategy recovers a JSON document from a reply
var ErrNoJSON = errors.New("no JSON document in model reply")

const maxReplySize = 1 << 20

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json|js|javascript)?\\s*\\n?(.*?)\\n?```")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	lineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// replyRepairs are applied cumulatively until the reply decodes
var replyRepairs = []struct {
	name string
	fix  func(string) string
}{
	{"as-is", strings.TrimSpace},
	{"unfence", unfence},
	{"repair", repairJSON},
	{"extract", outermostValue},
}

// decodeReply decodes a model reply into T. Models wrap JSON in prose and
// code fences and emit JS-style syntax; each repair is tried in turn.
func decodeReply[T any](reply string) (T, error) {
	var out T
	if len(reply) > maxReplySize {
		return out, fmt.Errorf("reply too large (%d bytes)", len(reply))
	}
	text := reply
	var lastErr error
	for _, r := range replyRepairs {
		text = r.fix(text)
		if text == "" {
			break
		}
		if lastErr = json.Unmarshal([]byte(text), &out); lastErr == nil {
			return out, nil
		}
	}
	if lastErr != nil {
		return out, fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return out, ErrNoJSON
}

func unfence(s string) string {
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(s, "`"))
}

// repairJSON drops comments and trailing commas and quotes bare keys.
// Single quotes are left alone so apostrophes in values survive.
func repairJSON(s string) string {
	s = blockComment.ReplaceAllString(s, "")
	s = lineComment.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	return strings.TrimSpace(s)
}

// outermostValue cuts s down to the span between the first opening brace or
// bracket and the matching last closing one
func outermostValue(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}

// clip shortens s to at most n bytes without splitting a rune
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
