package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon maps a channel name to the keywords that mark content as on-topic
type Lexicon map[string][]string

// Keywords returns the lowercased keywords for channel and whether the channel is known
func (l Lexicon) Keywords(channel string) ([]string, bool) {
	kw, ok := l[strings.ToLower(strings.TrimSpace(channel))]
	return kw, ok
}

// Channels returns the configured channel names in sorted order
func (l Lexicon) Channels() []string {
	out := make([]string, 0, len(l))
	for ch := range l {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Merge returns a copy of l with other's channels added or replaced
func (l Lexicon) Merge(other Lexicon) Lexicon {
	out := make(Lexicon, len(l)+len(other))
	for ch, kw := range l {
		out[ch] = kw
	}
	for ch, kw := range other {
		out[ch] = kw
	}
	return out
}

// ParseLexicon reads a YAML document of the form
//
//	algorithms: [algorithm, complexity, sort]
//	databases:
//	  - index
//	  - transaction
//
// Channel names and keywords are lowercased; duplicates and blanks are dropped.
func ParseLexicon(data []byte) (Lexicon, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	lex := make(Lexicon, len(raw))
	for ch, words := range raw {
		name := strings.ToLower(strings.TrimSpace(ch))
		if name == "" {
			return nil, fmt.Errorf("lexicon contains an empty channel name")
		}
		seen := make(map[string]bool, len(words))
		var kw []string
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			kw = append(kw, w)
		}
		if len(kw) == 0 {
			return nil, fmt.Errorf("channel %q has no keywords", name)
		}
		lex[name] = kw
	}
	return lex, nil
}

// LoadLexicon reads a lexicon file and merges it over the default lexicon
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	lex, err := ParseLexicon(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return DefaultLexicon().Merge(lex), nil
}

// DefaultLexicon returns the built-in channel keywords
func DefaultLexicon() Lexicon {
	return Lexicon{
		"algorithms": {
			"algorithm", "complexity", "sort", "search", "binary", "graph",
			"tree", "array", "recursion", "dynamic programming", "hash", "o(",
		},
		"data-structures": {
			"array", "linked list", "stack", "queue", "heap", "tree",
			"hash", "trie", "graph", "insert", "lookup", "node",
		},
		"system-design": {
			"scalability", "latency", "throughput", "cache", "load balancer", "shard",
			"replication", "consistency", "availability", "partition", "queue", "database",
		},
		"databases": {
			"index", "transaction", "query", "sql", "join", "normalization",
			"isolation", "replication", "schema", "primary key", "acid", "table",
		},
		"frontend": {
			"dom", "css", "browser", "render", "component", "state",
			"event", "javascript", "layout", "accessibility", "react", "html",
		},
		"backend": {
			"api", "server", "request", "http", "authentication", "database",
			"middleware", "rest", "session", "endpoint", "service", "cache",
		},
		"devops": {
			"deploy", "pipeline", "container", "docker", "kubernetes", "monitoring",
			"ci", "infrastructure", "rollback", "terraform", "logging", "cluster",
		},
		"networking": {
			"tcp", "udp", "http", "dns", "packet", "latency",
			"socket", "tls", "routing", "bandwidth", "protocol", "ip",
		},
		"security": {
			"encryption", "authentication", "authorization", "xss", "csrf", "injection",
			"token", "hash", "certificate", "vulnerability", "tls", "password",
		},
		"behavioral": {
			"team", "conflict", "project", "deadline", "feedback", "situation",
			"stakeholder", "lead", "result", "challenge", "communication", "decision",
		},
	}
}
