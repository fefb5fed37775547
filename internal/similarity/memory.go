package similarity

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-process index scanned linearly on each search
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

// Add stores or replaces the vector for entry.ID
func (m *MemoryIndex) Add(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("entry %s has an empty vector", entry.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

// Search returns matches at or above q.Threshold ranked by score, then id
func (m *MemoryIndex) Search(_ context.Context, vector []float32, q Query) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for id, e := range m.entries {
		if q.excluded(id) {
			continue
		}
		if q.Channel != "" && e.Channel != q.Channel {
			continue
		}
		score := Cosine(vector, e.Vector)
		if score >= q.Threshold {
			matches = append(matches, Match{ID: id, Channel: e.Channel, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// Len returns the number of indexed entries
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
