package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/intake/internal/types"
)

func TestClaimable(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)

	tests := []struct {
		name  string
		entry *types.LedgerEntry
		want  bool
	}{
		{"no entry", nil, true},
		{"completed recently", &types.LedgerEntry{Status: types.LedgerCompleted, CompletedAt: &recent}, false},
		{"completed long ago", &types.LedgerEntry{Status: types.LedgerCompleted, CompletedAt: &old}, true},
		{"fresh claim", &types.LedgerEntry{Status: types.LedgerProcessing, ProcessedAt: now.Add(-time.Minute)}, false},
		{"abandoned claim", &types.LedgerEntry{Status: types.LedgerProcessing, ProcessedAt: now.Add(-time.Hour)}, true},
		{"failed", &types.LedgerEntry{Status: types.LedgerFailed, ProcessedAt: now}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Claimable(tt.entry, 24*time.Hour, now))
		})
	}
}
