package types

import (
	"fmt"
	"strings"
	"time"
)

// ContentItem is a question/answer record evaluated by the quality gate
// and mutated by the feedback processor after acceptance.
type ContentItem struct {
	ID          string     `json:"id"`
	Prompt      string     `json:"question"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation,omitempty"`
	Diagram     string     `json:"diagram,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	Channel     string     `json:"channel"`
	SubChannel  string     `json:"sub_channel,omitempty"`
	Status      ItemStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// Validate checks the fields required before an item reaches the quality gate
func (c *ContentItem) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("question is required")
	}
	if strings.TrimSpace(c.Answer) == "" {
		return fmt.Errorf("answer is required")
	}
	if c.Difficulty != "" && !c.Difficulty.IsValid() {
		return fmt.Errorf("invalid difficulty: %s", c.Difficulty)
	}
	if c.Status != "" && !c.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	return nil
}

// Text returns the text used for embedding and keyword matching
func (c *ContentItem) Text() string {
	return c.Prompt + " " + c.Answer
}

// IsDisabled reports whether the item has been disabled by feedback
func (c *ContentItem) IsDisabled() bool {
	return c.Status == StatusDisabled
}

// Clone returns a deep copy so callers can mutate without aliasing tags
func (c *ContentItem) Clone() *ContentItem {
	cp := *c
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	return &cp
}

// Difficulty is the intended audience level of an item
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks if the difficulty value is valid
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// ItemStatus is the lifecycle flag of a stored item. Items are never deleted;
// disabling flips this flag.
type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusDisabled ItemStatus = "disabled"
)

// IsValid checks if the status value is valid
func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusDisabled:
		return true
	}
	return false
}

// ItemFilter narrows content store listings
type ItemFilter struct {
	Channel string
	Status  ItemStatus
	Limit   int
}
