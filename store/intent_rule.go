package store

import (
	"time"
)

// Rule types determine how Content is interpreted:
// keyword rules hold comma-separated tokens (leading ^ marks an exact-match
// token), regex rules hold one case-insensitive pattern, semantic rules hold
// a free-text example to be encoded.
const (
	RuleTypeKeyword  = "keyword"
	RuleTypeRegex    = "regex"
	RuleTypeSemantic = "semantic"
)

// IntentRule is a matcher-specific pattern attached to a category.
type IntentRule struct {
	ID         int32
	CategoryID int32
	RuleType   string
	Content    string
	Weight     float64 // 0..10, default 1.0
	Metadata   string  // JSON string for additional config
	IsActive   bool
	Enabled    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FindIntentRule is the filter for rule queries.
type FindIntentRule struct {
	ID          *int32
	CategoryIDs []int32
	RuleType    *string
	IsActive    *bool
	Enabled     *bool
}
