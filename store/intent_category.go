package store

import (
	"time"
)

// IntentCategory is a labelable intent belonging to one application.
// Code is unique within the application; higher priority is tried first
// wherever ordering matters (LLM prompt construction).
type IntentCategory struct {
	ID            int32
	ApplicationID int32
	Code          string
	Name          string
	Description   string
	Priority      int32
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FindIntentCategory is the filter for category queries.
type FindIntentCategory struct {
	ID            *int32
	ApplicationID *int32
	IsActive      *bool
}
