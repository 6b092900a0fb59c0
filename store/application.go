package store

import (
	"time"
)

// Application represents one tenant of the recognition service. The matcher
// flags and thresholds on this row drive pipeline compilation.
type Application struct {
	ID          int32
	AppKey      string
	Name        string
	Description string
	IsActive    bool

	// Matcher strategy flags
	EnableKeyword     bool
	EnableRegex       bool
	EnableSemantic    bool
	EnableLLMFallback bool

	// Recognition configuration
	EnableCache         bool
	FallbackIntentCode  string
	ConfidenceThreshold float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindApplication is the filter for application queries.
type FindApplication struct {
	ID       *int32
	AppKey   *string
	IsActive *bool
}

// UpdateApplication carries a partial update; nil fields are left untouched.
type UpdateApplication struct {
	ID                  int32
	Name                *string
	Description         *string
	IsActive            *bool
	EnableKeyword       *bool
	EnableRegex         *bool
	EnableSemantic      *bool
	EnableLLMFallback   *bool
	EnableCache         *bool
	FallbackIntentCode  *string
	ConfidenceThreshold *float64
}

// DeleteApplication identifies an application to remove. Categories and rules
// are removed by cascade.
type DeleteApplication struct {
	ID int32
}
