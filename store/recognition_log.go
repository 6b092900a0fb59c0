package store

import (
	"time"
)

// RecognitionLog records one recognition attempt, success or failure.
// RecognitionChain and MatchedRules are serialized JSON.
type RecognitionLog struct {
	ID               int64
	RequestID        string
	AppKey           string
	InputText        string
	RecognizedIntent string
	Confidence       float64
	ProcessingTimeMs float64
	IsSuccess        bool
	ErrorMessage     string
	RecognitionChain string
	MatchedRules     string
	CreatedAt        time.Time
}

// FindRecognitionLog is the filter for log queries.
type FindRecognitionLog struct {
	AppKey *string
	Since  *time.Time
	Limit  int
	Offset int
}

// RecognitionStats is an aggregate over recent recognition logs.
type RecognitionStats struct {
	TotalCount          int64
	SuccessCount        int64
	FailureCount        int64
	AvgProcessingTimeMs float64
}
