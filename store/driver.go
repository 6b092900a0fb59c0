package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database access.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate bootstraps the schema. Best-effort convenience for dev and
	// test databases; production schemas are managed externally.
	Migrate(ctx context.Context) error

	// Application
	CreateApplication(ctx context.Context, create *Application) (*Application, error)
	ListApplications(ctx context.Context, find *FindApplication) ([]*Application, error)
	UpdateApplication(ctx context.Context, update *UpdateApplication) (*Application, error)
	DeleteApplication(ctx context.Context, delete *DeleteApplication) error

	// IntentCategory
	CreateIntentCategory(ctx context.Context, create *IntentCategory) (*IntentCategory, error)
	ListIntentCategories(ctx context.Context, find *FindIntentCategory) ([]*IntentCategory, error)

	// IntentRule
	CreateIntentRule(ctx context.Context, create *IntentRule) (*IntentRule, error)
	ListIntentRules(ctx context.Context, find *FindIntentRule) ([]*IntentRule, error)

	// RecognitionLog
	CreateRecognitionLog(ctx context.Context, create *RecognitionLog) (*RecognitionLog, error)
	ListRecognitionLogs(ctx context.Context, find *FindRecognitionLog) ([]*RecognitionLog, error)
	GetRecognitionStats(ctx context.Context, find *FindRecognitionLog) (*RecognitionStats, error)
}
