package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a connection pool against the PostgreSQL instance named by the
// profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	pgDB.SetMaxOpenConns(25)
	pgDB.SetMaxIdleConns(5)
	pgDB.SetConnMaxLifetime(30 * time.Minute)

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema when it does not exist yet. Idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to run migration statement")
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS application (
	id SERIAL PRIMARY KEY,
	app_key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	enable_keyword BOOLEAN NOT NULL DEFAULT TRUE,
	enable_regex BOOLEAN NOT NULL DEFAULT TRUE,
	enable_semantic BOOLEAN NOT NULL DEFAULT FALSE,
	enable_llm_fallback BOOLEAN NOT NULL DEFAULT FALSE,
	enable_cache BOOLEAN NOT NULL DEFAULT TRUE,
	fallback_intent_code TEXT NOT NULL DEFAULT '',
	confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.7,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS intent_category (
	id SERIAL PRIMARY KEY,
	application_id INTEGER NOT NULL REFERENCES application(id) ON DELETE CASCADE,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (application_id, code)
);

CREATE TABLE IF NOT EXISTS intent_rule (
	id SERIAL PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES intent_category(id) ON DELETE CASCADE,
	rule_type TEXT NOT NULL,
	content TEXT NOT NULL,
	weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	metadata TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS recognition_log (
	id BIGSERIAL PRIMARY KEY,
	request_id TEXT NOT NULL,
	app_key TEXT NOT NULL,
	input_text TEXT NOT NULL,
	recognized_intent TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_success BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	recognition_chain TEXT NOT NULL DEFAULT '',
	matched_rules TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_recognition_log_app_key_created_at
	ON recognition_log (app_key, created_at DESC)
`

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
