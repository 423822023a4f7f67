package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up(),
		Down:    migrationV1Down,
	},
}

// cacheTableDDL is the shared shape of the three per-data-type cache tables:
// the promoted scalar columns are the union of the fields regulations.gov
// exposes across dockets, documents, and comments, plus the raw payload and
// the cached_at freshness watermark.
const cacheTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    agency_code TEXT NOT NULL,
    docket_id TEXT NOT NULL,
    year TEXT,
    item_id TEXT NOT NULL,
    title TEXT,
    category TEXT,
    document_type TEXT,
    subtype TEXT,
    comment TEXT,
    modify_date TIMESTAMP,
    posted_date TIMESTAMP,
    receive_date TIMESTAMP,
    comment_start_date TIMESTAMP,
    comment_end_date TIMESTAMP,
    page_count INTEGER,
    withdrawn BOOLEAN,
    raw_json TEXT NOT NULL,
    cached_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[2]s_agency ON %[1]s(agency_code);
CREATE INDEX IF NOT EXISTS idx_%[2]s_docket ON %[1]s(docket_id);
CREATE INDEX IF NOT EXISTS idx_%[2]s_cached_at ON %[1]s(cached_at);
`

const searchCorpusDDL = `
-- Search corpus: one row per searchable public comment
CREATE TABLE IF NOT EXISTS search_docs (
    id TEXT PRIMARY KEY,
    title TEXT,
    text TEXT,
    docket_id TEXT,
    agency_code TEXT,
    posted_date TIMESTAMP,
    vector BLOB,
    dimension INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_docs_agency ON search_docs(agency_code);
CREATE INDEX IF NOT EXISTS idx_search_docs_docket ON search_docs(docket_id);

-- Full-text search over the corpus
CREATE VIRTUAL TABLE IF NOT EXISTS search_docs_fts USING fts5(
    title, text,
    content='search_docs'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS search_docs_ai AFTER INSERT ON search_docs BEGIN
    INSERT INTO search_docs_fts(rowid, title, text)
    VALUES (new.rowid, new.title, new.text);
END;

CREATE TRIGGER IF NOT EXISTS search_docs_ad AFTER DELETE ON search_docs BEGIN
    INSERT INTO search_docs_fts(search_docs_fts, rowid, title, text)
    VALUES ('delete', old.rowid, old.title, old.text);
END;

CREATE TRIGGER IF NOT EXISTS search_docs_au AFTER UPDATE ON search_docs BEGIN
    INSERT INTO search_docs_fts(search_docs_fts, rowid, title, text)
    VALUES ('delete', old.rowid, old.title, old.text);
    INSERT INTO search_docs_fts(rowid, title, text)
    VALUES (new.rowid, new.title, new.text);
END;
`

func migrationV1Up() string {
	var b strings.Builder

	b.WriteString(`
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`)

	for _, name := range []string{"dockets", "documents", "comments"} {
		b.WriteString(fmt.Sprintf(cacheTableDDL, name+"_cache", name))
	}

	b.WriteString(searchCorpusDDL)
	return b.String()
}

const migrationV1Down = `
DROP TRIGGER IF EXISTS search_docs_au;
DROP TRIGGER IF EXISTS search_docs_ad;
DROP TRIGGER IF EXISTS search_docs_ai;

DROP TABLE IF EXISTS search_docs_fts;
DROP TABLE IF EXISTS search_docs;
DROP TABLE IF EXISTS comments_cache;
DROP TABLE IF EXISTS documents_cache;
DROP TABLE IF EXISTS dockets_cache;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var currentVersion string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	return nil
}
