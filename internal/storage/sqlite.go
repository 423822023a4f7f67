package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/pkg/types"
)

// SQLiteStore implements the Store interface over an embedded SQLite
// database. Cache tables survive process restarts when opened on a file
// path; ":memory:" trades durability for speed and simply triggers a full
// rebuild on the next read after a restart.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a SQLiteStore and applies any pending migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// recordColumns is the shared column list of the cache tables, in scan order.
const recordColumns = `agency_code, docket_id, year, item_id, title, category,
	document_type, subtype, comment, modify_date, posted_date, receive_date,
	comment_start_date, comment_end_date, page_count, withdrawn, raw_json, cached_at`

// CacheStats returns the row count and freshness watermark for the slice
// matching the predicate.
func (s *SQLiteStore) CacheStats(ctx context.Context, dt types.DataType, pred resolver.Predicate) (CacheStats, error) {
	if !dt.Valid() {
		return CacheStats{}, fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dt)
	}
	clause, args := pred.SQL("")

	// Table names come from the closed DataType enum, never from user input.
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, dt.CacheTable(), clause)

	var stats CacheStats
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&stats.Count); err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	if stats.Count == 0 {
		return stats, nil
	}

	// The watermark is read as a plain column rather than MAX(cached_at):
	// aggregate expressions lose the column's declared type, and the pure-Go
	// driver then scans them as strings instead of times.
	lastQuery := fmt.Sprintf(`SELECT cached_at FROM %s WHERE %s ORDER BY cached_at DESC LIMIT 1`,
		dt.CacheTable(), clause)
	var last time.Time
	if err := s.db.QueryRowContext(ctx, lastQuery, args...).Scan(&last); err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache watermark: %w", err)
	}
	stats.LastCached = &last
	return stats, nil
}

// SelectRecords returns the cache rows matching the predicate. Duplicate
// rows for the same (docket_id, item_id) key can exist transiently during a
// rebuild; the window keeps only the newest row per key.
func (s *SQLiteStore) SelectRecords(ctx context.Context, dt types.DataType, pred resolver.Predicate) ([]types.Record, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dt)
	}
	clause, args := pred.SQL("")

	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s,
			       ROW_NUMBER() OVER (
			           PARTITION BY docket_id, item_id
			           ORDER BY cached_at DESC, modify_date DESC
			       ) AS rn
			FROM %s
			WHERE %s
		)
		WHERE rn = 1
		ORDER BY docket_id, item_id
	`, recordColumns, recordColumns, dt.CacheTable(), clause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select cache rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recs := make([]types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ReplaceSlice atomically replaces the cache rows matching the predicate:
// delete-then-insert in one transaction, with every inserted row stamped with
// the same cachedAt watermark. Zero records still commits the delete.
func (s *SQLiteStore) ReplaceSlice(ctx context.Context, dt types.DataType, pred resolver.Predicate, recs []types.Record, cachedAt time.Time) error {
	if !dt.Valid() {
		return fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dt)
	}
	clause, args := pred.SQL("")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del := fmt.Sprintf(`DELETE FROM %s WHERE %s`, dt.CacheTable(), clause)
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("failed to delete cache slice: %w", err)
	}

	if len(recs) > 0 {
		ins := fmt.Sprintf(`
			INSERT INTO %s (%s)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, dt.CacheTable(), recordColumns)
		stmt, err := tx.PrepareContext(ctx, ins)
		if err != nil {
			return fmt.Errorf("failed to prepare cache insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range recs {
			r := &recs[i]
			_, err := stmt.ExecContext(ctx,
				r.AgencyCode, r.DocketID, r.Year, r.ItemID,
				nullString(r.Title), nullString(r.Category),
				nullString(r.DocumentType), nullString(r.Subtype),
				nullString(r.Comment),
				nullTime(r.ModifyDate), nullTime(r.PostedDate), nullTime(r.ReceiveDate),
				nullTime(r.CommentStartDate), nullTime(r.CommentEndDate),
				nullInt(r.PageCount), nullBool(r.Withdrawn),
				r.RawJSON, cachedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert cache row %s: %w", r.ItemID, err)
			}
		}
	}

	return tx.Commit()
}

// TableTotals summarizes one cache table.
func (s *SQLiteStore) TableTotals(ctx context.Context, dt types.DataType) (TableTotals, error) {
	if !dt.Valid() {
		return TableTotals{}, fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dt)
	}

	query := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT agency_code) FROM %s`, dt.CacheTable())

	var tot TableTotals
	if err := s.db.QueryRowContext(ctx, query).Scan(&tot.Records, &tot.Agencies); err != nil {
		return TableTotals{}, fmt.Errorf("failed to read table totals: %w", err)
	}
	if tot.Records == 0 {
		return tot, nil
	}

	// Plain column reads instead of MIN/MAX so cached_at keeps its declared
	// type through the driver.
	for _, span := range []struct {
		order string
		dst   **time.Time
	}{
		{"ASC", &tot.Oldest},
		{"DESC", &tot.Newest},
	} {
		q := fmt.Sprintf(`SELECT cached_at FROM %s ORDER BY cached_at %s LIMIT 1`, dt.CacheTable(), span.order)
		var ts time.Time
		if err := s.db.QueryRowContext(ctx, q).Scan(&ts); err != nil {
			return TableTotals{}, fmt.Errorf("failed to read table watermark: %w", err)
		}
		*span.dst = &ts
	}
	return tot, nil
}

// Search corpus operations

// UpsertSearchDoc inserts or replaces one searchable item. The FTS mirror is
// kept in sync by triggers.
func (s *SQLiteStore) UpsertSearchDoc(ctx context.Context, doc *SearchDoc) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: search doc id is required", types.ErrInvalidArgument)
	}

	query := `
		INSERT INTO search_docs (id, title, text, docket_id, agency_code, posted_date, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			docket_id = excluded.docket_id,
			agency_code = excluded.agency_code,
			posted_date = excluded.posted_date,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	var blob []byte
	if len(doc.Vector) > 0 {
		blob = serializeVector(doc.Vector)
	}
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Text, doc.DocketID, doc.AgencyCode,
		nullTime(doc.PostedDate), blob, len(doc.Vector), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert search doc: %w", err)
	}
	return nil
}

// GetHit returns the display fields for one corpus item. Score and Rank are
// left zero; the search pipelines fill them.
func (s *SQLiteStore) GetHit(ctx context.Context, id string) (*types.SearchHit, error) {
	query := `
		SELECT id, title, text, docket_id, agency_code, posted_date
		FROM search_docs
		WHERE id = ?
	`
	var hit types.SearchHit
	var title, text, docket, agency sql.NullString
	var posted sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(&hit.ID, &title, &text, &docket, &agency, &posted)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	hit.Title = title.String
	hit.Text = text.String
	hit.DocketID = docket.String
	hit.AgencyCode = agency.String
	if posted.Valid {
		hit.PostedDate = &posted.Time
	}
	return &hit, nil
}

// GetVector returns the stored embedding for one corpus item, or
// types.ErrNotFound when the item is absent or has no vector.
func (s *SQLiteStore) GetVector(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM search_docs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, types.ErrNotFound
	}
	return deserializeVector(blob), nil
}

// SearchText performs BM25 full-text search over the corpus.
func (s *SQLiteStore) SearchText(ctx context.Context, query string, limit int, agencyCode string) ([]TextResult, error) {
	return searchText(ctx, s.db, query, limit, agencyCode)
}

// SearchVector performs cosine nearest-neighbor search over the corpus.
func (s *SQLiteStore) SearchVector(ctx context.Context, vector []float32, limit int, agencyCode, excludeID string) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, limit, agencyCode, excludeID)
}

// CountSearchDocs returns the corpus size.
func (s *SQLiteStore) CountSearchDocs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_docs`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Scan helpers

// rowScanner lets scanRecord work over both *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.Record, error) {
	var rec types.Record
	var title, category, docType, subtype, comment sql.NullString
	var modify, posted, receive, commentStart, commentEnd sql.NullTime
	var pageCount sql.NullInt64
	var withdrawn sql.NullBool

	err := row.Scan(
		&rec.AgencyCode, &rec.DocketID, &rec.Year, &rec.ItemID,
		&title, &category, &docType, &subtype, &comment,
		&modify, &posted, &receive, &commentStart, &commentEnd,
		&pageCount, &withdrawn, &rec.RawJSON, &rec.CachedAt,
	)
	if err != nil {
		return types.Record{}, fmt.Errorf("failed to scan cache row: %w", err)
	}

	rec.Title = title.String
	rec.Category = category.String
	rec.DocumentType = docType.String
	rec.Subtype = subtype.String
	rec.Comment = comment.String
	rec.ModifyDate = timePtr(modify)
	rec.PostedDate = timePtr(posted)
	rec.ReceiveDate = timePtr(receive)
	rec.CommentStartDate = timePtr(commentStart)
	rec.CommentEndDate = timePtr(commentEnd)
	if pageCount.Valid {
		n := int(pageCount.Int64)
		rec.PageCount = &n
	}
	if withdrawn.Valid {
		b := withdrawn.Bool
		rec.Withdrawn = &b
	}
	return rec, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}
