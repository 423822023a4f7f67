package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// searchVector performs nearest-neighbor search using cosine similarity.
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, limit int, agencyCode, excludeID string) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	// Use SQL-based distance when the vector extension is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, limit, agencyCode, excludeID)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, limit, agencyCode, excludeID)
}

// searchVectorOptimized computes cosine distance at the database layer.
// vec_distance_cosine returns distance (lower is better); we convert to
// similarity (1 - distance) so both paths share one score space.
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, limit int, agencyCode, excludeID string) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(queryVector)

	query := `
		SELECT
			d.id,
			1.0 - vec_distance_cosine(d.vector, ?) AS similarity
		FROM search_docs d
		WHERE d.vector IS NOT NULL
	`
	args := []any{queryVectorBlob}

	if agencyCode != "" {
		query += " AND d.agency_code = ?"
		args = append(args, agencyCode)
	}
	if excludeID != "" {
		query += " AND d.id != ?"
		args = append(args, excludeID)
	}

	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ID, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback scans candidate vectors and ranks them in Go. Used
// when the vector extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, limit int, agencyCode, excludeID string) ([]VectorResult, error) {
	query := `
		SELECT d.id, d.vector
		FROM search_docs d
		WHERE d.vector IS NOT NULL
	`
	args := []any{}

	if agencyCode != "" {
		query += " AND d.agency_code = ?"
		args = append(args, agencyCode)
	}
	if excludeID != "" {
		query += " AND d.id != ?"
		args = append(args, excludeID)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 1000)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, candidate{id: id, score: cosineSimilarity(queryVector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	if limit > len(candidates) {
		limit = len(candidates)
	}
	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{ID: candidates[i].id, Similarity: candidates[i].score}
	}
	return results, nil
}

// searchText performs BM25 full-text search using FTS5.
func searchText(ctx context.Context, db *sql.DB, query string, limit int, agencyCode string) ([]TextResult, error) {
	// A query that sanitizes to nothing matches nothing.
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" || limit <= 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT
			d.id,
			bm25(search_docs_fts) AS score
		FROM search_docs_fts
		INNER JOIN search_docs d ON d.rowid = search_docs_fts.rowid
		WHERE search_docs_fts MATCH ?
	`
	args := []any{sanitized}

	if agencyCode != "" {
		sqlQuery += " AND d.agency_code = ?"
		args = append(args, agencyCode)
	}

	// BM25 scores are negative; lower is better
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.ID, &result.Score); err != nil {
			return nil, err
		}

		// Convert BM25 score (negative, lower is better) to a positive
		// normalized score. BM25 scores are typically in [-50, 0].
		result.Score = 1.0 / (1.0 + math.Abs(result.Score)/50.0)
		results = append(results, result)
	}
	return results, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a corpus item with its similarity score
type candidate struct {
	id    string
	score float64
}

// sortCandidates sorts candidates by score in descending order
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
}

// sanitizeFTSQuery rewrites a raw user query into a safe FTS5 match
// expression. Each token is wrapped in double quotes so Boolean operators,
// column filters, and prefix syntax are treated as plain terms.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, ``)
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
