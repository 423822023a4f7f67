package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/indexer"
	"github.com/spicyregs/regsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound           = -32001 // Requested item is not in the search index
	ErrorCodeIndexingInProgress = -32002 // Another indexing run is already in progress
	ErrorCodeArchiveUnavailable = -32003 // Archive fetch and fallback both failed
	ErrorCodeSearchFailed       = -32004 // Embedding provider failure during search
)

// handleGetData handles the get_data tool invocation
func (s *Server) handleGetData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	rawType, ok := args["data_type"].(string)
	if !ok || rawType == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "data_type parameter is required", map[string]interface{}{
			"param":  "data_type",
			"reason": "missing or empty",
		})
	}
	dataType, err := types.ParseDataType(rawType)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown data_type", map[string]interface{}{
			"param": "data_type",
			"value": rawType,
		})
	}

	agencyCode := getStringDefault(args, "agency_code", "")
	docketID := getStringDefault(args, "docket_id", "")
	maxAge := getFloatDefault(args, "max_cache_age_hours", s.cfg.Cache.MaxAgeHours)

	records, err := s.manager.GetData(ctx, dataType, agencyCode, docketID, maxAge)
	if err != nil {
		return nil, mapDomainError(err, "fetching data failed")
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for i := range records {
		rows = append(rows, recordJSON(&records[i]))
	}
	response := map[string]interface{}{
		"data_type": string(dataType),
		"count":     len(records),
		"records":   rows,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchComments handles the search_comments tool invocation
func (s *Server) handleSearchComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 0)
	agencyCode := getStringDefault(args, "agency_code", "")
	mode := getStringDefault(args, "mode", "hybrid")

	var hits []types.SearchHit
	var err error
	switch mode {
	case "hybrid":
		hits, err = s.searcher.Hybrid(ctx, query, limit, agencyCode)
	case "keyword":
		hits, err = s.searcher.Keyword(ctx, query, limit, agencyCode)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"hybrid", "keyword"},
		})
	}
	if err != nil {
		return nil, mapDomainError(err, "search failed")
	}

	response := map[string]interface{}{
		"query":   query,
		"mode":    mode,
		"count":   len(hits),
		"results": hitsJSON(hits),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindSimilar handles the find_similar tool invocation
func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}
	limit := getIntDefault(args, "limit", 0)

	hits, err := s.searcher.Similar(ctx, id, limit)
	if err != nil {
		return nil, mapDomainError(err, "similarity search failed")
	}

	response := map[string]interface{}{
		"id":      id,
		"count":   len(hits),
		"results": hitsJSON(hits),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListAgencies handles the list_agencies tool invocation
func (s *Server) handleListAgencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agencies, err := s.source.ListAgencies(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeArchiveUnavailable, "listing agencies failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response := map[string]interface{}{
		"count":    len(agencies),
		"agencies": agencies,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListDockets handles the list_dockets tool invocation
func (s *Server) handleListDockets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	agencyCode, ok := args["agency_code"].(string)
	if !ok || agencyCode == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "agency_code parameter is required", map[string]interface{}{
			"param":  "agency_code",
			"reason": "missing or empty",
		})
	}

	dockets, err := s.source.ListDockets(ctx, agencyCode)
	if err != nil {
		if errors.Is(err, types.ErrInvalidArgument) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid agency_code", map[string]interface{}{
				"param": "agency_code",
				"value": agencyCode,
			})
		}
		return nil, newMCPError(ErrorCodeArchiveUnavailable, "listing dockets failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response := map[string]interface{}{
		"agency_code": strings.ToUpper(strings.TrimSpace(agencyCode)),
		"count":       len(dockets),
		"dockets":     dockets,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexComments handles the index_comments tool invocation
func (s *Server) handleIndexComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	cfg := indexer.Config{
		AgencyCode:       getStringDefault(args, "agency_code", ""),
		DocketID:         getStringDefault(args, "docket_id", ""),
		MaxCacheAgeHours: getFloatDefault(args, "max_cache_age_hours", s.cfg.Cache.MaxAgeHours),
		Workers:          getIntDefault(args, "workers", 0),
	}

	stats, err := s.indexer.IndexComments(ctx, cfg)
	if err != nil {
		if errors.Is(err, indexer.ErrIndexingInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing run is already in progress", nil)
		}
		if errors.Is(err, embedder.ErrUnavailable) {
			return nil, newMCPError(ErrorCodeSearchFailed, "embedding provider unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, mapDomainError(err, "indexing failed")
	}

	response := map[string]interface{}{
		"indexed":     stats.Indexed,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.manager.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "collecting cache stats failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	indexed, err := s.store.CountSearchDocs(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "collecting index stats failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	tables := map[string]interface{}{}
	for dt, totals := range report {
		tables[string(dt)] = map[string]interface{}{
			"records":  totals.Records,
			"agencies": totals.Agencies,
			"oldest":   timeJSON(totals.Oldest),
			"newest":   timeJSON(totals.Newest),
		}
	}
	response := map[string]interface{}{
		"cache":         tables,
		"indexed_docs":  indexed,
		"database_path": s.cfg.DBPath,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// mapDomainError translates sentinel errors from the data and search layers
// into MCP error codes.
func mapDomainError(err error, message string) error {
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeNotFound, err.Error(), nil)
	case errors.Is(err, types.ErrEmbeddingUnavailable):
		return newMCPError(ErrorCodeSearchFailed, message, map[string]interface{}{
			"error": err.Error(),
			"hint":  "retry with mode=keyword",
		})
	case errors.Is(err, types.ErrFallbackFailed):
		return newMCPError(ErrorCodeArchiveUnavailable, message, map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a numeric parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// recordJSON flattens a cache record for the wire. RawJSON rides along
// unparsed so callers see the archive payload verbatim.
func recordJSON(r *types.Record) map[string]interface{} {
	out := map[string]interface{}{
		"agency_code": r.AgencyCode,
		"docket_id":   r.DocketID,
		"item_id":     r.ItemID,
		"cached_at":   r.CachedAt.UTC().Format(time.RFC3339),
	}
	if r.Year != "" {
		out["year"] = r.Year
	}
	if r.Title != "" {
		out["title"] = r.Title
	}
	if r.Category != "" {
		out["category"] = r.Category
	}
	if r.DocumentType != "" {
		out["document_type"] = r.DocumentType
	}
	if r.Subtype != "" {
		out["subtype"] = r.Subtype
	}
	if r.Comment != "" {
		out["comment"] = r.Comment
	}
	if v := timeJSON(r.ModifyDate); v != nil {
		out["modify_date"] = v
	}
	if v := timeJSON(r.PostedDate); v != nil {
		out["posted_date"] = v
	}
	if v := timeJSON(r.ReceiveDate); v != nil {
		out["receive_date"] = v
	}
	if v := timeJSON(r.CommentStartDate); v != nil {
		out["comment_start_date"] = v
	}
	if v := timeJSON(r.CommentEndDate); v != nil {
		out["comment_end_date"] = v
	}
	if r.PageCount != nil {
		out["page_count"] = *r.PageCount
	}
	if r.Withdrawn != nil {
		out["withdrawn"] = *r.Withdrawn
	}
	if r.RawJSON != "" {
		out["raw_json"] = json.RawMessage(r.RawJSON)
	}
	return out
}

// hitsJSON flattens search hits for the wire
func hitsJSON(hits []types.SearchHit) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(hits))
	for i := range hits {
		h := &hits[i]
		row := map[string]interface{}{
			"id":          h.ID,
			"title":       h.Title,
			"text":        h.Text,
			"docket_id":   h.DocketID,
			"agency_code": h.AgencyCode,
			"score":       h.Score,
			"rank":        h.Rank,
		}
		if v := timeJSON(h.PostedDate); v != nil {
			row["posted_date"] = v
		}
		out = append(out, row)
	}
	return out
}

func timeJSON(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
