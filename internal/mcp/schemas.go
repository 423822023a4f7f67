package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// getDataTool returns the tool definition for get_data
func getDataTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_data",
		Description: "Fetch dockets, documents, or comments from the regulations archive, served through the local cache",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"data_type": map[string]interface{}{
					"type":        "string",
					"description": "Which collection to fetch",
					"enum":        []string{"dockets", "documents", "comments"},
				},
				"agency_code": map[string]interface{}{
					"type":        "string",
					"description": "Agency code filter (e.g. EPA, FAA). Required when docket_id is omitted",
				},
				"docket_id": map[string]interface{}{
					"type":        "string",
					"description": "Docket identifier (e.g. EPA-HQ-OAR-2020-0001) to scope the fetch to one docket",
				},
				"max_cache_age_hours": map[string]interface{}{
					"type":        "number",
					"description": "Freshness bound in hours; cached data older than this is rebuilt before serving. Omit or pass 0 to accept any age",
				},
			},
			Required: []string{"data_type"},
		},
	}
}

// searchCommentsTool returns the tool definition for search_comments
func searchCommentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_comments",
		Description: "Search indexed public comments with hybrid keyword plus semantic ranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     20,
					"minimum":     1,
					"maximum":     50,
				},
				"agency_code": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one agency",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Ranking mode: hybrid fuses keyword and semantic results, keyword is full-text only",
					"enum":        []string{"hybrid", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"query"},
		},
	}
}

// findSimilarTool returns the tool definition for find_similar
func findSimilarTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_similar",
		Description: "Find indexed comments semantically similar to a given comment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier of an indexed comment to expand from",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-30)",
					"default":     10,
					"minimum":     1,
					"maximum":     30,
				},
			},
			Required: []string{"id"},
		},
	}
}

// listAgenciesTool returns the tool definition for list_agencies
func listAgenciesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_agencies",
		Description: "List agency codes present in the regulations archive",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// listDocketsTool returns the tool definition for list_dockets
func listDocketsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_dockets",
		Description: "List docket identifiers available for one agency in the regulations archive",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"agency_code": map[string]interface{}{
					"type":        "string",
					"description": "Agency code to list dockets for (e.g. EPA)",
				},
			},
			Required: []string{"agency_code"},
		},
	}
}

// indexCommentsTool returns the tool definition for index_comments
func indexCommentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_comments",
		Description: "Embed and index cached comments to make them searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"agency_code": map[string]interface{}{
					"type":        "string",
					"description": "Agency code scoping which comments to index",
				},
				"docket_id": map[string]interface{}{
					"type":        "string",
					"description": "Docket identifier scoping which comments to index",
				},
				"max_cache_age_hours": map[string]interface{}{
					"type":        "number",
					"description": "Freshness bound applied when loading comments from the cache",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Parallel embedding workers",
					"default":     4,
					"minimum":     1,
				},
			},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report cached row counts, freshness watermarks, and search index size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
