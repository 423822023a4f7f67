// Package mcp exposes the regulations cache and search pipeline as an MCP
// stdio server.
//
// Seven tools are registered: get_data, search_comments, find_similar,
// list_agencies, list_dockets, index_comments, and cache_stats. Handlers
// validate parameters, call into the cache manager, searcher, indexer, or
// archive client, and render responses as indented JSON. Domain sentinel
// errors map to stable MCP error codes so clients can distinguish a missing
// item from an archive outage or an embedding provider failure.
package mcp
