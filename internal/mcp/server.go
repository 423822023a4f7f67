package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/spicyregs/regsearch/internal/cache"
	"github.com/spicyregs/regsearch/internal/config"
	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/indexer"
	"github.com/spicyregs/regsearch/internal/searcher"
	"github.com/spicyregs/regsearch/internal/source"
	"github.com/spicyregs/regsearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "regsearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	manager  *cache.Manager
	searcher *searcher.Searcher
	indexer  *indexer.Indexer
	source   source.Source
	cfg      config.Config
	logger   *slog.Logger
}

// NewServer wires storage, the archive client, the cache manager, the
// embedder, the searcher, and the indexer behind one MCP server.
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	srcOpts := []source.Option{
		source.WithLogger(logger),
		source.WithConcurrency(cfg.Archive.FetchConcurrency),
	}
	if cfg.Archive.Endpoint != "" {
		srcOpts = append(srcOpts, source.WithEndpoint(cfg.Archive.Endpoint))
	}
	src := source.NewArchiveClient(srcOpts...)

	manager := cache.NewManager(store, src,
		cache.WithLogger(logger),
		cache.WithRebuildTimeout(cfg.Cache.RebuildTimeout()),
	)

	var emb embedder.Embedder
	if cfg.Embedding.Provider != "" {
		emb, err = embedder.New(embedder.Config{
			Provider:  cfg.Embedding.Provider,
			AccountID: cfg.Embedding.AccountID,
			APIKey:    cfg.Embedding.APIKey,
			CacheSize: cfg.Embedding.CacheSize,
		})
	} else {
		emb, err = embedder.NewFromEnv()
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	logger.Info("embedding provider selected", "provider", emb.Provider(), "model", emb.Model())

	srch := searcher.NewSearcher(store, emb,
		searcher.WithLogger(logger),
		searcher.WithCacheTTL(cfg.Search.CacheTTL()),
	)
	idx := indexer.New(manager, store, emb, logger)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    store,
		manager:  manager,
		searcher: srch,
		indexer:  idx,
		source:   src,
		cfg:      cfg,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(getDataTool(), s.handleGetData)
	s.mcp.AddTool(searchCommentsTool(), s.handleSearchComments)
	s.mcp.AddTool(findSimilarTool(), s.handleFindSimilar)
	s.mcp.AddTool(listAgenciesTool(), s.handleListAgencies)
	s.mcp.AddTool(listDocketsTool(), s.handleListDockets)
	s.mcp.AddTool(indexCommentsTool(), s.handleIndexComments)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
}
