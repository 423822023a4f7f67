// Command regquery is an ad-hoc console for the regsearch database. It runs
// the same cache, search, and index pipeline as the MCP server without the
// protocol framing, which makes it handy for poking at a docket or tuning a
// query.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/spicyregs/regsearch/internal/cache"
	"github.com/spicyregs/regsearch/internal/config"
	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/indexer"
	"github.com/spicyregs/regsearch/internal/searcher"
	"github.com/spicyregs/regsearch/internal/source"
	"github.com/spicyregs/regsearch/internal/storage"
	"github.com/spicyregs/regsearch/pkg/types"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		query      = flag.String("query", "", "run a hybrid search for this query")
		keyword    = flag.Bool("keyword", false, "use keyword-only ranking instead of hybrid")
		similarTo  = flag.String("similar", "", "find comments similar to this comment id")
		dataType   = flag.String("data", "", "fetch cached data: dockets, documents, or comments")
		agency     = flag.String("agency", "", "agency code filter")
		docket     = flag.String("docket", "", "docket id filter")
		index      = flag.Bool("index", false, "embed and index cached comments")
		limit      = flag.Int("limit", 0, "result limit")
	)
	flag.Parse()

	if *query == "" && *similarTo == "" && *dataType == "" && !*index {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		fatal("open database: %v", err)
	}
	defer func() { _ = store.Close() }()

	emb, err := embedder.NewFromEnv()
	if err != nil {
		fatal("embedder: %v", err)
	}

	ctx := context.Background()
	header := color.New(color.FgCyan, color.Bold).SprintfFunc()
	score := color.New(color.FgGreen).SprintfFunc()
	dim := color.New(color.Faint).SprintfFunc()

	switch {
	case *query != "":
		srch := searcher.NewSearcher(store, emb, searcher.WithCacheTTL(0))
		var hits []types.SearchHit
		if *keyword {
			hits, err = srch.Keyword(ctx, *query, *limit, *agency)
		} else {
			hits, err = srch.Hybrid(ctx, *query, *limit, *agency)
		}
		if err != nil {
			fatal("search: %v", err)
		}
		fmt.Println(header("%d results for %q", len(hits), *query))
		printHits(hits, score, dim)

	case *similarTo != "":
		srch := searcher.NewSearcher(store, emb, searcher.WithCacheTTL(0))
		hits, err := srch.Similar(ctx, *similarTo, *limit)
		if err != nil {
			fatal("similar: %v", err)
		}
		fmt.Println(header("%d comments similar to %s", len(hits), *similarTo))
		printHits(hits, score, dim)

	case *index:
		mgr := newManager(cfg, store)
		idx := indexer.New(mgr, store, emb, nil)
		stats, err := idx.IndexComments(ctx, indexer.Config{
			AgencyCode:       *agency,
			DocketID:         *docket,
			MaxCacheAgeHours: cfg.Cache.MaxAgeHours,
		})
		if stats != nil {
			fmt.Println(header("indexed %d, skipped %d, failed %d in %s",
				stats.Indexed, stats.Skipped, stats.Failed, stats.Duration))
			for _, msg := range stats.ErrorMessages {
				fmt.Println(dim("  %s", msg))
			}
		}
		if err != nil {
			fatal("index: %v", err)
		}

	case *dataType != "":
		dt, err := types.ParseDataType(*dataType)
		if err != nil {
			fatal("%v", err)
		}
		mgr := newManager(cfg, store)
		records, err := mgr.GetData(ctx, dt, *agency, *docket, cfg.Cache.MaxAgeHours)
		if err != nil {
			fatal("fetch: %v", err)
		}
		fmt.Println(header("%d %s", len(records), dt))
		for i := range records {
			r := &records[i]
			fmt.Printf("%s  %s\n", r.ItemID, firstLine(r.Title))
			if r.Comment != "" {
				fmt.Println(dim("  %s", truncate(firstLine(r.Comment), 120)))
			}
		}
	}
}

func newManager(cfg config.Config, store storage.Store) *cache.Manager {
	opts := []source.Option{source.WithConcurrency(cfg.Archive.FetchConcurrency)}
	if cfg.Archive.Endpoint != "" {
		opts = append(opts, source.WithEndpoint(cfg.Archive.Endpoint))
	}
	src := source.NewArchiveClient(opts...)
	return cache.NewManager(store, src, cache.WithRebuildTimeout(cfg.Cache.RebuildTimeout()))
}

func printHits(hits []types.SearchHit, score, dim func(string, ...interface{}) string) {
	for i := range hits {
		h := &hits[i]
		fmt.Printf("%2d. %s %s\n", h.Rank, score("%.4f", h.Score), h.ID)
		if h.Title != "" {
			fmt.Printf("    %s\n", firstLine(h.Title))
		}
		if h.Text != "" && h.Text != h.Title {
			fmt.Println(dim("    %s", truncate(firstLine(h.Text), 120)))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fatal(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
