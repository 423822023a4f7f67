package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spicyregs/regsearch/internal/embedder"
	"github.com/spicyregs/regsearch/internal/storage"
	"github.com/spicyregs/regsearch/pkg/types"
)

// ErrIndexingInProgress is returned when a run is requested while another
// run holds the process-wide indexing lock.
var ErrIndexingInProgress = errors.New("an indexing run is already in progress")

// DataProvider yields the cached comment records to index. The cache
// manager satisfies this.
type DataProvider interface {
	GetData(ctx context.Context, dataType types.DataType, agencyCode, docketID string, maxAgeHours float64) ([]types.Record, error)
}

// Indexer builds the search corpus: it embeds comment texts in batches and
// upserts them as search docs.
type Indexer struct {
	data     DataProvider
	store    storage.Store
	embedder embedder.Embedder
	logger   *slog.Logger

	lock IndexLock
}

// Config contains configuration for one indexing run.
type Config struct {
	AgencyCode       string
	DocketID         string
	MaxCacheAgeHours float64 // freshness bound passed through to GetData
	Workers          int     // concurrent embedding batches (default 4)
	BatchSize        int     // texts per embedding batch (default embedder.DefaultBatchSize)
}

// Statistics summarizes one indexing run.
type Statistics struct {
	Indexed       int
	Skipped       int
	Failed        int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance.
func New(data DataProvider, store storage.Store, emb embedder.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		data:     data,
		store:    store,
		embedder: emb,
		logger:   logger,
	}
}

// IndexComments embeds and indexes the comment records matching the filter.
// Comments with no usable text are counted as skipped. At most one run per
// process; a concurrent call returns ErrIndexingInProgress.
func (idx *Indexer) IndexComments(ctx context.Context, cfg Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = embedder.DefaultBatchSize
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	recs, err := idx.data.GetData(ctx, types.DataTypeComments, cfg.AgencyCode, cfg.DocketID, cfg.MaxCacheAgeHours)
	if err != nil {
		return nil, fmt.Errorf("load comment records: %w", err)
	}

	docs := make([]*storage.SearchDoc, 0, len(recs))
	for i := range recs {
		doc, ok := searchDoc(&recs[i])
		if !ok {
			stats.Skipped++
			continue
		}
		docs = append(docs, doc)
	}
	idx.logger.Info("indexing comment corpus",
		"candidates", len(docs), "skipped", stats.Skipped,
		"provider", idx.embedder.Provider())

	var (
		indexed atomic.Int32
		failed  atomic.Int32
		mu      sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		g.Go(func() error {
			if err := idx.indexBatch(gctx, batch, &indexed); err != nil {
				failed.Add(int32(len(batch)))
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
				mu.Unlock()
				// An unreachable embedding provider will fail every
				// batch; stop instead of hammering it.
				if errors.Is(err, embedder.ErrUnavailable) {
					return err
				}
			}
			return nil
		})
	}
	err = g.Wait()

	stats.Indexed = int(indexed.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing run finished",
		"indexed", stats.Indexed, "skipped", stats.Skipped,
		"failed", stats.Failed, "duration", stats.Duration)

	if err != nil {
		return stats, err
	}
	return stats, nil
}

// indexBatch embeds one batch of docs and upserts them.
func (idx *Indexer) indexBatch(ctx context.Context, batch []*storage.SearchDoc, indexed *atomic.Int32) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Text
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(resp.Embeddings) != len(batch) {
		return fmt.Errorf("embed batch: expected %d vectors, got %d", len(batch), len(resp.Embeddings))
	}

	for i, doc := range batch {
		doc.Vector = resp.Embeddings[i].Vector
		if err := idx.store.UpsertSearchDoc(ctx, doc); err != nil {
			return fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
		indexed.Add(1)
	}
	return nil
}

// searchDoc converts a comment record into an unembedded search doc. The
// comment body is the indexed text, falling back to the title; records with
// neither are not indexable.
func searchDoc(rec *types.Record) (*storage.SearchDoc, bool) {
	text := strings.TrimSpace(rec.Comment)
	if text == "" {
		text = strings.TrimSpace(rec.Title)
	}
	if text == "" || rec.ItemID == "" {
		return nil, false
	}
	return &storage.SearchDoc{
		ID:         rec.ItemID,
		Title:      rec.Title,
		Text:       text,
		DocketID:   rec.DocketID,
		AgencyCode: rec.AgencyCode,
		PostedDate: rec.PostedDate,
	}, true
}
