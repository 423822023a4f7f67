package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/internal/source"
	"github.com/spicyregs/regsearch/internal/storage"
	"github.com/spicyregs/regsearch/pkg/types"
)

// NoMaxAge disables the freshness check: any non-empty cache slice is
// served regardless of age.
var NoMaxAge = math.Inf(1)

// DefaultRebuildTimeout bounds one remote rebuild attempt.
const DefaultRebuildTimeout = 5 * time.Minute

// Manager serves cached slices of the remote archive, rebuilding stale or
// empty slices on demand and falling back to direct remote reads when a
// rebuild fails.
type Manager struct {
	store  storage.Store
	src    source.Source
	logger *slog.Logger

	rebuildTimeout time.Duration

	// group coalesces concurrent rebuilds of the same slice key.
	group singleflight.Group

	// now is replaceable for freshness tests.
	now func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRebuildTimeout bounds each remote rebuild attempt.
func WithRebuildTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.rebuildTimeout = d
		}
	}
}

// WithClock replaces the freshness clock.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a cache manager over the given store and remote source.
func NewManager(store storage.Store, src source.Source, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:          store,
		src:            src,
		logger:         slog.Default(),
		rebuildTimeout: DefaultRebuildTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetData returns all records of the given type matching the agency/docket
// filter. A non-empty slice younger than maxAgeHours is served as-is;
// otherwise the slice is rebuilt from the remote archive first. Pass NoMaxAge
// (or any non-positive value) to serve any non-empty slice regardless of age.
//
// The caller cannot tell a cache hit from a rebuild from a fallback read:
// all three return the same logical result.
func (m *Manager) GetData(ctx context.Context, dataType types.DataType, agencyCode, docketID string, maxAgeHours float64) ([]types.Record, error) {
	loc, pred, err := resolver.Resolve(dataType, agencyCode, docketID)
	if err != nil {
		return nil, err
	}
	if maxAgeHours <= 0 {
		maxAgeHours = NoMaxAge
	}

	stats, err := m.store.CacheStats(ctx, dataType, pred)
	if err != nil {
		return nil, fmt.Errorf("check cache freshness: %w", err)
	}

	if m.isFresh(stats, maxAgeHours) {
		return m.store.SelectRecords(ctx, dataType, pred)
	}

	key := sliceKey(dataType, pred)
	result, err, shared := m.group.Do(key, func() (any, error) {
		return m.rebuildAndServe(ctx, dataType, loc, pred)
	})
	if shared {
		m.logger.Debug("coalesced onto in-flight rebuild", "key", key)
	}
	if err != nil {
		// The rebuild path already fell back to a direct remote read;
		// reaching here means the fallback failed too.
		return nil, err
	}
	return result.([]types.Record), nil
}

// isFresh reports whether a cached slice can be served without a rebuild.
// An empty slice is never fresh.
func (m *Manager) isFresh(stats storage.CacheStats, maxAgeHours float64) bool {
	if stats.Count == 0 || stats.LastCached == nil {
		return false
	}
	if math.IsInf(maxAgeHours, 1) {
		return true
	}
	age := m.now().Sub(*stats.LastCached).Hours()
	return age < maxAgeHours
}

// rebuildAndServe fetches the slice from the remote archive, replaces the
// cached rows, and re-reads through the cache. Any rebuild failure is
// absorbed and answered with a direct remote read instead.
func (m *Manager) rebuildAndServe(ctx context.Context, dataType types.DataType, loc resolver.Locator, pred resolver.Predicate) (any, error) {
	runID := uuid.NewString()
	logger := m.logger.With("run_id", runID, "data_type", string(dataType), "glob", loc.Glob)
	logger.Info("rebuilding cache slice")

	recs, err := m.rebuild(ctx, dataType, loc, pred, logger)
	if err == nil {
		return recs, nil
	}
	logger.Warn("rebuild failed, falling back to direct remote read", "error", err)

	recs, err = m.fallback(ctx, dataType, loc, pred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFallbackFailed, err)
	}
	logger.Info("served from federated fallback", "records", len(recs))
	return recs, nil
}

func (m *Manager) rebuild(ctx context.Context, dataType types.DataType, loc resolver.Locator, pred resolver.Predicate, logger *slog.Logger) ([]types.Record, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.rebuildTimeout)
	defer cancel()

	remote, err := m.src.Fetch(fetchCtx, dataType, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", types.ErrRebuildFailed, err)
	}
	if len(remote) == 0 {
		logger.Warn("remote archive returned no rows for slice")
	}

	// One watermark for the whole slice: every row in a rebuild shares
	// the same cached_at.
	if err := m.store.ReplaceSlice(ctx, dataType, pred, remote, m.now()); err != nil {
		return nil, fmt.Errorf("%w: replace slice: %v", types.ErrRebuildFailed, err)
	}
	logger.Info("cache slice rebuilt", "records", len(remote))

	return m.store.SelectRecords(ctx, dataType, pred)
}

// fallback reads the slice directly from the remote archive, bypassing the
// cache, and applies the predicate in memory. It is attempted exactly once.
func (m *Manager) fallback(ctx context.Context, dataType types.DataType, loc resolver.Locator, pred resolver.Predicate) ([]types.Record, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.rebuildTimeout)
	defer cancel()

	remote, err := m.src.Fetch(fetchCtx, dataType, loc)
	if err != nil {
		return nil, err
	}

	filtered := make([]types.Record, 0, len(remote))
	for _, rec := range remote {
		if pred.Matches(&rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Invalidate deletes the cached slice for the given filter. The next GetData
// for the slice rebuilds from the remote archive.
func (m *Manager) Invalidate(ctx context.Context, dataType types.DataType, agencyCode, docketID string) error {
	_, pred, err := resolver.Resolve(dataType, agencyCode, docketID)
	if err != nil {
		return err
	}
	if err := m.store.ReplaceSlice(ctx, dataType, pred, nil, m.now()); err != nil {
		return fmt.Errorf("invalidate slice: %w", err)
	}
	m.logger.Info("cache slice invalidated", "data_type", string(dataType), "agency", pred.AgencyCode, "docket", pred.DocketID)
	return nil
}

// StatsReport summarizes cache contents per data type.
type StatsReport map[types.DataType]storage.TableTotals

// Stats returns per-type record counts, distinct agency counts, and the
// oldest and newest freshness watermarks.
func (m *Manager) Stats(ctx context.Context) (StatsReport, error) {
	report := make(StatsReport, len(types.AllDataTypes))
	for _, dt := range types.AllDataTypes {
		totals, err := m.store.TableTotals(ctx, dt)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", dt, err)
		}
		report[dt] = totals
	}
	return report, nil
}

// sliceKey is the singleflight key for one (dataType, agency, docket) slice.
func sliceKey(dataType types.DataType, pred resolver.Predicate) string {
	return string(dataType) + "|" + pred.AgencyCode + "|" + pred.DocketID
}
