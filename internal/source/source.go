package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/pkg/types"
)

const (
	// DefaultEndpoint is the public, anonymously readable mirror of the
	// regulations.gov bulk archive.
	DefaultEndpoint = "https://mirrulations.s3.amazonaws.com"

	// DefaultFetchConcurrency bounds parallel blob downloads per Fetch call.
	DefaultFetchConcurrency = 8

	// maxListKeys is the per-page cap the archive enforces on listings.
	maxListKeys = 1000

	httpTimeout = 30 * time.Second
)

// Source lists and fetches raw records from the remote archive. It is the
// boundary the cache manager rebuilds from and the federated fallback reads
// through.
type Source interface {
	// Fetch returns all records of the given type addressed by the locator.
	// A locator that matches no keys yields an empty slice and no error.
	Fetch(ctx context.Context, dataType types.DataType, loc resolver.Locator) ([]types.Record, error)

	// ListAgencies returns the canonical agency codes present in the archive.
	ListAgencies(ctx context.Context) ([]string, error)

	// ListDockets returns the docket ids under one agency.
	ListDockets(ctx context.Context, agencyCode string) ([]string, error)
}

// ArchiveClient is an anonymous S3-compatible HTTP client for the archive
// bucket. Listings use the ListObjectsV2 REST form; blobs are plain GETs.
type ArchiveClient struct {
	endpoint    string
	httpClient  *http.Client
	concurrency int
	logger      *slog.Logger
}

// Option configures an ArchiveClient.
type Option func(*ArchiveClient)

// WithEndpoint overrides the archive endpoint, e.g. for a regional mirror or
// a test server.
func WithEndpoint(endpoint string) Option {
	return func(c *ArchiveClient) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ArchiveClient) {
		c.httpClient = hc
	}
}

// WithConcurrency sets the bound on parallel blob downloads.
func WithConcurrency(n int) Option {
	return func(c *ArchiveClient) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ArchiveClient) {
		c.logger = logger
	}
}

// NewArchiveClient creates a client for the public archive.
func NewArchiveClient(opts ...Option) *ArchiveClient {
	c := &ArchiveClient{
		endpoint:    DefaultEndpoint,
		httpClient:  &http.Client{Timeout: httpTimeout},
		concurrency: DefaultFetchConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listResult is the subset of the ListObjectsV2 response we consume.
type listResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key string `xml:"Key"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

// list performs one or more ListObjectsV2 pages and returns object keys and
// common prefixes for the given prefix/delimiter pair.
func (c *ArchiveClient) list(ctx context.Context, prefix, delimiter string) (keys, prefixes []string, err error) {
	token := ""
	for {
		q := url.Values{}
		q.Set("list-type", "2")
		q.Set("max-keys", fmt.Sprint(maxListKeys))
		if prefix != "" {
			q.Set("prefix", prefix)
		}
		if delimiter != "" {
			q.Set("delimiter", delimiter)
		}
		if token != "" {
			q.Set("continuation-token", token)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/?"+q.Encode(), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("create list request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("list objects: %w", err)
		}

		var page listResult
		decodeErr := func() error {
			defer func() {
				_ = resp.Body.Close()
			}()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("list objects: archive returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			return xml.NewDecoder(resp.Body).Decode(&page)
		}()
		if decodeErr != nil {
			return nil, nil, decodeErr
		}

		for _, obj := range page.Contents {
			keys = append(keys, obj.Key)
		}
		for _, p := range page.CommonPrefixes {
			prefixes = append(prefixes, p.Prefix)
		}

		if !page.IsTruncated || page.NextContinuationToken == "" {
			return keys, prefixes, nil
		}
		token = page.NextContinuationToken
	}
}

// getObject downloads one blob by key.
func (c *ArchiveClient) getObject(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("create get request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: archive returned %d", key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Fetch lists keys under the locator prefix, filters them against the
// locator glob, downloads the matching blobs in parallel, and parses each
// one into a Record.
func (c *ArchiveClient) Fetch(ctx context.Context, dataType types.DataType, loc resolver.Locator) ([]types.Record, error) {
	if !dataType.Valid() {
		return nil, fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dataType)
	}

	keys, _, err := c.list(ctx, loc.Prefix, "")
	if err != nil {
		return nil, err
	}

	matched := keys[:0]
	for _, key := range keys {
		ok, err := path.Match(loc.Glob, key)
		if err != nil {
			return nil, fmt.Errorf("%w: bad locator glob %q", types.ErrInvalidArgument, loc.Glob)
		}
		if ok {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return []types.Record{}, nil
	}

	var (
		mu      sync.Mutex
		records = make([]types.Record, 0, len(matched))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, key := range matched {
		g.Go(func() error {
			body, err := c.getObject(gctx, key)
			if err != nil {
				return err
			}
			rec, err := parseRecord(dataType, key, body)
			if err != nil {
				// A malformed blob is skipped, not fatal: the
				// archive occasionally holds partial writes.
				c.logger.Warn("skipping malformed archive blob", "key", key, "error", err)
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Blob download order is nondeterministic; return a stable ordering.
	sort.Slice(records, func(i, j int) bool {
		if records[i].DocketID != records[j].DocketID {
			return records[i].DocketID < records[j].DocketID
		}
		return records[i].ItemID < records[j].ItemID
	})
	return records, nil
}

// ListAgencies returns the agency codes present under the archive root.
func (c *ArchiveClient) ListAgencies(ctx context.Context) ([]string, error) {
	_, prefixes, err := c.list(ctx, "raw-data/", "/")
	if err != nil {
		return nil, err
	}
	agencies := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if code := pathSegment(p, 1); code != "" {
			agencies = append(agencies, code)
		}
	}
	sort.Strings(agencies)
	return agencies, nil
}

// ListDockets returns the docket ids under one agency.
func (c *ArchiveClient) ListDockets(ctx context.Context, agencyCode string) ([]string, error) {
	agency := resolver.Canonical(agencyCode)
	if agency == "" {
		return nil, fmt.Errorf("%w: agency code is required", types.ErrInvalidArgument)
	}

	_, prefixes, err := c.list(ctx, "raw-data/"+agency+"/", "/")
	if err != nil {
		return nil, err
	}
	dockets := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if id := pathSegment(p, 2); id != "" {
			dockets = append(dockets, id)
		}
	}
	sort.Strings(dockets)
	return dockets, nil
}

// pathSegment returns the n-th slash-separated segment of a key or prefix.
func pathSegment(key string, n int) string {
	parts := strings.Split(key, "/")
	if n < 0 || n >= len(parts) {
		return ""
	}
	return parts[n]
}
