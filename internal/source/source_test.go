package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/pkg/types"
)

// fakeArchive serves a fixed key->blob map with S3 ListObjectsV2 semantics.
type fakeArchive struct {
	objects map[string]string
}

func (f *fakeArchive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("list-type") == "2" {
		f.serveList(w, r)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/")
	body, ok := f.objects[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeArchive) serveList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	delimiter := r.URL.Query().Get("delimiter")

	var result struct {
		XMLName     xml.Name `xml:"ListBucketResult"`
		IsTruncated bool     `xml:"IsTruncated"`
		Contents    []struct {
			Key string `xml:"Key"`
		} `xml:"Contents"`
		CommonPrefixes []struct {
			Prefix string `xml:"Prefix"`
		} `xml:"CommonPrefixes"`
	}

	seen := map[string]bool{}
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if delimiter == "" {
			result.Contents = append(result.Contents, struct {
				Key string `xml:"Key"`
			}{Key: key})
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, delimiter); i >= 0 {
			cp := prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				result.CommonPrefixes = append(result.CommonPrefixes, struct {
					Prefix string `xml:"Prefix"`
				}{Prefix: cp})
			}
		} else {
			result.Contents = append(result.Contents, struct {
				Key string `xml:"Key"`
			}{Key: key})
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	_ = xml.NewEncoder(w).Encode(result)
}

func commentBlob(id, title, comment string) string {
	return fmt.Sprintf(`{"data":{"id":%q,"attributes":{"title":%q,"comment":%q,"documentType":"Public Submission","postedDate":"2020-05-30T00:00:00Z"}}}`,
		id, title, comment)
}

func newTestClient(t *testing.T, objects map[string]string) *ArchiveClient {
	t.Helper()
	srv := httptest.NewServer(&fakeArchive{objects: objects})
	t.Cleanup(srv.Close)
	return NewArchiveClient(WithEndpoint(srv.URL), WithConcurrency(2))
}

func TestFetch_DocketScope(t *testing.T) {
	objects := map[string]string{
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/c1.json": commentBlob("EPA-HQ-OAR-2020-0001-0001", "first", "body one"),
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/c2.json": commentBlob("EPA-HQ-OAR-2020-0001-0002", "second", "body two"),
		// Same docket, different data type: must not match.
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/documents/d1.json": commentBlob("EPA-HQ-OAR-2020-0001-0100", "doc", ""),
		// Different docket: must not match.
		"raw-data/EPA/EPA-HQ-OAR-2021-0009/text-EPA-HQ-OAR-2021-0009/comments/c9.json": commentBlob("EPA-HQ-OAR-2021-0009-0001", "other", ""),
	}
	client := newTestClient(t, objects)

	loc, _, err := resolver.Resolve(types.DataTypeComments, "EPA", "EPA-HQ-OAR-2020-0001")
	require.NoError(t, err)

	recs, err := client.Fetch(context.Background(), types.DataTypeComments, loc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "EPA-HQ-OAR-2020-0001-0001", recs[0].ItemID)
	assert.Equal(t, "EPA-HQ-OAR-2020-0001-0002", recs[1].ItemID)
	assert.Equal(t, "EPA", recs[0].AgencyCode)
	assert.Equal(t, "2020", recs[0].Year)
	assert.Equal(t, "body one", recs[0].Comment)
	require.NotNil(t, recs[0].PostedDate)
}

func TestFetch_AgencyScope(t *testing.T) {
	objects := map[string]string{
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/c1.json": commentBlob("EPA-HQ-OAR-2020-0001-0001", "a", ""),
		"raw-data/EPA/EPA-HQ-OW-2021-0002/text-EPA-HQ-OW-2021-0002/comments/c2.json":   commentBlob("EPA-HQ-OW-2021-0002-0001", "b", ""),
		"raw-data/FERC/FERC-2020-0003/text-FERC-2020-0003/comments/c3.json":            commentBlob("FERC-2020-0003-0001", "c", ""),
	}
	client := newTestClient(t, objects)

	loc, _, err := resolver.Resolve(types.DataTypeComments, "EPA", "")
	require.NoError(t, err)

	recs, err := client.Fetch(context.Background(), types.DataTypeComments, loc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, "EPA", rec.AgencyCode)
	}
}

func TestFetch_NoMatches(t *testing.T) {
	client := newTestClient(t, map[string]string{})

	loc, _, err := resolver.Resolve(types.DataTypeComments, "EPA", "EPA-HQ-OAR-2020-0001")
	require.NoError(t, err)

	recs, err := client.Fetch(context.Background(), types.DataTypeComments, loc)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFetch_SkipsMalformedBlob(t *testing.T) {
	objects := map[string]string{
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/good.json": commentBlob("EPA-HQ-OAR-2020-0001-0001", "good", ""),
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/bad.json":  `{"data": truncated`,
	}
	client := newTestClient(t, objects)

	loc, _, err := resolver.Resolve(types.DataTypeComments, "EPA", "EPA-HQ-OAR-2020-0001")
	require.NoError(t, err)

	recs, err := client.Fetch(context.Background(), types.DataTypeComments, loc)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "good", recs[0].Title)
}

func TestFetch_InvalidDataType(t *testing.T) {
	client := newTestClient(t, map[string]string{})
	_, err := client.Fetch(context.Background(), types.DataType("filings"), resolver.Locator{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestListAgencies(t *testing.T) {
	objects := map[string]string{
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/c1.json": "{}",
		"raw-data/FERC/FERC-2020-0003/text-FERC-2020-0003/comments/c3.json":            "{}",
		"raw-data/FAA/FAA-2019-0004/text-FAA-2019-0004/docket/d.json":                  "{}",
	}
	client := newTestClient(t, objects)

	agencies, err := client.ListAgencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EPA", "FAA", "FERC"}, agencies)
}

func TestListDockets(t *testing.T) {
	objects := map[string]string{
		"raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/c1.json": "{}",
		"raw-data/EPA/EPA-HQ-OW-2021-0002/text-EPA-HQ-OW-2021-0002/comments/c2.json":   "{}",
		"raw-data/FERC/FERC-2020-0003/text-FERC-2020-0003/comments/c3.json":            "{}",
	}
	client := newTestClient(t, objects)

	dockets, err := client.ListDockets(context.Background(), "epa")
	require.NoError(t, err)
	assert.Equal(t, []string{"EPA-HQ-OAR-2020-0001", "EPA-HQ-OW-2021-0002"}, dockets)

	_, err = client.ListDockets(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestListAgencies_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	client := NewArchiveClient(WithEndpoint(srv.URL))

	_, err := client.ListAgencies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
