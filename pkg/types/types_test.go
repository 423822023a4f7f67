package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataType(t *testing.T) {
	for _, s := range []string{"dockets", "documents", "comments"} {
		dt, err := ParseDataType(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(dt))
		assert.True(t, dt.Valid())
	}
}

func TestParseDataType_Unknown(t *testing.T) {
	_, err := ParseDataType("filings")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestParseDataType_CaseSensitive(t *testing.T) {
	// Data types are lowercase identifiers, not user input; canonicalization
	// happens at the resolver for agency and docket values only.
	_, err := ParseDataType("Comments")
	assert.Error(t, err)
}

func TestCacheTable(t *testing.T) {
	assert.Equal(t, "comments_cache", DataTypeComments.CacheTable())
	assert.Equal(t, "dockets_cache", DataTypeDockets.CacheTable())
	assert.Equal(t, "documents_cache", DataTypeDocuments.CacheTable())
}

func TestRecordKey(t *testing.T) {
	r := Record{DocketID: "EPA-HQ-OAR-2020-0001", ItemID: "EPA-HQ-OAR-2020-0001-0042"}
	assert.Equal(t, RecordKey{DocketID: "EPA-HQ-OAR-2020-0001", ItemID: "EPA-HQ-OAR-2020-0001-0042"}, r.Key())
}

func TestSearchHitValidate(t *testing.T) {
	h := SearchHit{ID: "abc", Rank: 1}
	require.NoError(t, h.Validate())

	h.Rank = 0
	assert.ErrorIs(t, h.Validate(), ErrInvalidRank)

	h = SearchHit{Rank: 1}
	assert.ErrorIs(t, h.Validate(), ErrEmptyHitID)
}
