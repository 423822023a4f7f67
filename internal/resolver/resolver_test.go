package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicyregs/regsearch/pkg/types"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"epa":                        "EPA",
		"EPA":                        "EPA",
		"EPA ":                       "EPA",
		" epa ":                      "EPA",
		`"EPA-HQ-OAR-2020-0001"`:     "EPA-HQ-OAR-2020-0001",
		`EPA-HQ-OAR-2020-0001`:       "EPA-HQ-OAR-2020-0001",
		`" epa-hq-oar-2020-0001 "`:   "EPA-HQ-OAR-2020-0001",
		"":                           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in), "input %q", in)
	}
}

func TestCanonical_Idempotent(t *testing.T) {
	for _, in := range []string{"epa", `"EPA"`, " Ferc ", "DOT-OST-2018-0068"} {
		once := Canonical(in)
		assert.Equal(t, once, Canonical(once))
	}
}

func TestResolve_BothGiven(t *testing.T) {
	loc, pred, err := Resolve(types.DataTypeComments, "epa", "epa-hq-oar-2020-0001")
	require.NoError(t, err)

	assert.Equal(t, "raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/*.json", loc.Glob)
	assert.Equal(t, "raw-data/EPA/EPA-HQ-OAR-2020-0001/text-EPA-HQ-OAR-2020-0001/comments/", loc.Prefix)
	assert.Equal(t, Predicate{AgencyCode: "EPA", DocketID: "EPA-HQ-OAR-2020-0001"}, pred)
}

func TestResolve_AgencyOnly(t *testing.T) {
	loc, pred, err := Resolve(types.DataTypeDockets, "ferc", "")
	require.NoError(t, err)

	assert.Equal(t, "raw-data/FERC/*/*/docket/*.json", loc.Glob)
	assert.Equal(t, "raw-data/FERC/", loc.Prefix)
	assert.Equal(t, "FERC", pred.AgencyCode)
	assert.Empty(t, pred.DocketID)
}

func TestResolve_NeitherGiven(t *testing.T) {
	loc, pred, err := Resolve(types.DataTypeDocuments, "", "")
	require.NoError(t, err)

	assert.Equal(t, "raw-data/*/*/*/documents/*.json", loc.Glob)
	assert.Equal(t, "raw-data/", loc.Prefix)
	assert.True(t, pred.IsEmpty())
}

func TestResolve_UnknownDataType(t *testing.T) {
	_, _, err := Resolve(types.DataType("filings"), "EPA", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestPredicateSQL(t *testing.T) {
	clause, args := Predicate{AgencyCode: "EPA", DocketID: "EPA-HQ-OAR-2020-0001"}.SQL("")
	assert.Equal(t, "agency_code = ? AND docket_id = ?", clause)
	assert.Equal(t, []any{"EPA", "EPA-HQ-OAR-2020-0001"}, args)

	clause, args = Predicate{AgencyCode: "EPA"}.SQL("f")
	assert.Equal(t, "f.agency_code = ?", clause)
	assert.Equal(t, []any{"EPA"}, args)
}

func TestPredicateSQL_Tautology(t *testing.T) {
	clause, args := Predicate{}.SQL("")
	assert.Equal(t, "1=1", clause)
	assert.Nil(t, args)
}

func TestPredicateMatches(t *testing.T) {
	pred := Predicate{AgencyCode: "EPA"}
	assert.True(t, pred.Matches(&types.Record{AgencyCode: "EPA", DocketID: "EPA-HQ-OAR-2020-0001"}))
	assert.False(t, pred.Matches(&types.Record{AgencyCode: "FERC"}))

	assert.True(t, Predicate{}.Matches(&types.Record{AgencyCode: "DOT"}))
}

func TestQuotedAndUnquotedDocketsShareKey(t *testing.T) {
	_, quoted, err := Resolve(types.DataTypeComments, "EPA", `"EPA-HQ-OAR-2020-0001"`)
	require.NoError(t, err)
	_, plain, err := Resolve(types.DataTypeComments, "EPA", "EPA-HQ-OAR-2020-0001")
	require.NoError(t, err)
	assert.Equal(t, plain, quoted)
}
