package resolver

import (
	"fmt"
	"strings"

	"github.com/spicyregs/regsearch/pkg/types"
)

// pathPatterns maps each data type to the blob glob under a docket's text
// directory in the archive hierarchy.
var pathPatterns = map[types.DataType]string{
	types.DataTypeDockets:   "docket/*.json",
	types.DataTypeDocuments: "documents/*.json",
	types.DataTypeComments:  "comments/*.json",
}

// Locator addresses a slice of the remote archive. Glob holds a key pattern
// rooted at the archive's raw-data prefix where "*" matches exactly one path
// segment. Prefix is the longest literal leading portion of Glob, usable for
// delimiter-free object listings.
type Locator struct {
	Glob   string
	Prefix string
}

// Predicate is a conjunction of zero, one, or two equality conditions on the
// canonical agency code and docket id. The zero value is a tautology that
// matches everything.
type Predicate struct {
	AgencyCode string
	DocketID   string
}

// IsEmpty reports whether the predicate matches everything.
func (p Predicate) IsEmpty() bool {
	return p.AgencyCode == "" && p.DocketID == ""
}

// SQL renders the predicate as a parameterized WHERE fragment. Column
// references may be qualified with a table alias (pass "" for none). An empty
// predicate renders the tautology "1=1" with no arguments.
func (p Predicate) SQL(alias string) (string, []any) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}

	var conds []string
	var args []any
	if p.AgencyCode != "" {
		conds = append(conds, prefix+"agency_code = ?")
		args = append(args, p.AgencyCode)
	}
	if p.DocketID != "" {
		conds = append(conds, prefix+"docket_id = ?")
		args = append(args, p.DocketID)
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

// Matches reports whether a record satisfies the predicate. Used by the
// federated fallback, which filters remote rows in memory instead of going
// through a cache table.
func (p Predicate) Matches(r *types.Record) bool {
	if p.AgencyCode != "" && r.AgencyCode != p.AgencyCode {
		return false
	}
	if p.DocketID != "" && r.DocketID != p.DocketID {
		return false
	}
	return true
}

// Canonical normalizes an agency code or docket id: trims whitespace, strips
// wrapping literal quote characters inherited from the raw archive format,
// and uppercases. "epa", "EPA " and "\"EPA\"" all canonicalize to "EPA".
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	return strings.ToUpper(s)
}

// Resolve produces the remote source locator and the cache filter predicate
// for a query. agencyCode and docketID are optional; both are canonicalized.
// The widest locator (neither given) is still syntactically valid even though
// scanning it may be slow; the resolver imposes no result cap.
//
// An unknown data type is an ErrInvalidArgument: callers must validate before
// building queries.
func Resolve(dataType types.DataType, agencyCode, docketID string) (Locator, Predicate, error) {
	pattern, ok := pathPatterns[dataType]
	if !ok {
		return Locator{}, Predicate{}, fmt.Errorf("%w: unknown data type %q", types.ErrInvalidArgument, dataType)
	}

	agency := Canonical(agencyCode)
	docket := Canonical(docketID)

	var glob string
	switch {
	case agency != "" && docket != "":
		glob = fmt.Sprintf("raw-data/%s/%s/text-%s/%s", agency, docket, docket, pattern)
	case agency != "":
		glob = fmt.Sprintf("raw-data/%s/*/*/%s", agency, pattern)
	default:
		glob = "raw-data/*/*/*/" + pattern
	}

	loc := Locator{Glob: glob, Prefix: literalPrefix(glob)}
	pred := Predicate{AgencyCode: agency, DocketID: docket}
	return loc, pred, nil
}

// literalPrefix returns the leading portion of a glob up to but not including
// the first wildcard segment, with a trailing slash.
func literalPrefix(glob string) string {
	segs := strings.Split(glob, "/")
	var lit []string
	for _, seg := range segs {
		if strings.ContainsAny(seg, "*?") {
			break
		}
		lit = append(lit, seg)
	}
	if len(lit) == len(segs) {
		// Fully literal locator: the prefix is everything up to the
		// final path element so listings still enumerate the blobs.
		lit = lit[:len(lit)-1]
	}
	return strings.Join(lit, "/") + "/"
}
