// Package resolver maps (data type, agency, docket) query parameters to a
// remote archive locator and a cache filter predicate.
//
// The archive is a content-addressed hierarchy keyed as
// raw-data/{AGENCY}/{DOCKET}/text-{DOCKET}/{type}/*.json. Resolve picks the
// most specific locator the parameters allow and widens with single-segment
// wildcards when agency or docket is omitted.
//
// Agency codes and docket ids are compared case-insensitively at the logical
// level: Canonical trims, strips wrapping quote characters, and uppercases,
// so "epa", "EPA " and a docket id stored with literal quotes all resolve to
// the same key.
package resolver
