// Package types provides shared type definitions for the regsearch core.
//
// This package defines the domain types used across the data-access and
// search components: data types, cache records, search hits, and the
// error taxonomy.
//
// # Core Types
//
// DataType names one of the three regulations.gov collections:
//
//	dt, err := types.ParseDataType("comments")
//
// Record is a denormalized cache row for one docket, document, or comment.
// The raw JSON payload is retained for full-fidelity display; a small set of
// promoted scalar columns supports filtering and sorting without parsing it:
//
//	rec := types.Record{
//	    AgencyCode: "EPA",
//	    DocketID:   "EPA-HQ-OAR-2020-0001",
//	    ItemID:     "EPA-HQ-OAR-2020-0001-0042",
//	    RawJSON:    payload,
//	}
//
// SearchHit is a transient, per-request search result. Its Score field means
// different things per pipeline: hybrid search produces an RRF fused score
// (higher is better) while similarity expansion produces a vector distance
// (lower is closer). Callers must not compare scores across the two.
//
// # Errors
//
// The sentinel errors in this package form the error taxonomy shared by all
// components. Wrap them with fmt.Errorf("...: %w", err) and test with
// errors.Is.
package types
