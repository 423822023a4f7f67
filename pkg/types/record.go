package types

import "time"

// Record is a denormalized cache row representing one docket, document, or
// comment. AgencyCode and DocketID are stored in canonical uppercase form.
// The promoted scalar fields are nullable because each data type populates a
// different subset; RawJSON retains the original payload.
type Record struct {
	AgencyCode string
	DocketID   string
	Year       string

	// ItemID is the natural per-type identifier: the comment id for
	// comments, the document id for documents, and the docket id itself
	// for dockets.
	ItemID string

	Title            string
	Category         string
	DocumentType     string
	Subtype          string
	Comment          string
	ModifyDate       *time.Time
	PostedDate       *time.Time
	ReceiveDate      *time.Time
	CommentStartDate *time.Time
	CommentEndDate   *time.Time
	PageCount        *int
	Withdrawn        *bool

	RawJSON string

	// CachedAt is the freshness watermark, set at insert time.
	CachedAt time.Time
}

// RecordKey is the natural dedup key within one data type's cache table.
// Duplicate rows for the same key may exist transiently during a rebuild;
// readers keep the row with the greatest CachedAt.
type RecordKey struct {
	DocketID string
	ItemID   string
}

// Key returns the record's dedup key.
func (r *Record) Key() RecordKey {
	return RecordKey{DocketID: r.DocketID, ItemID: r.ItemID}
}
