package types

import "time"

// SearchHit is a transient search result. Hits are created per request and
// never persisted.
type SearchHit struct {
	ID         string
	Title      string
	Text       string
	DocketID   string
	AgencyCode string
	PostedDate *time.Time

	// Score is pipeline-specific: the RRF fused score for hybrid search
	// (higher is better) or the vector distance for similarity expansion
	// (lower is closer). The two score spaces must not be conflated.
	Score float64

	// Rank is the 1-based position in the result set.
	Rank int
}

// Validate checks structural invariants on a hit.
func (h *SearchHit) Validate() error {
	if h.ID == "" {
		return ErrEmptyHitID
	}
	if h.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}
