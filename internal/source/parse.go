package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spicyregs/regsearch/internal/resolver"
	"github.com/spicyregs/regsearch/pkg/types"
)

// payload is the regulations.gov bulk-export envelope. Attribute values may
// be absent, JSON null, or the literal string "null"; all three read as
// missing.
type payload struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Title            jsonString `json:"title"`
			DocketType       jsonString `json:"docketType"`
			Category         jsonString `json:"category"`
			DocumentType     jsonString `json:"documentType"`
			Subtype          jsonString `json:"subtype"`
			Comment          jsonString `json:"comment"`
			ModifyDate       jsonTime   `json:"modifyDate"`
			PostedDate       jsonTime   `json:"postedDate"`
			ReceiveDate      jsonTime   `json:"receiveDate"`
			CommentStartDate jsonTime   `json:"commentStartDate"`
			CommentEndDate   jsonTime   `json:"commentEndDate"`
			PageCount        *int       `json:"pageCount"`
			Withdrawn        *bool      `json:"withdrawn"`
		} `json:"attributes"`
	} `json:"data"`
}

// jsonString decodes a string attribute, treating the literal "null" as
// empty.
type jsonString string

func (s *jsonString) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "null" {
		*s = ""
		return nil
	}
	*s = jsonString(*raw)
	return nil
}

// jsonTime decodes an RFC3339 "Z" timestamp attribute, tolerating null and
// the literal string "null".
type jsonTime struct {
	t *time.Time
}

func (jt *jsonTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "null" || *raw == "" {
		jt.t = nil
		return nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05Z", *raw)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", *raw, err)
	}
	jt.t = &parsed
	return nil
}

// parseRecord converts one archive blob into a Record. Agency code, docket
// id, and year come from the key path, not the payload body, so quoted or
// inconsistently cased source data cannot corrupt the cache keys.
func parseRecord(dataType types.DataType, key string, body []byte) (types.Record, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return types.Record{}, fmt.Errorf("decode payload: %w", err)
	}

	agency := resolver.Canonical(pathSegment(key, 1))
	docket := resolver.Canonical(pathSegment(key, 2))
	if agency == "" || docket == "" {
		return types.Record{}, fmt.Errorf("key %q lacks agency/docket segments", key)
	}

	itemID := strings.TrimSpace(p.Data.ID)
	if itemID == "" {
		// Docket blobs occasionally omit data.id; the docket id itself
		// is the natural identifier there.
		if dataType == types.DataTypeDockets {
			itemID = docket
		} else {
			return types.Record{}, fmt.Errorf("key %q payload lacks data.id", key)
		}
	}

	attrs := p.Data.Attributes
	rec := types.Record{
		AgencyCode:       agency,
		DocketID:         docket,
		Year:             docketYear(docket),
		ItemID:           itemID,
		Title:            string(attrs.Title),
		Category:         string(attrs.Category),
		DocumentType:     string(attrs.DocumentType),
		Subtype:          string(attrs.Subtype),
		Comment:          string(attrs.Comment),
		ModifyDate:       attrs.ModifyDate.t,
		PostedDate:       attrs.PostedDate.t,
		ReceiveDate:      attrs.ReceiveDate.t,
		CommentStartDate: attrs.CommentStartDate.t,
		CommentEndDate:   attrs.CommentEndDate.t,
		PageCount:        attrs.PageCount,
		Withdrawn:        attrs.Withdrawn,
		RawJSON:          string(body),
	}

	// Dockets expose docketType where documents and comments expose
	// documentType; both land in the same promoted column.
	if dataType == types.DataTypeDockets && rec.DocumentType == "" {
		rec.DocumentType = string(attrs.DocketType)
	}
	return rec, nil
}

// docketYear extracts the four-digit year segment from a docket id such as
// EPA-HQ-OAR-2020-0001. Ids without one yield an empty string.
func docketYear(docketID string) string {
	for _, part := range strings.Split(docketID, "-") {
		if len(part) != 4 {
			continue
		}
		allDigits := true
		for _, r := range part {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return part
		}
	}
	return ""
}
