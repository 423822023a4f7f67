package types

import "fmt"

// DataType identifies one of the regulations.gov collections served by the
// cache layer.
type DataType string

const (
	DataTypeDockets   DataType = "dockets"
	DataTypeDocuments DataType = "documents"
	DataTypeComments  DataType = "comments"
)

// AllDataTypes lists every known data type in stable order.
var AllDataTypes = []DataType{DataTypeDockets, DataTypeDocuments, DataTypeComments}

// ParseDataType converts a string into a DataType. Unknown values return
// ErrInvalidArgument; callers must validate before building queries.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case DataTypeDockets, DataTypeDocuments, DataTypeComments:
		return DataType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown data type %q", ErrInvalidArgument, s)
	}
}

// Valid reports whether dt is one of the known data types.
func (dt DataType) Valid() bool {
	switch dt {
	case DataTypeDockets, DataTypeDocuments, DataTypeComments:
		return true
	}
	return false
}

// CacheTable returns the cache table name for this data type.
func (dt DataType) CacheTable() string {
	return string(dt) + "_cache"
}
