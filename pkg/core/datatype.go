package core

import "strings"

// =============================================================================
// DataType
// =============================================================================

// DataType is the semantic type of an attribute.
type DataType string

// Data type constants.
const (
	DataTypeUnknown   DataType = "unknown"
	DataTypeString    DataType = "string"
	DataTypeInteger   DataType = "integer"
	DataTypeDecimal   DataType = "decimal"
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
	DataTypeTimestamp DataType = "timestamp"
)

// String returns the string representation of the data type.
func (t DataType) String() string {
	if t == "" {
		return string(DataTypeUnknown)
	}
	return string(t)
}

// ParseDataType converts a string to a DataType value.
// Returns the type and true if recognized, or DataTypeUnknown and false otherwise.
// An empty string is accepted as DataTypeUnknown.
func ParseDataType(s string) (DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return DataTypeUnknown, true
	case "string", "text", "varchar":
		return DataTypeString, true
	case "integer", "int", "bigint":
		return DataTypeInteger, true
	case "decimal", "double", "float", "numeric":
		return DataTypeDecimal, true
	case "boolean", "bool":
		return DataTypeBoolean, true
	case "date":
		return DataTypeDate, true
	case "timestamp", "datetime":
		return DataTypeTimestamp, true
	default:
		return DataTypeUnknown, false
	}
}
