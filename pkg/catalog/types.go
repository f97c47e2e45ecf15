package catalog

import (
	"strconv"
	"strings"
)

// TypeTag identifies a column data type by the backend's numeric tag.
type TypeTag int

// Data type tags as assigned by the backend.
const (
	TypeSmallInt TypeTag = iota
	TypeInt
	TypeBigInt
	TypeDouble
	TypeChar
	TypeVarchar
	TypeBoolean
	TypeUUID
	TypeDate
	TypeTime
	TypeTimestamp
	TypeGeometric
	TypeJSON
	TypeDecimal
)

var typeTagNames = [...]string{
	TypeSmallInt:  "SMALLINT",
	TypeInt:       "INT",
	TypeBigInt:    "BIGINT",
	TypeDouble:    "DOUBLE",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeBoolean:   "BOOLEAN",
	TypeUUID:      "UUID",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeGeometric: "GEOMETRIC",
	TypeJSON:      "JSON",
	TypeDecimal:   "DECIMAL",
}

// String returns the SQL name of the type, or TYPE(n) for unknown tags.
func (t TypeTag) String() string {
	if t >= 0 && int(t) < len(typeTagNames) {
		return typeTagNames[t]
	}
	return "TYPE(" + strconv.Itoa(int(t)) + ")"
}

// IndexKind identifies the access method of an index.
type IndexKind int

// Index kinds as assigned by the backend.
const (
	IndexSequential IndexKind = iota
	IndexAVL
	IndexISAM
	IndexHash
	IndexBTree
	IndexRTree
)

var indexKindNames = [...]string{
	IndexSequential: "SEQUENTIAL",
	IndexAVL:        "AVL",
	IndexISAM:       "ISAM",
	IndexHash:       "HASH",
	IndexBTree:      "BTREE",
	IndexRTree:      "RTREE",
}

func (k IndexKind) String() string {
	if k >= 0 && int(k) < len(indexKindNames) {
		return indexKindNames[k]
	}
	return "INDEX(" + strconv.Itoa(int(k)) + ")"
}

// TypeTagFor maps a SQL type name as reported by a database (for example
// "character varying(32)" or "INTEGER") to the closest tag. Unknown names map
// to TypeVarchar.
func TypeTagFor(sqlType string) TypeTag {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch t {
	case "SMALLINT", "INT2", "TINYINT":
		return TypeSmallInt
	case "INT", "INTEGER", "INT4", "MEDIUMINT":
		return TypeInt
	case "BIGINT", "INT8":
		return TypeBigInt
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION":
		return TypeDouble
	case "CHAR", "CHARACTER", "BPCHAR", "NCHAR":
		return TypeChar
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "UUID":
		return TypeUUID
	case "DATE":
		return TypeDate
	case "TIME", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE", "TIMETZ":
		return TypeTime
	case "TIMESTAMP", "DATETIME", "TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ":
		return TypeTimestamp
	case "POINT", "LINE", "LSEG", "BOX", "PATH", "POLYGON", "CIRCLE", "GEOMETRY":
		return TypeGeometric
	case "JSON", "JSONB":
		return TypeJSON
	case "DECIMAL", "NUMERIC", "MONEY":
		return TypeDecimal
	}

	// SQLite column affinity rules for free-form declared types.
	switch {
	case strings.Contains(t, "INT"):
		return TypeInt
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return TypeDouble
	default:
		return TypeVarchar
	}
}
