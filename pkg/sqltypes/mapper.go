package sqltypes

import "strings"

// Engine identifiers accepted by MapType. These match the IDs engines
// register under.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite"
)

// MapType converts an engine-native column type string into a semantic type.
// It is pure and total: unknown strings map to text, never an error.
// Array-suffixed strings ("integer[]") map recursively.
func MapType(engineID, nativeType string) SemanticType {
	t := strings.ToLower(strings.TrimSpace(nativeType))
	if t == "" {
		return Scalar(KindText)
	}

	if base, ok := strings.CutSuffix(t, "[]"); ok {
		return Array(MapType(engineID, base))
	}

	// MySQL conventions that depend on the parenthesized size.
	if engineID == EngineMySQL {
		switch t {
		case "tinyint(1)":
			return Scalar(KindBoolean)
		case "char(36)", "char(32)", "binary(16)":
			return Scalar(KindUUID)
		}
	}

	base := t
	if idx := strings.IndexByte(base, '('); idx != -1 {
		base = base[:idx]
	}
	base = strings.TrimSuffix(base, " zerofill")
	base = strings.TrimSuffix(base, " unsigned")
	base = strings.TrimSpace(base)

	switch base {
	case "int", "integer", "int2", "int4", "int8", "smallint", "mediumint",
		"bigint", "tinyint", "serial", "smallserial", "bigserial", "year":
		return Scalar(KindInteger)
	case "numeric", "decimal", "money":
		return Scalar(KindDecimal)
	case "real", "float", "float4", "float8", "double", "double precision":
		return Scalar(KindFloat)
	case "bool", "boolean":
		return Scalar(KindBoolean)
	case "date":
		return Scalar(KindDate)
	case "time", "timetz", "time without time zone", "time with time zone":
		return Scalar(KindTime)
	case "timestamp", "timestamptz", "datetime",
		"timestamp without time zone", "timestamp with time zone":
		return Scalar(KindDatetime)
	case "json", "jsonb":
		return Scalar(KindJSON)
	case "bytea", "blob", "tinyblob", "mediumblob", "longblob",
		"binary", "varbinary":
		return Scalar(KindBinary)
	case "uuid":
		return Scalar(KindUUID)
	case "user-defined", "enum", "set":
		return Scalar(KindEnum)
	case "composite", "record":
		return Scalar(KindComposite)
	default:
		return Scalar(KindText)
	}
}
