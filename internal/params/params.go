// Package params extracts and binds named $param placeholders in a saved
// Query's SQL text. Parameters are always preferred bound positionally
// through a prepared statement (BindParams); SubstituteParams exists only
// as an escaped-literal fallback for drivers that cannot prepare.
package params

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brightmesh/querycore/internal/domain"
)

// paramRegex matches $name in SQL. Names must start with a letter and
// contain only alphanumerics and underscores after that.
var paramRegex = regexp.MustCompile(`\$([a-zA-Z][a-zA-Z0-9_]*)`)

// ExtractParams returns the distinct parameter names referenced in sql,
// in first-appearance order.
func ExtractParams(sql string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range paramRegex.FindAllStringSubmatch(sql, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindDate
	KindDateTime
)

// TypedValue is a JSON parameter value coerced to its declared ParamType.
type TypedValue struct {
	Kind     ValueKind
	Str      string
	Num      float64
	Int      int64
	Bool     bool
	Date     time.Time // date-only, UTC midnight
	DateTime time.Time
}

// FromJSON coerces a decoded JSON value to a TypedValue per paramType,
// matching the coercion table used across the rest of the system: a
// value's native JSON type is accepted, and for Number/Boolean a string
// is also accepted and parsed.
func FromJSON(value any, paramType domain.ParamType) (TypedValue, error) {
	if value == nil {
		return TypedValue{Kind: KindNull}, nil
	}

	switch paramType {
	case domain.ParamTypeString:
		if s, ok := value.(string); ok {
			return TypedValue{Kind: KindString, Str: s}, nil
		}

	case domain.ParamTypeNumber:
		switch v := value.(type) {
		case float64:
			if v == float64(int64(v)) {
				return TypedValue{Kind: KindInteger, Int: int64(v)}, nil
			}
			return TypedValue{Kind: KindNumber, Num: v}, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return TypedValue{}, fmt.Errorf("cannot parse %q as number", v)
			}
			return TypedValue{Kind: KindNumber, Num: f}, nil
		}

	case domain.ParamTypeBoolean:
		switch v := value.(type) {
		case bool:
			return TypedValue{Kind: KindBoolean, Bool: v}, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "1", "yes":
				return TypedValue{Kind: KindBoolean, Bool: true}, nil
			case "false", "0", "no":
				return TypedValue{Kind: KindBoolean, Bool: false}, nil
			default:
				return TypedValue{}, fmt.Errorf("cannot parse %q as boolean", v)
			}
		}

	case domain.ParamTypeDate:
		if s, ok := value.(string); ok {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				return TypedValue{}, fmt.Errorf("cannot parse %q as date (YYYY-MM-DD)", s)
			}
			return TypedValue{Kind: KindDate, Date: t}, nil
		}

	case domain.ParamTypeDateTime:
		if s, ok := value.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return TypedValue{Kind: KindDateTime, DateTime: t.UTC()}, nil
			}
			for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
				if t, err := time.Parse(layout, s); err == nil {
					return TypedValue{Kind: KindDateTime, DateTime: t.UTC()}, nil
				}
			}
			return TypedValue{}, fmt.Errorf("cannot parse %q as datetime", s)
		}
	}

	return TypedValue{}, fmt.Errorf("type mismatch: expected %s, got %T", paramType, value)
}

// ToSQLLiteral renders a TypedValue as an escaped SQL literal — used only
// by SubstituteParams, never by the prepared-statement path.
func (v TypedValue) ToSQLLiteral() string {
	switch v.Kind {
	case KindString:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindDate:
		return "'" + v.Date.Format("2006-01-02") + "'"
	case KindDateTime:
		return "'" + v.DateTime.Format(time.RFC3339) + "'"
	default:
		return "NULL"
	}
}

// Value returns the plain Go value a pgx driver would bind for this
// TypedValue, for use with the prepared-statement path.
func (v TypedValue) Value() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindInteger:
		return v.Int
	case KindBoolean:
		return v.Bool
	case KindDate:
		return v.Date
	case KindDateTime:
		return v.DateTime
	default:
		return nil
	}
}

// BoundParams holds SQL rewritten to use positional placeholders plus the
// values in matching order.
type BoundParams struct {
	SQL       string
	Values    []TypedValue
	Positions map[string]int
}

// BindParams validates that every $name in sql has a schema definition,
// coerces its value (or default), and rewrites sql to use $1, $2, ...
// placeholders in first-appearance order.
func BindParams(sql string, schema []domain.ParamDef, values map[string]any) (*BoundParams, error) {
	schemaByName := make(map[string]domain.ParamDef, len(schema))
	for _, p := range schema {
		schemaByName[p.Name] = p
	}

	sqlParams := ExtractParams(sql)
	for _, name := range sqlParams {
		if _, ok := schemaByName[name]; !ok {
			return nil, fmt.Errorf("parameter %q used in sql but not defined", name)
		}
	}

	positions := make(map[string]int, len(sqlParams))
	typedValues := make([]TypedValue, 0, len(sqlParams))
	boundSQL := sql

	for idx, name := range sqlParams {
		def := schemaByName[name]

		raw, provided := values[name]
		if !provided {
			if def.Default != nil {
				raw = def.Default
			} else if def.Required {
				return nil, fmt.Errorf("required parameter %q not provided", name)
			} else {
				return nil, fmt.Errorf("parameter %q has no value or default", name)
			}
		}

		typed, err := FromJSON(raw, def.Type)
		if err != nil {
			return nil, err
		}
		typedValues = append(typedValues, typed)
		positions[name] = idx + 1

		boundSQL = strings.ReplaceAll(boundSQL, "$"+name, "$"+strconv.Itoa(idx+1))
	}

	return &BoundParams{SQL: boundSQL, Values: typedValues, Positions: positions}, nil
}

// SubstituteParams inlines escaped literal values directly into sql. This
// is a fallback for connectors that cannot use prepared statements;
// BindParams is preferred everywhere it's available.
func SubstituteParams(sql string, schema []domain.ParamDef, values map[string]any) (string, error) {
	schemaByName := make(map[string]domain.ParamDef, len(schema))
	for _, p := range schema {
		schemaByName[p.Name] = p
	}

	result := sql
	for _, name := range ExtractParams(sql) {
		def, ok := schemaByName[name]
		if !ok {
			return "", fmt.Errorf("unknown parameter: %s", name)
		}

		raw, provided := values[name]
		if !provided {
			if def.Default != nil {
				raw = def.Default
			} else {
				return "", fmt.Errorf("parameter %q not provided", name)
			}
		}

		typed, err := FromJSON(raw, def.Type)
		if err != nil {
			return "", err
		}

		result = strings.ReplaceAll(result, "$"+name, typed.ToSQLLiteral())
	}

	return result, nil
}

// encodedValue is the wire form of one TypedValue: the run usecase binds
// parameters once at create_run time and persists the bound values
// alongside the positional executed_sql, so a runner can re-execute the
// exact statement without re-resolving defaults or re-coercing types.
type encodedValue struct {
	Kind  ValueKind `json:"kind"`
	Value any       `json:"value,omitempty"`
}

// EncodeValues serializes bound parameter values for storage on a Run row.
func EncodeValues(values []TypedValue) ([]byte, error) {
	encoded := make([]encodedValue, len(values))
	for i, v := range values {
		switch v.Kind {
		case KindDate:
			encoded[i] = encodedValue{Kind: v.Kind, Value: v.Date.Format("2006-01-02")}
		case KindDateTime:
			encoded[i] = encodedValue{Kind: v.Kind, Value: v.DateTime.Format(time.RFC3339)}
		default:
			encoded[i] = encodedValue{Kind: v.Kind, Value: v.Value()}
		}
	}
	return json.Marshal(encoded)
}

// DecodeValues reverses EncodeValues, reconstructing typed values a
// connector can bind positionally.
func DecodeValues(data []byte) ([]TypedValue, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var encoded []encodedValue
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("decoding bound parameter values: %w", err)
	}

	values := make([]TypedValue, len(encoded))
	for i, e := range encoded {
		tv := TypedValue{Kind: e.Kind}
		switch e.Kind {
		case KindString:
			tv.Str, _ = e.Value.(string)
		case KindNumber:
			tv.Num, _ = e.Value.(float64)
		case KindInteger:
			if f, ok := e.Value.(float64); ok {
				tv.Int = int64(f)
			}
		case KindBoolean:
			tv.Bool, _ = e.Value.(bool)
		case KindDate:
			if s, ok := e.Value.(string); ok {
				tv.Date, _ = time.Parse("2006-01-02", s)
			}
		case KindDateTime:
			if s, ok := e.Value.(string); ok {
				tv.DateTime, _ = time.Parse(time.RFC3339, s)
			}
		}
		values[i] = tv
	}
	return values, nil
}
