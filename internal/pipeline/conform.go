package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"tap-appstore/internal/model"
	"tap-appstore/pkg/utils"
)

// DateTimeLayout is how date-time strings leave the conformer.
const DateTimeLayout = "2006-01-02T15:04:05.000000Z"

// Conformer coerces records to a stream schema and validates the result.
type Conformer struct {
	stream   string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewConformer resolves s. A nil schema conforms nothing and passes records
// through.
func NewConformer(stream string, s *jsonschema.Schema) (*Conformer, error) {
	c := &Conformer{stream: stream, schema: s}
	if s == nil {
		return c, nil
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("stream %s: resolve schema: %w", stream, err))
	}
	c.resolved = resolved
	return c, nil
}

// Conform drops fields the schema does not declare, coerces the remaining
// values to their declared types and validates the record.
func (c *Conformer) Conform(rec model.Record) (model.Record, error) {
	if c.schema == nil || len(c.schema.Properties) == 0 {
		return rec, nil
	}

	out := make(model.Record, len(rec))
	for field, value := range rec {
		prop, ok := c.schema.Properties[field]
		if !ok {
			continue
		}
		v, err := conformValue(value, prop)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %s field %s value %v: %v", ErrSchemaMismatch, c.stream, field, value, err)
		}
		out[field] = v
	}

	if err := c.validate(out); err != nil {
		return nil, fmt.Errorf("%w: stream %s: %v", ErrSchemaMismatch, c.stream, err)
	}
	return out, nil
}

// validate checks the record in its wire form, so json.Number and int64
// values are seen the way a downstream reader would see them.
func (c *Conformer) validate(rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	return c.resolved.Validate(instance)
}

func declaredTypes(s *jsonschema.Schema) []string {
	if len(s.Types) > 0 {
		return s.Types
	}
	if s.Type != "" {
		return []string{s.Type}
	}
	return nil
}

func conformValue(value any, s *jsonschema.Schema) (any, error) {
	types := declaredTypes(s)
	if len(types) == 0 {
		return value, nil
	}

	// null is tried last, so an empty cell stays "" for plain strings and
	// becomes nil once every other declared type has refused it.
	nullable := false
	for _, t := range types {
		switch t {
		case "null":
			nullable = true
		case "integer":
			if v, ok := toInteger(value); ok {
				return v, nil
			}
		case "number":
			if v, ok := toNumber(value); ok {
				return v, nil
			}
		case "boolean":
			if v, ok := toBoolean(value); ok {
				return v, nil
			}
		case "string":
			if v, ok := toString(value, s.Format); ok {
				return v, nil
			}
		case "object":
			if v, ok := value.(map[string]any); ok {
				return v, nil
			}
		case "array":
			if v, ok := value.([]any); ok {
				return v, nil
			}
		}
	}
	if nullable {
		if str, ok := value.(string); value == nil || (ok && str == "") {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("not any of %v", types)
}

func toInteger(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case json.Number:
		n, err := utils.ParseInteger(v.String())
		return n, err == nil
	case string:
		n, err := utils.ParseInteger(v)
		return n, err == nil
	}
	return 0, false
}

func toNumber(value any) (json.Number, bool) {
	switch v := value.(type) {
	case int:
		return json.Number(strconv.Itoa(v)), true
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), true
	case float64:
		return json.Number(strconv.FormatFloat(v, 'f', -1, 64)), true
	case json.Number:
		return v, true
	case string:
		n, err := utils.ParseDecimal(v)
		return n, err == nil
	}
	return "", false
}

func toBoolean(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

func toString(value any, format string) (string, bool) {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case int, int64, float64, bool, json.Number:
		str = fmt.Sprint(v)
	default:
		return "", false
	}
	if format != "date-time" {
		return str, true
	}
	t, err := utils.ParseTimestamp(str)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(DateTimeLayout), true
}
