package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oliveagle/jsonpath"
)

// FieldMap maps record field names to JSONPath expressions evaluated per record
type FieldMap map[string]string

// extractor pulls records out of provider JSON using compiled JSONPath expressions
type extractor struct {
	recordsPath *jsonpath.Compiled
	fields      map[string]*jsonpath.Compiled
}

// newExtractor compiles recordsPath and fields over defaults.
// An empty recordsPath means the document itself is a single record.
func newExtractor(recordsPath string, defaults, overrides FieldMap) (*extractor, error) {
	ex := &extractor{fields: make(map[string]*jsonpath.Compiled)}

	if recordsPath != "" {
		compiled, err := jsonpath.Compile(recordsPath)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression '%s': %w", recordsPath, err)
		}
		ex.recordsPath = compiled
	}

	merged := make(FieldMap, len(defaults))
	for name, expr := range defaults {
		merged[name] = expr
	}
	for name, expr := range overrides {
		if _, ok := defaults[name]; !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		merged[name] = expr
	}

	for name, expr := range merged {
		compiled, err := jsonpath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression '%s' for field %s: %w", expr, name, err)
		}
		ex.fields[name] = compiled
	}

	return ex, nil
}

// records decodes body and returns the raw record objects
func (ex *extractor) records(body []byte) ([]any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if ex.recordsPath == nil {
		if doc == nil {
			return nil, ErrNoData
		}
		return []any{doc}, nil
	}

	found, err := ex.recordsPath.Lookup(doc)
	if err != nil || found == nil {
		return nil, ErrNoData
	}

	list, ok := found.([]any)
	if !ok {
		return nil, fmt.Errorf("records path returned %T, expected array: %w", found, ErrNoData)
	}
	return list, nil
}

// values resolves every mapped field on one record; absent fields are omitted
func (ex *extractor) values(record any) map[string]any {
	out := make(map[string]any, len(ex.fields))
	for name, path := range ex.fields {
		v, err := path.Lookup(record)
		if err != nil || v == nil {
			continue
		}
		out[name] = v
	}
	return out
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceNumber(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to number", v)
		}
		return num, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

// coerceTime accepts RFC3339 strings or unix seconds; absent yields zero time
func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			// zone-less timestamps are read as UTC
			t, err = time.Parse("2006-01-02T15:04:05.9999999", v)
			if err != nil {
				return time.Time{}, fmt.Errorf("cannot parse timestamp '%s'", v)
			}
		}
		return t.UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", value)
	}
}
