package sqlstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"recipeshare/internal/docstore"
)

// Field names are interpolated into JSON path expressions, so only plain
// identifiers are accepted.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validField(name string) error {
	if !fieldName.MatchString(name) {
		return fmt.Errorf("unsupported field name %q", name)
	}
	return nil
}

// encodeFields serializes a normalized field map. Top-level timestamps are
// stored as unix microseconds so they order numerically, and their names are
// returned separately so decodeFields can restore them.
func encodeFields(fields map[string]any) (data, timeFields []byte, err error) {
	plain := make(map[string]any, len(fields))
	var times []string
	for k, v := range fields {
		if err := validField(k); err != nil {
			return nil, nil, err
		}
		if t, ok := v.(time.Time); ok {
			plain[k] = t.UnixMicro()
			times = append(times, k)
			continue
		}
		plain[k] = v
	}
	sort.Strings(times)
	if times == nil {
		times = []string{}
	}

	if data, err = json.Marshal(plain); err != nil {
		return nil, nil, fmt.Errorf("encode fields: %w", err)
	}
	if timeFields, err = json.Marshal(times); err != nil {
		return nil, nil, fmt.Errorf("encode time fields: %w", err)
	}
	return data, timeFields, nil
}

func decodeFields(data, timeFields []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	var times []string
	if len(timeFields) > 0 {
		if err := json.Unmarshal(timeFields, &times); err != nil {
			return nil, fmt.Errorf("decode time fields: %w", err)
		}
	}

	fields := fromJSON(raw).(map[string]any)
	for _, k := range times {
		if us, ok := fields[k].(int64); ok {
			fields[k] = time.UnixMicro(us).UTC()
		}
	}
	return fields, nil
}

// fromJSON converts decoded JSON into the docstore read representation.
func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
		return x
	case map[string]any:
		if x == nil {
			return map[string]any{}
		}
		for k := range x {
			x[k] = fromJSON(x[k])
		}
		return x
	}
	return v
}

// cursorValue converts a StartAfter field into the value its column
// expression is compared with.
func cursorValue(v any) any {
	v = docstore.Normalize(v)
	if t, ok := v.(time.Time); ok {
		return t.UnixMicro()
	}
	return v
}
