package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// object is a JSON object with its member values left undecoded.
type object map[string]json.RawMessage

func parseObject(raw json.RawMessage) (object, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("expected object, got null")
	}
	if first(raw) != '{' {
		return nil, fmt.Errorf("expected object, got %s", kindOf(raw))
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

func parseArray(raw json.RawMessage) ([]json.RawMessage, error) {
	if first(raw) != '[' {
		return nil, fmt.Errorf("expected array, got %s", kindOf(raw))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	return items, nil
}

// optionalString: absent or null gives "", a string is returned as is,
// anything else is an error.
func (o object) optionalString(key string) (string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", nil
	}
	if first(raw) != '"' {
		return "", fmt.Errorf("field %q: expected string, got %s", key, kindOf(raw))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

// requiredString demands a JSON string.
func (o object) requiredString(key string) (string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("field %q is required", key)
	}
	return o.optionalString(key)
}

// identifier demands a JSON string or number. Numbers keep their literal
// text so 10 becomes "10" and large ids are not rounded through float64.
func (o object) identifier(key string) (string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("field %q is required", key)
	}
	switch c := first(raw); {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		if s == "" {
			return "", fmt.Errorf("field %q is empty", key)
		}
		return s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("field %q: expected string or number, got %s", key, kindOf(raw))
	}
}

// optionalObject: absent or null gives a nil object.
func (o object) optionalObject(key string) (object, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	obj, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return obj, nil
}

func first(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func kindOf(raw json.RawMessage) string {
	switch c := first(raw); {
	case c == '{':
		return "object"
	case c == '[':
		return "array"
	case c == '"':
		return "string"
	case c == 't' || c == 'f':
		return "bool"
	case c == 'n':
		return "null"
	case c == '-' || (c >= '0' && c <= '9'):
		return "number"
	default:
		return "nothing"
	}
}
