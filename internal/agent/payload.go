package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Object decodes raw into a generic map with numbers preserved as json.Number.
// ok is false when raw is not a JSON object.
func Object(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// Int returns the first key in m holding an integer-like value (number,
// numeric string, or bool) and whether one was found.
func Int(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
			if f, err := v.Float64(); err == nil {
				return int(f), true
			}
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Bool returns the first key in m holding a boolean-like value.
func Bool(m map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case bool:
			return v, true
		case json.Number:
			return v.String() != "0", true
		case float64:
			return v != 0, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

// String returns the first key in m holding a non-empty string. Objects of the
// form {"rendered": "..."} are unwrapped.
func String(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case json.Number:
			return v.String(), true
		case map[string]any:
			if s, ok := String(v, "rendered", "raw"); ok {
				return s, true
			}
		}
	}
	return "", false
}
