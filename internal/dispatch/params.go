package dispatch

import (
	"fmt"
	"strings"
)

// Params is the open parameter mapping of a command request. Recognized keys
// are handler-specific.
type Params map[string]any

// String returns the value under key when it is a string. Absent keys, nil
// values and non-string values yield fallback.
func (p Params) String(key, fallback string) string {
	if p == nil {
		return fallback
	}
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fallback
	}
}

// NonEmptyString is String, but blank values also yield fallback.
func (p Params) NonEmptyString(key, fallback string) string {
	v := p.String(key, "")
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Clone deep-copies nested maps and slices so the copy shares no mutable
// state with p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return x
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = deepCopyValue(e)
		}
		return out
	case Params:
		if x == nil {
			return x
		}
		return x.Clone()
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		if x == nil {
			return x
		}
		return append([]string{}, x...)
	case map[string]string:
		if x == nil {
			return x
		}
		out := make(map[string]string, len(x))
		for k, e := range x {
			out[k] = e
		}
		return out
	default:
		return v
	}
}
