// Package config provides a typed, read-only accessor over a nested
// key/value tree. The tree itself is parsed and decoded by the host
// process (YAML loading is out of scope for the simulation core); this
// package only resolves dot-notation paths against an already-built
// map[string]any and fails fast when a required key is absent or has the
// wrong shape.
package config

import (
	"fmt"
	"strings"
)

// View is a read-only accessor over a nested configuration tree.
type View struct {
	data map[string]any
}

// New wraps a decoded configuration tree. The map is never mutated.
func New(data map[string]any) *View {
	if data == nil {
		data = map[string]any{}
	}
	return &View{data: data}
}

// MissingKeyError reports that a required configuration path could not be
// resolved, or resolved to a value of the wrong shape.
type MissingKeyError struct {
	Path   string
	Reason string
}

func (e *MissingKeyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("config: %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("config: %q: required key not set", e.Path)
}

// lookup walks the dot-separated path and returns the raw value.
func (v *View) lookup(path string) (any, bool) {
	keys := strings.Split(path, ".")
	var cur any = v.data
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Float64 resolves a required numeric key.
func (v *View) Float64(path string) (float64, error) {
	raw, ok := v.lookup(path)
	if !ok {
		return 0, &MissingKeyError{Path: path}
	}
	f, ok := toFloat64(raw)
	if !ok {
		return 0, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected number, got %T", raw)}
	}
	return f, nil
}

// Int resolves a required integer key.
func (v *View) Int(path string) (int, error) {
	f, err := v.Float64(path)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool resolves a required boolean key.
func (v *View) Bool(path string) (bool, error) {
	raw, ok := v.lookup(path)
	if !ok {
		return false, &MissingKeyError{Path: path}
	}
	b, ok := raw.(bool)
	if !ok {
		return false, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected bool, got %T", raw)}
	}
	return b, nil
}

// String resolves a required string key.
func (v *View) String(path string) (string, error) {
	raw, ok := v.lookup(path)
	if !ok {
		return "", &MissingKeyError{Path: path}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

// OptString resolves an optional string key, returning "" when absent.
// Used for keys spec.md marks optional, e.g. model.version.
func (v *View) OptString(path string) string {
	raw, ok := v.lookup(path)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// Range resolves a required [min, max] pair, as used by every
// rocket.*_limits.* key in spec.md §6.
func (v *View) Range(path string) ([2]float64, error) {
	raw, ok := v.lookup(path)
	if !ok {
		return [2]float64{}, &MissingKeyError{Path: path}
	}
	switch vals := raw.(type) {
	case []any:
		if len(vals) != 2 {
			return [2]float64{}, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected 2 elements, got %d", len(vals))}
		}
		lo, ok1 := toFloat64(vals[0])
		hi, ok2 := toFloat64(vals[1])
		if !ok1 || !ok2 {
			return [2]float64{}, &MissingKeyError{Path: path, Reason: "range elements must be numeric"}
		}
		return [2]float64{lo, hi}, nil
	case []float64:
		if len(vals) != 2 {
			return [2]float64{}, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected 2 elements, got %d", len(vals))}
		}
		return [2]float64{vals[0], vals[1]}, nil
	default:
		return [2]float64{}, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected a 2-element list, got %T", raw)}
	}
}

// FloatArray resolves a required list of exactly n numeric values, used
// for the policy's fixed-width normalization statistics (spec §4.4:
// rl.norm_stats.mean / rl.norm_stats.var, one value per observation field).
func (v *View) FloatArray(path string, n int) ([]float64, error) {
	raw, ok := v.lookup(path)
	if !ok {
		return nil, &MissingKeyError{Path: path}
	}
	vals, ok := raw.([]any)
	if !ok {
		return nil, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected a %d-element list, got %T", n, raw)}
	}
	if len(vals) != n {
		return nil, &MissingKeyError{Path: path, Reason: fmt.Sprintf("expected %d elements, got %d", n, len(vals))}
	}
	out := make([]float64, n)
	for i, raw := range vals {
		f, ok := toFloat64(raw)
		if !ok {
			return nil, &MissingKeyError{Path: path, Reason: "array elements must be numeric"}
		}
		out[i] = f
	}
	return out, nil
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
