package schema

import (
	"strings"
)

// Accessor reads the value at a dotted path inside a payload.
// It is compiled once per IndexSpec when a soup is loaded.
type Accessor struct {
	path     string
	segments []string
}

// NewAccessor compiles a dotted path such as "Account.Owner.Name".
func NewAccessor(path string) *Accessor {
	return &Accessor{
		path:     path,
		segments: strings.Split(path, "."),
	}
}

// Path returns the dotted path the accessor was compiled from.
func (a *Accessor) Path() string {
	return a.path
}

// Project returns the value at the accessor's path, or nil when any segment is missing.
// Arrays met on the way are traversed element-wise and yield an array of projections.
func (a *Accessor) Project(payload map[string]interface{}) interface{} {
	if payload == nil {
		return nil
	}
	return project(payload, a.segments)
}

// Project is a convenience wrapper for one-off lookups.
func Project(payload map[string]interface{}, path string) interface{} {
	return NewAccessor(path).Project(payload)
}

func project(value interface{}, segments []string) interface{} {
	if len(segments) == 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]interface{}:
		next, ok := v[segments[0]]
		if !ok {
			return nil
		}
		return project(next, segments[1:])
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, elem := range v {
			if p := project(elem, segments); p != nil {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
