package client

import (
	"encoding/json"
	"strings"
)

// ExtractField walks a JSON document along a dot path and returns every
// value found. A "#" segment fans out over array elements, so
// "data.#.id" collects the id of each element under data. Missing
// segments yield no values rather than an error; load traffic should
// not stop because one response had an unexpected shape.
func ExtractField(body []byte, fieldPath string) []any {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	return walkPath(doc, strings.Split(fieldPath, "."))
}

func walkPath(node any, segments []string) []any {
	if len(segments) == 0 {
		if node == nil {
			return nil
		}
		return []any{node}
	}

	seg, rest := segments[0], segments[1:]
	switch v := node.(type) {
	case map[string]any:
		child, ok := v[seg]
		if !ok {
			return nil
		}
		return walkPath(child, rest)
	case []any:
		if seg != "#" {
			return nil
		}
		var out []any
		for _, elem := range v {
			out = append(out, walkPath(elem, rest)...)
		}
		return out
	default:
		return nil
	}
}
