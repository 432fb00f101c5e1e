package billing

import (
	"strings"
	"time"
)

// Document is a decoded JSON payload fragment. Providers disagree about
// where the same logical value lives, so adapters and cycle strategies
// probe an ordered list of candidate paths instead of optional-chaining
// into one hardcoded location.
type Document map[string]any

// String returns the first non-empty string found at any of the candidate
// dot-separated paths, in order.
func (d Document) String(paths ...string) string {
	for _, path := range paths {
		if v, ok := d.lookup(path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Time returns the first value at the candidate paths that parses as an
// RFC 3339 instant.
func (d Document) Time(paths ...string) *time.Time {
	for _, path := range paths {
		v, ok := d.lookup(path)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

// Map returns the nested object at the given path, if present.
func (d Document) Map(path string) (Document, bool) {
	v, ok := d.lookup(path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return Document(m), true
}

func (d Document) lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for part := range strings.SplitSeq(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
