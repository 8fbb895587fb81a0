package snapshot

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	previewKeys   = []string{"tabs", "windows", "groups", "panels"}
	previewPolicy = bluemonday.StrictPolicy()
)

// PreviewTitle finds a human readable label for a snapshot: the trimmed
// title of the first tab-like object, else its url. Keys that usually hold
// tab lists are searched before the rest, which are visited in sorted order.
// Markup is stripped from the result.
func PreviewTitle(doc Document) string {
	found, _ := previewWalk(map[string]any(doc))
	if found == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(previewPolicy.Sanitize(found)))
}

func previewWalk(node any) (string, bool) {
	switch t := node.(type) {
	case []any:
		for _, item := range t {
			if s, ok := previewWalk(item); ok {
				return s, true
			}
		}
	case map[string]any:
		if title, _ := t["title"].(string); strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title), true
		}
		if url, _ := t["url"].(string); url != "" {
			return url, true
		}
		for _, k := range previewKeys {
			if truthy(t[k]) {
				if s, ok := previewWalk(t[k]); ok {
					return s, true
				}
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := previewWalk(t[k]); ok {
				return s, true
			}
		}
	}
	return "", false
}
