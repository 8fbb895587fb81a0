package snapshot

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, s string) Document {
	t.Helper()
	doc, err := Decode([]byte(s))
	require.NoError(t, err)
	return doc
}

func tab(title string, lvl int) map[string]any {
	return map[string]any{
		"url":     "https://example.com/" + title,
		"title":   title,
		"panelId": "p1",
		"lvl":     json.Number(strconv.Itoa(lvl)),
	}
}

func group(tabs ...map[string]any) []any {
	out := make([]any, len(tabs))
	for i, t := range tabs {
		out[i] = t
	}
	return out
}

func titles(records []any) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = TabOf(r).Title
	}
	return out
}

func levels(records []any) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = LevelOf(r)
	}
	return out
}

func panelIDs(v *View) []string {
	out := make([]string, len(v.Panels))
	for i, p := range v.Panels {
		out[i] = p.ID
	}
	return out
}

// firstGroup returns the raw records of the only group in a one-window,
// one-group document.
func firstGroup(t *testing.T, doc Document) []any {
	t.Helper()
	v := BuildView(doc)
	require.NotEmpty(t, v.Panels)
	require.NotEmpty(t, v.Panels[0].Groups)
	return v.Panels[0].Groups[0].Raw
}
