package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outlineDoc = `{
	"id": "s1",
	"tabs": [[[
		{"title": "a", "url": "a", "panelId": "p1", "lvl": 0, "extra": {"k": 1}},
		{"title": "b", "url": "b", "panelId": "p1", "lvl": 1, "folded": true},
		{"title": "c", "url": "c", "panelId": "p1", "lvl": 1},
		{"title": "d", "url": "d", "panelId": "p1", "lvl": 0}
	]]]
}`

func intPtr(i int) *int { return &i }

func TestDeleteNodePromote(t *testing.T) {
	doc := mustDecode(t, outlineDoc)

	out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 0, Level: intPtr(0)}, false)
	require.NoError(t, err)

	raw := firstGroup(t, out)
	assert.Equal(t, []string{"b", "c", "d"}, titles(raw))
	assert.Equal(t, []int{0, 0, 0}, levels(raw))
	assert.Equal(t, true, raw[0].(map[string]any)["folded"], "only lvl changes on promoted records")

	// Input is untouched.
	assert.Equal(t, []string{"a", "b", "c", "d"}, titles(firstGroup(t, doc)))
}

func TestDeleteNodeSubtree(t *testing.T) {
	doc := mustDecode(t, outlineDoc)

	out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 0}, true)
	require.NoError(t, err)

	raw := firstGroup(t, out)
	assert.Equal(t, []string{"d"}, titles(raw))
	assert.Equal(t, []int{0}, levels(raw))
}

func TestDeleteNodeLeaf(t *testing.T) {
	doc := mustDecode(t, outlineDoc)

	for _, subtree := range []bool{true, false} {
		out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 1}, subtree)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "d"}, titles(firstGroup(t, out)))
		assert.Equal(t, []int{0, 1, 0}, levels(firstGroup(t, out)))
	}
}

func TestDeleteNodeRunStopsAtShallowerRecord(t *testing.T) {
	doc := Document{"tabs": []any{[]any{group(
		tab("a", 0), tab("b", 1), tab("c", 2), tab("d", 3), tab("e", 1), tab("f", 2), tab("g", 0),
	)}}}

	promoted, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 1}, false)
	require.NoError(t, err)
	raw := firstGroup(t, promoted)
	assert.Equal(t, []string{"a", "c", "d", "e", "f", "g"}, titles(raw))
	assert.Equal(t, []int{0, 1, 2, 1, 2, 0}, levels(raw))

	pruned, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 1}, true)
	require.NoError(t, err)
	raw = firstGroup(t, pruned)
	assert.Equal(t, []string{"a", "e", "f", "g"}, titles(raw))
	assert.Equal(t, []int{0, 1, 2, 0}, levels(raw))
}

func TestDeleteNodeGroupIndex(t *testing.T) {
	doc := mustDecode(t, `{"tabs": [
		[[{"url": "a", "panelId": "p1"}], [{"url": "x", "panelId": "p2"}]],
		[[{"url": "b", "panelId": "p1"}, {"url": "c", "panelId": "p1"}]]
	]}`)

	out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", GroupIndex: 1, IndexInGroup: 1}, false)
	require.NoError(t, err)

	p1, ok := BuildView(out).Panel("p1")
	require.True(t, ok)
	require.Len(t, p1.Groups, 2)
	assert.Len(t, p1.Groups[0].Raw, 1)
	assert.Equal(t, "b", TabOf(p1.Groups[1].Raw[0]).URL)
	assert.Len(t, p1.Groups[1].Raw, 1)
}

func TestDeleteNodeShapesWriteBack(t *testing.T) {
	t.Run("list of groups keeps its wrapping", func(t *testing.T) {
		doc := mustDecode(t, `{"tabs": [[[[[{"url": "a", "panelId": "p1"}, {"url": "b", "panelId": "p1"}]]]]]}`)
		out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 0}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, []string{TabOf(firstGroup(t, out)[0]).URL})
		assert.Equal(t, ShapeListOfGroups, Classify(out["tabs"].([]any)[0].([]any)[0].([]any)[0]))
	})

	t.Run("single tab window is emptied", func(t *testing.T) {
		doc := mustDecode(t, `{"tabs": {"url": "a", "panelId": "p1"}}`)
		out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: 0}, false)
		require.NoError(t, err)
		assert.Empty(t, BuildView(out).Panels)
		assert.IsType(t, []any{}, out["tabs"])
	})
}

func TestDeleteNodeNotFound(t *testing.T) {
	doc := mustDecode(t, outlineDoc)

	tests := []struct {
		name string
		addr NodeAddress
	}{
		{"unknown panel", NodeAddress{PanelID: "nope"}},
		{"group index past end", NodeAddress{PanelID: "p1", GroupIndex: 1}},
		{"negative index", NodeAddress{PanelID: "p1", IndexInGroup: -1}},
		{"index past end", NodeAddress{PanelID: "p1", IndexInGroup: 4}},
		{"stale level", NodeAddress{PanelID: "p1", IndexInGroup: 1, Level: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeleteNode(doc, tt.addr, true)
			require.Error(t, err)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestDeleteNodeSubtreeRemovesExactSpan(t *testing.T) {
	doc := Document{"tabs": []any{[]any{group(
		tab("r", 0), tab("a", 1), tab("a1", 2), tab("a2", 2), tab("b", 1), tab("s", 0),
	)}}}
	before := firstGroup(t, doc)
	forest := BuildTree(before)

	target := forest[0].Children[0]
	descendants := 0
	Walk(target.Children, func(*TreeNode, int) bool { descendants++; return true })

	out, err := DeleteNode(doc, NodeAddress{PanelID: "p1", IndexInGroup: target.IndexInGroup}, true)
	require.NoError(t, err)

	after := firstGroup(t, out)
	assert.Len(t, after, len(before)-1-descendants)
	assert.Equal(t, []int{0, 1, 0}, levels(after))
}

func TestDeletePanel(t *testing.T) {
	doc := mustDecode(t, `{
		"id": "s1",
		"tabs": [
			[
				[[{"url": "a", "panelId": "p1"}], [{"url": "b", "panelId": "p2"}]],
				[[{"url": "c", "panelId": "p1"}]],
				[{"url": "d", "panelId": "p2"}],
				[]
			],
			[[[{"url": "e", "panelId": "p1"}]]],
			{"url": "f", "panelId": "p1"},
			{"url": "g", "panelId": "p2"}
		]
	}`)

	out, remaining := DeletePanel(doc, "p1")

	assert.Equal(t, 1, remaining)
	v := BuildView(out)
	require.Equal(t, []string{"p2"}, panelIDs(v))
	assert.Len(t, v.Panels[0].Groups, 3)

	windows := out["tabs"].([]any)
	require.Len(t, windows, 2, "windows emptied by the removal are dropped")
	first := windows[0].([]any)
	require.Len(t, first, 3, "emptied collection dropped, empty one kept")
	assert.Len(t, first[0].([]any), 1)
	assert.Equal(t, []any{}, first[2])

	// Input is untouched.
	assert.Len(t, BuildView(doc).Panels, 2)
}

func TestDeletePanelLast(t *testing.T) {
	doc := mustDecode(t, outlineDoc)

	out, remaining := DeletePanel(doc, "p1")

	assert.Equal(t, 0, remaining)
	assert.Empty(t, out["tabs"])
}

func TestDeletePanelUnknownAndAbsentTabs(t *testing.T) {
	doc := mustDecode(t, outlineDoc)
	out, remaining := DeletePanel(doc, "nope")
	assert.Equal(t, 1, remaining)
	assert.Equal(t, doc, out)

	bare := mustDecode(t, `{"id": "x"}`)
	out, remaining = DeletePanel(bare, "p1")
	assert.Equal(t, 0, remaining)
	assert.NotContains(t, out, "tabs")
}

func TestDeletePanelUnknownSentinel(t *testing.T) {
	doc := mustDecode(t, `{"tabs": [[[{"url": "a"}], [{"url": "b", "panelId": "p1"}]]]}`)

	out, remaining := DeletePanel(doc, UnknownPanelID)

	assert.Equal(t, 1, remaining)
	assert.Equal(t, []string{"p1"}, panelIDs(BuildView(out)))
}
