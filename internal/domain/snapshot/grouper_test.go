package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildViewNavOrder(t *testing.T) {
	doc := mustDecode(t, `{
		"sidebar": {"nav": ["p2", "p1"], "panels": {"p1": {"id": "p1", "name": "Work"}}},
		"tabs": [[
			[{"url": "a", "panelId": "p1"}],
			[{"url": "b", "panelId": "p3"}],
			[{"url": "c", "panelId": "p2"}]
		]]
	}`)

	v := BuildView(doc)

	assert.Equal(t, []string{"p2", "p1", "p3"}, panelIDs(v))
	assert.Equal(t, map[string]any{"id": "p1", "name": "Work"}, v.Panels[1].Meta)
	assert.Equal(t, map[string]any{"id": "p3"}, v.Panels[2].Meta)
}

func TestBuildViewNavEdgeCases(t *testing.T) {
	doc := mustDecode(t, `{
		"sidebar": {"nav": ["ghost", "p2", "p2", 5]},
		"tabs": [[
			[{"url": "a", "panelId": 5}],
			[{"url": "b", "panelId": "p2"}]
		]]
	}`)

	v := BuildView(doc)

	assert.Equal(t, []string{"p2", "5"}, panelIDs(v), "nav ids without groups are skipped and repeats collapse")
}

func TestBuildViewShapes(t *testing.T) {
	doc := mustDecode(t, `{
		"tabs": [
			[
				[{"url": "a1", "panelId": "p1"}, {"url": "a2", "panelId": "p1", "lvl": 1}],
				{"url": "b", "panelId": "p1"},
				[[{"url": "c", "panelId": "p2"}]],
				[],
				"junk",
				[{"url": "d", "panelId": "p1"}]
			],
			[{"url": "e", "panelId": "p2"}, {"url": "f", "panelId": "p2"}],
			{"url": "g", "panelId": "p2"},
			null
		]
	}`)

	v := BuildView(doc)
	require.Equal(t, []string{"p1", "p2"}, panelIDs(v))

	p1 := v.Panels[0]
	require.Len(t, p1.Groups, 3)
	assert.Len(t, p1.Groups[0].Raw, 2)
	assert.Len(t, p1.Groups[0].Tree, 1)
	assert.Len(t, p1.Groups[0].Tree[0].Children, 1)
	assert.Len(t, p1.Groups[1].Raw, 1)
	assert.Len(t, p1.Groups[2].Raw, 1)

	p2 := v.Panels[1]
	require.Len(t, p2.Groups, 4)
	assert.Equal(t, "c", TabOf(p2.Groups[0].Raw[0]).URL)
	assert.Equal(t, "e", TabOf(p2.Groups[1].Raw[0]).URL)
	assert.Equal(t, "f", TabOf(p2.Groups[2].Raw[0]).URL)
	assert.Equal(t, "g", TabOf(p2.Groups[3].Raw[0]).URL)
	assert.Equal(t, 7, v.GroupCount())
}

func TestBuildViewUnknownPanel(t *testing.T) {
	doc := mustDecode(t, `{"tabs": [[[{"url": "a"}, {"url": "b", "panelId": "p1"}]]]}`)

	v := BuildView(doc)

	require.Equal(t, []string{UnknownPanelID}, panelIDs(v))
	assert.Len(t, v.Panels[0].Groups[0].Raw, 2)
}

func TestBuildViewSingleWindowObject(t *testing.T) {
	doc := mustDecode(t, `{"tabs": {"url": "a", "panelId": "p1"}}`)

	v := BuildView(doc)

	assert.Equal(t, []string{"p1"}, panelIDs(v))
}

func TestBuildViewDegrades(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"tabs": null}`,
		`{"tabs": "x"}`,
		`{"tabs": [1, 2, 3]}`,
		`{"tabs": [[["x"], [[]], {}]]}`,
	} {
		v := BuildView(mustDecode(t, raw))
		assert.Empty(t, v.Panels, raw)
		assert.NotNil(t, v.Panels, raw)
		assert.NotNil(t, v.Containers, raw)
		assert.NotNil(t, v.Sidebar, raw)
	}
}

func TestBuildViewCarriesDocumentFields(t *testing.T) {
	doc := mustDecode(t, `{
		"id": "snap-1",
		"time": 1700000000000,
		"containers": {"c1": {"name": "Work", "color": "blue"}},
		"sidebar": {"nav": []},
		"tabs": []
	}`)

	v := BuildView(doc)

	assert.Equal(t, "snap-1", v.ID)
	assert.Equal(t, "1700000000000", v.Time.(interface{ String() string }).String())
	assert.Contains(t, v.Containers, "c1")
	assert.Equal(t, map[string]any{"nav": []any{}}, v.Sidebar)
}

func TestBuildViewDoesNotModifyDocument(t *testing.T) {
	raw := `{"sidebar": {"nav": ["p1"]}, "tabs": [[[{"url": "a", "panelId": "p1", "lvl": 1}]]]}`
	doc := mustDecode(t, raw)

	_ = BuildView(doc)

	assert.Equal(t, mustDecode(t, raw), doc)
}
