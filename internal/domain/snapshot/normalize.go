package snapshot

import (
	"encoding/json"
	"math"
	"strconv"
)

// Shape is the classified form of an ambiguous group value.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeTab
	ShapeGroupOfTabs
	ShapeListOfGroups
)

func (s Shape) String() string {
	switch s {
	case ShapeTab:
		return "tab"
	case ShapeGroupOfTabs:
		return "group_of_tabs"
	case ShapeListOfGroups:
		return "list_of_groups"
	default:
		return "empty"
	}
}

// Classify probes a value the way the export format nests it. The same
// first-element test decides windows, panel-group collections and groups.
func Classify(v any) Shape {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return ShapeEmpty
		}
		switch t[0].(type) {
		case map[string]any:
			return ShapeGroupOfTabs
		case []any:
			return ShapeListOfGroups
		}
		return ShapeEmpty
	case map[string]any:
		if _, ok := t["url"]; ok {
			return ShapeTab
		}
	}
	return ShapeEmpty
}

// Normalize returns the ordered tab records of one group. It never fails;
// unrecognised shapes yield an empty group.
func Normalize(v any) []any {
	switch Classify(v) {
	case ShapeGroupOfTabs:
		return v.([]any)
	case ShapeTab:
		return []any{v}
	case ShapeListOfGroups:
		return v.([]any)[0].([]any)
	}
	return nil
}

// Tab is a read-only view over one raw tab record.
type Tab struct {
	URL         string
	Title       string
	PanelID     string
	ContainerID string
	Level       int
	Folded      bool
}

// TabOf reads the known fields of a record. Non-object records read as a
// zero Tab owned by the unknown panel.
func TabOf(rec any) Tab {
	m, _ := rec.(map[string]any)
	t := Tab{
		PanelID: PanelIDOf(rec),
		Level:   LevelOf(rec),
	}
	t.URL, _ = m["url"].(string)
	t.Title, _ = m["title"].(string)
	if c, ok := m["containerId"]; ok && c != nil {
		t.ContainerID = stringify(c)
	}
	t.Folded, _ = m["folded"].(bool)
	return t
}

// LevelOf returns the record's indentation depth: 0 when lvl is absent or
// not a number, negatives clamped to 0, fractions truncated.
func LevelOf(rec any) int {
	m, ok := rec.(map[string]any)
	if !ok {
		return 0
	}
	var f float64
	switch n := m["lvl"].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			f = float64(i)
			break
		}
		v, err := n.Float64()
		if err != nil {
			return 0
		}
		f = v
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0
	}
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// PanelIDOf returns the record's owning panel id, or UnknownPanelID.
func PanelIDOf(rec any) string {
	m, ok := rec.(map[string]any)
	if !ok {
		return UnknownPanelID
	}
	v, ok := m["panelId"]
	if !ok || v == nil {
		return UnknownPanelID
	}
	return stringify(v)
}

func setLevel(rec any, lvl int) {
	if m, ok := rec.(map[string]any); ok {
		m["lvl"] = json.Number(strconv.Itoa(lvl))
	}
}
