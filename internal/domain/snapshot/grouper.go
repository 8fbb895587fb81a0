package snapshot

// View is the derived, read-only projection of a snapshot document.
type View struct {
	ID         any            `json:"id,omitempty"`
	Time       any            `json:"time,omitempty"`
	Containers map[string]any `json:"containers"`
	Sidebar    any            `json:"sidebar"`
	Panels     []Panel        `json:"panels"`
}

// Panel is a named bucket of groups.
type Panel struct {
	ID     string  `json:"id"`
	Meta   any     `json:"meta"`
	Groups []Group `json:"groups"`
}

// Group pairs the raw records with the forest built from them.
type Group struct {
	Raw  []any       `json:"raw"`
	Tree []*TreeNode `json:"tree"`
}

// GroupCount returns the number of groups across all panels.
func (v *View) GroupCount() int {
	n := 0
	for _, p := range v.Panels {
		n += len(p.Groups)
	}
	return n
}

// Panel returns the panel with the given id.
func (v *View) Panel(id string) (*Panel, bool) {
	for i := range v.Panels {
		if v.Panels[i].ID == id {
			return &v.Panels[i], true
		}
	}
	return nil, false
}

// BuildView derives the panel view of a document. Unrecognised shapes are
// skipped, so a document with no usable tabs yields zero panels.
func BuildView(doc Document) *View {
	buckets := make(map[string]*Panel)
	discovered := make([]string, 0)

	walkGroups(windowsOf(doc["tabs"]), func(g groupRef) bool {
		p, ok := buckets[g.owner]
		if !ok {
			p = &Panel{ID: g.owner, Meta: doc.PanelMeta(g.owner), Groups: make([]Group, 0, 1)}
			buckets[g.owner] = p
			discovered = append(discovered, g.owner)
		}
		p.Groups = append(p.Groups, Group{Raw: g.records, Tree: BuildTree(g.records)})
		return true
	})

	panels := make([]Panel, 0, len(discovered))
	placed := make(map[string]bool, len(discovered))
	for _, id := range doc.Nav() {
		if p, ok := buckets[id]; ok && !placed[id] {
			panels = append(panels, *p)
			placed[id] = true
		}
	}
	for _, id := range discovered {
		if !placed[id] {
			panels = append(panels, *buckets[id])
			placed[id] = true
		}
	}

	view := &View{
		ID:         doc["id"],
		Time:       doc["time"],
		Containers: doc.Containers(),
		Sidebar:    doc["sidebar"],
		Panels:     panels,
	}
	if view.Sidebar == nil {
		view.Sidebar = map[string]any{}
	}
	return view
}

// windowsOf reads the top-level tabs value as a list of windows. A single
// non-array value is one window.
func windowsOf(tabs any) []any {
	switch t := tabs.(type) {
	case []any:
		return t
	case nil:
		return nil
	}
	if truthy(tabs) {
		return []any{tabs}
	}
	return nil
}

// slot addresses one element of a raw array so a group can be written back
// in place.
type slot struct {
	parent []any
	index  int
}

func (s slot) get() any { return s.parent[s.index] }

// groupRef is one non-empty group found while walking the document.
type groupRef struct {
	slot
	shape   Shape
	records []any
	owner   string
}

// replace writes new records back into the slot, keeping the slot's shape.
func (g groupRef) replace(records []any) {
	switch g.shape {
	case ShapeGroupOfTabs:
		g.parent[g.index] = records
	case ShapeTab:
		if len(records) == 1 {
			g.parent[g.index] = records[0]
		} else {
			g.parent[g.index] = records
		}
	case ShapeListOfGroups:
		g.get().([]any)[0] = records
	}
}

// walkGroups visits every non-empty group in document order: windows, then
// panel-group collections, then groups. Returning false stops the walk.
func walkGroups(windows []any, fn func(groupRef) bool) {
	for wi := range windows {
		win, isArray := windows[wi].([]any)
		if !isArray {
			if !visitSlot(slot{parent: windows, index: wi}, fn) {
				return
			}
			continue
		}
		for ci := range win {
			coll, isArray := win[ci].([]any)
			if isArray && Classify(coll) != ShapeGroupOfTabs {
				for gi := range coll {
					if !visitSlot(slot{parent: coll, index: gi}, fn) {
						return
					}
				}
				continue
			}
			if !visitSlot(slot{parent: win, index: ci}, fn) {
				return
			}
		}
	}
}

func visitSlot(s slot, fn func(groupRef) bool) bool {
	v := s.get()
	records := Normalize(v)
	if len(records) == 0 {
		return true
	}
	return fn(groupRef{
		slot:    s,
		shape:   Classify(v),
		records: records,
		owner:   PanelIDOf(records[0]),
	})
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	if n, ok := v.(interface{ Float64() (float64, error) }); ok {
		f, err := n.Float64()
		return err != nil || f != 0
	}
	return true
}
