package snapshot

import "fmt"

// NodeAddress locates one record the way the view numbers it: the N-th
// group of a panel, then the record's position in that group's raw array.
// Level, when set, must still match the record's level or the address is
// treated as stale.
type NodeAddress struct {
	PanelID      string `json:"panelId"`
	GroupIndex   int    `json:"groupIndex"`
	IndexInGroup int    `json:"indexInGroup"`
	Level        *int   `json:"lvl,omitempty"`
}

func (a NodeAddress) String() string {
	return fmt.Sprintf("%s/%d/%d", a.PanelID, a.GroupIndex, a.IndexInGroup)
}

// DeletePanel removes every group owned by panelID from a copy of doc and
// returns the copy with the number of panels still present. Collections and
// windows emptied by the removal are dropped; ones that were already empty
// are kept as they were.
func DeletePanel(doc Document, panelID string) (Document, int) {
	out := doc.Clone()
	tabs, present := out["tabs"]
	if !present {
		return out, len(BuildView(out).Panels)
	}

	owned := func(v any) bool {
		records := Normalize(v)
		return len(records) > 0 && PanelIDOf(records[0]) == panelID
	}

	windows := windowsOf(tabs)
	kept := make([]any, 0, len(windows))
	for _, w := range windows {
		win, isArray := w.([]any)
		if !isArray {
			if !owned(w) {
				kept = append(kept, w)
			}
			continue
		}

		keptWin := make([]any, 0, len(win))
		for _, c := range win {
			coll, isArray := c.([]any)
			if isArray && Classify(coll) != ShapeGroupOfTabs {
				keptColl := make([]any, 0, len(coll))
				for _, g := range coll {
					if !owned(g) {
						keptColl = append(keptColl, g)
					}
				}
				if len(keptColl) == 0 && len(coll) > 0 {
					continue
				}
				keptWin = append(keptWin, keptColl)
				continue
			}
			if !owned(c) {
				keptWin = append(keptWin, c)
			}
		}
		if len(keptWin) == 0 && len(win) > 0 {
			continue
		}
		kept = append(kept, keptWin)
	}

	out["tabs"] = kept
	return out, len(BuildView(out).Panels)
}

// DeleteNode removes the addressed record from a copy of doc. With subtree
// set, the record's contiguous run of deeper records goes with it.
// Otherwise that run is promoted one level and nothing else changes.
func DeleteNode(doc Document, addr NodeAddress, subtree bool) (Document, error) {
	out := doc.Clone()
	windows := windowsOf(out["tabs"])

	var (
		target groupRef
		found  bool
		seen   int
	)
	walkGroups(windows, func(g groupRef) bool {
		if g.owner != addr.PanelID {
			return true
		}
		if seen == addr.GroupIndex {
			target, found = g, true
			return false
		}
		seen++
		return true
	})
	if !found {
		return nil, &NotFoundError{Kind: "group", ID: fmt.Sprintf("%s/%d", addr.PanelID, addr.GroupIndex)}
	}

	records := target.records
	idx := addr.IndexInGroup
	if idx < 0 || idx >= len(records) {
		return nil, &NotFoundError{Kind: "node", ID: addr.String()}
	}
	level := LevelOf(records[idx])
	if addr.Level != nil && *addr.Level != level {
		return nil, &NotFoundError{Kind: "node", ID: addr.String()}
	}

	end := idx + 1
	for end < len(records) && LevelOf(records[end]) > level {
		end++
	}

	next := make([]any, 0, len(records))
	next = append(next, records[:idx]...)
	if subtree {
		next = append(next, records[end:]...)
	} else {
		for _, rec := range records[idx+1 : end] {
			setLevel(rec, max(0, LevelOf(rec)-1))
			next = append(next, rec)
		}
		next = append(next, records[end:]...)
	}

	target.replace(next)
	if _, isArray := out["tabs"].([]any); !isArray && len(windows) > 0 {
		out["tabs"] = windows
	}
	return out, nil
}
