package snapshot

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// UnknownPanelID owns groups whose first record carries no panelId.
const UnknownPanelID = "__unknown__"

// codec decodes numbers as json.Number so ids, timestamps and opaque
// numeric fields survive a round trip without float rounding.
var codec = sonic.Config{
	UseNumber:        true,
	EscapeHTML:       false,
	CompactMarshaler: true,
	ValidateString:   true,
}.Froze()

// Document is a decoded snapshot. Unknown fields are kept as decoded and
// written back untouched.
type Document map[string]any

// Decode parses a snapshot document. Anything other than a JSON object is
// rejected as malformed input.
func Decode(data []byte) (Document, error) {
	var v any
	if err := codec.Unmarshal(data, &v); err != nil {
		return nil, &MalformedInputError{Reason: "invalid JSON", Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &MalformedInputError{Reason: "snapshot must be a JSON object"}
	}
	return Document(obj), nil
}

// Encode serializes a document for storage.
func Encode(doc Document) ([]byte, error) {
	data, err := codec.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// ID returns the document's own id when it carries a usable one.
func (d Document) ID() (string, bool) {
	switch v := d["id"].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// Time returns the document's capture time in unix milliseconds.
func (d Document) Time() (int64, bool) {
	n, ok := d["time"].(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// Sidebar returns the sidebar object, or nil.
func (d Document) Sidebar() map[string]any {
	sb, _ := d["sidebar"].(map[string]any)
	return sb
}

// Nav returns the navigation ordering of panel ids.
func (d Document) Nav() []string {
	list, _ := d.Sidebar()["nav"].([]any)
	nav := make([]string, 0, len(list))
	for _, v := range list {
		if v == nil {
			continue
		}
		nav = append(nav, stringify(v))
	}
	return nav
}

// PanelMeta returns the metadata stored for a panel id, defaulting to {"id": id}.
func (d Document) PanelMeta(id string) any {
	panels, _ := d.Sidebar()["panels"].(map[string]any)
	if meta, ok := panels[id]; ok && meta != nil {
		return meta
	}
	return map[string]any{"id": id}
}

// Containers returns the container map, never nil.
func (d Document) Containers() map[string]any {
	if c, ok := d["containers"].(map[string]any); ok {
		return c
	}
	return map[string]any{}
}

// Clone returns a deep copy. Mutators work on clones so callers keep the
// document they passed in.
func (d Document) Clone() Document {
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}

// NowMillis is the fallback capture time for documents without one.
func NowMillis(now time.Time) int64 {
	return now.UnixMilli()
}

// stringify renders a scalar the way the export format's consumers do:
// numbers keep their literal form, strings pass through.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
