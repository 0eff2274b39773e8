package xmltree

import (
	"encoding/json"
	"sort"
)

// ToJSON projects t into the RESTCONF/ietf-json-friendly representation:
// an object keyed by child local name (the module is not included),
// with keys in sorted order, matching spec §9's "two pure projection
// functions to XML and JSON" design note. Grounded on the shape of
// pkg/tree/json.go (name keys, list entries as arrays, leaves as
// scalars).
func ToJSON(t *Tree) ([]byte, error) {
	return json.Marshal(toJSONValue(t, t.Root()))
}

func toJSONValue(t *Tree, id ID) map[string]any {
	out := map[string]any{}
	children := t.Children(id)

	grouped := map[string][]ID{}
	order := []string{}
	for _, c := range children {
		n := t.Node(c)
		if _, ok := grouped[n.Local]; !ok {
			order = append(order, n.Local)
		}
		grouped[n.Local] = append(grouped[n.Local], c)
	}
	sort.Strings(order)

	for _, name := range order {
		ids := grouped[name]
		first := t.Node(ids[0])
		switch {
		case first.IsLeafListEntry:
			vals := make([]string, 0, len(ids))
			for _, cid := range ids {
				vals = append(vals, t.Node(cid).Body)
			}
			out[name] = vals
		case len(first.Keys) > 0:
			list := make([]any, 0, len(ids))
			for _, cid := range ids {
				list = append(list, jsonEntry(t, cid))
			}
			out[name] = list
		case len(t.Children(ids[0])) == 0:
			out[name] = first.Body
		default:
			out[name] = toJSONValue(t, ids[0])
		}
	}
	return out
}

func jsonEntry(t *Tree, id ID) any {
	if len(t.Children(id)) == 0 {
		return t.Node(id).Body
	}
	return toJSONValue(t, id)
}

// FromJSON parses a RESTCONF-style JSON object into a Tree. Only the
// subset needed to round-trip ToJSON's output is supported: the engine's
// only mandated round-trip target is XML (spec §9); JSON is a write path
// for RESTCONF PUT/POST/PATCH bodies, not a persisted form.
func FromJSON(data []byte) (*Tree, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	t := New()
	buildFromJSON(t, t.Root(), raw)
	return t, nil
}

func buildFromJSON(t *Tree, parent ID, obj map[string]any) {
	for name, v := range obj {
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				addJSONChild(t, parent, name, item)
			}
		default:
			addJSONChild(t, parent, name, v)
		}
	}
}

func addJSONChild(t *Tree, parent ID, name string, v any) {
	id := t.NewChild(parent, "", name)
	n := t.Node(id)
	switch val := v.(type) {
	case map[string]any:
		buildFromJSON(t, id, val)
	case string:
		n.Body = val
	case nil:
		n.Body = ""
	default:
		b, _ := json.Marshal(val)
		n.Body = string(b)
	}
}
