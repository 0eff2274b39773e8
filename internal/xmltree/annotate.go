package xmltree

// SchemaHints names, by dotted path (local names joined by "."; the
// module is not part of the path), which nodes are YANG list entries (and their key leaf
// names) or leaf-list entries. Parsed/loaded trees carry none of this —
// appendFromXML, buildFromJSON and a persisted file's ParseXML round
// trip only ever see bare element/attribute structure — so Annotate is
// the one place that stamps Node.Keys/Node.IsLeafListEntry onto a tree
// built from an external source, the same identity metadata
// stampListIdentity copies onto hand-built edit trees (spec §4.A: "list
// entries identified by their keys, not position").
type SchemaHints struct {
	ListKeys  map[string][]string
	LeafLists map[string]bool
}

// Empty reports whether hints carries no annotations, letting callers
// skip the walk entirely (e.g. a schema with no lists configured yet).
func (h SchemaHints) Empty() bool {
	return len(h.ListKeys) == 0 && len(h.LeafLists) == 0
}

// Annotate walks t and stamps Keys/IsLeafListEntry on every node whose
// dotted path matches hints. Call this on every tree parsed from an
// external source — internal/rpcsock.Dispatcher.handleEditConfig's
// xmltree.FromElement, internal/restconf's parseBody (FromXML/FromJSON),
// and internal/persist.Store.Load reading a persisted file back into
// memory — before the tree is used as either side of a Put. Without
// this, findMatch's key-matching branch never triggers for externally
// sourced payloads and multi-entry lists are matched by position
// instead of key.
func Annotate(t *Tree, hints SchemaHints) {
	if hints.Empty() {
		return
	}
	var walk func(id ID, path string)
	walk = func(id ID, path string) {
		for _, c := range t.Children(id) {
			n := t.Node(c)
			childPath := annotatePath(path, n.Local)
			if keys, ok := hints.ListKeys[childPath]; ok {
				n.Keys = append([]string(nil), keys...)
			}
			if hints.LeafLists[childPath] {
				n.IsLeafListEntry = true
			}
			walk(c, childPath)
		}
	}
	walk(t.Root(), "")
}

func annotatePath(parent, local string) string {
	if parent == "" {
		return local
	}
	return parent + "." + local
}
