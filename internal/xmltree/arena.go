package xmltree

// Tree holds one datastore's configuration content: an arena of nodes
// plus the handle of its root. The root itself is a synthetic container
// with Local "" that is never serialized directly — its children are
// the top-level configuration elements.
type Tree struct {
	nodes  map[ID]*Node
	nextID ID
	root   ID
	// generation increments on every structural mutation. Copy() stamps
	// the clone with the parent's generation at copy time; it is
	// exposed for callers (the transaction engine) that want a cheap
	// "has anything changed since I last looked" check without diffing.
	generation uint64
}

// New returns an empty Tree: a root node with no children.
func New() *Tree {
	t := &Tree{nodes: map[ID]*Node{}}
	t.root = t.alloc(&Node{Module: "", Local: ""})
	return t
}

func (t *Tree) alloc(n *Node) ID {
	t.nextID++
	n.id = t.nextID
	t.nodes[n.id] = n
	return n.id
}

// Root returns the handle of the synthetic root node.
func (t *Tree) Root() ID { return t.root }

// Generation returns the current mutation counter.
func (t *Tree) Generation() uint64 { return t.generation }

// Node looks up a node by handle. It returns nil if the handle does not
// resolve (already orphaned or foreign to this arena).
func (t *Tree) Node(id ID) *Node { return t.nodes[id] }

// Children returns the ordered child handles of id.
func (t *Tree) Children(id ID) []ID {
	n := t.nodes[id]
	if n == nil {
		return nil
	}
	return n.children
}

// Parent returns the parent handle of id, or 0 if id is the root or
// unknown.
func (t *Tree) Parent(id ID) ID {
	n := t.nodes[id]
	if n == nil {
		return 0
	}
	return n.parent
}

// IsEmpty reports whether the tree has no top-level children — the
// "empty" lifecycle state of spec §3.
func (t *Tree) IsEmpty() bool {
	root := t.nodes[t.root]
	return root == nil || len(root.children) == 0
}

// NewChild allocates a new node under parent and appends it to parent's
// ordered child list. It does not check for an existing sibling with the
// same qualified name/keys — callers that need merge semantics use Put.
func (t *Tree) NewChild(parent ID, module, local string) ID {
	p := t.nodes[parent]
	child := &Node{Module: module, Local: local, parent: parent}
	id := t.alloc(child)
	p.children = append(p.children, id)
	t.generation++
	return id
}

// DetachChild removes id from its parent's child list. The node and its
// descendants remain addressable in the arena map (bulk reclaim only
// happens when the whole Tree is discarded) but are no longer reachable
// from Root.
func (t *Tree) DetachChild(id ID) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	p := t.nodes[n.parent]
	if p == nil {
		return
	}
	out := p.children[:0]
	for _, c := range p.children {
		if c != id {
			out = append(out, c)
		}
	}
	p.children = out
	t.generation++
}

// Copy returns a deep, independent clone of the tree: a fresh arena with
// newly allocated handles but identical structure and content. This is
// the primitive behind datastore copy(src, dst) (spec §4.A) and behind
// candidate/original snapshotting in the transaction engine (spec §4.E).
func (t *Tree) Copy() *Tree {
	clone := &Tree{nodes: map[ID]*Node{}, generation: t.generation}
	var walk func(srcID ID, dstParent ID) ID
	walk = func(srcID ID, dstParent ID) ID {
		src := t.nodes[srcID]
		dup := &Node{
			Module:          src.Module,
			Local:           src.Local,
			Body:            src.Body,
			Keys:            append([]string(nil), src.Keys...),
			IsLeafListEntry: src.IsLeafListEntry,
			parent:          dstParent,
		}
		if src.Attrs != nil {
			dup.Attrs = make(map[string]string, len(src.Attrs))
			for k, v := range src.Attrs {
				dup.Attrs[k] = v
			}
		}
		id := clone.alloc(dup)
		for _, c := range src.children {
			cid := walk(c, id)
			dup.children = append(dup.children, cid)
		}
		return id
	}
	clone.root = walk(t.root, 0)
	clone.nodes[clone.root].parent = 0
	return clone
}

// FindChildByQName returns the first child of parent whose module/local
// name matches, or 0 if none does.
func (t *Tree) FindChildByQName(parent ID, module, local string) ID {
	for _, c := range t.Children(parent) {
		n := t.nodes[c]
		if n.Local == local && (module == "" || n.Module == module) {
			return c
		}
	}
	return 0
}

// FindListEntry returns the child of parent that is a list entry named
// local whose key child values match keyValues (ordered the same as the
// node's Keys once established), or 0 if no such entry exists.
func (t *Tree) FindListEntry(parent ID, local string, keyValues map[string]string) ID {
	for _, c := range t.Children(parent) {
		n := t.nodes[c]
		if n.Local != local || len(n.Keys) == 0 {
			continue
		}
		if t.matchesKeys(c, keyValues) {
			return c
		}
	}
	return 0
}

func (t *Tree) matchesKeys(entry ID, keyValues map[string]string) bool {
	n := t.nodes[entry]
	for _, k := range n.Keys {
		kid := t.FindChildByQName(entry, "", k)
		if kid == 0 {
			return false
		}
		if t.nodes[kid].Body != keyValues[k] {
			return false
		}
	}
	return true
}

// FindLeafListEntry returns the child of parent that is a leaf-list
// entry named local with the given body value, or 0.
func (t *Tree) FindLeafListEntry(parent ID, local, value string) ID {
	for _, c := range t.Children(parent) {
		n := t.nodes[c]
		if n.Local == local && n.IsLeafListEntry && n.Body == value {
			return c
		}
	}
	return 0
}
