// Package xmltree implements the in-memory, schema-typed configuration
// tree described in spec §3/§4.A: an arena of nodes addressed by integer
// handle, with parent/child relations kept as index edges rather than
// pointers. Deletion is bulk-reclaim at datastore scope — individual
// edits leave orphaned nodes in the arena map rather than freeing them,
// which avoids lifetime bugs. A whole-tree snapshot (Copy) is a full
// deep copy of the reachable nodes, not copy-on-write.
package xmltree

import "fmt"

// ID addresses a Node within a Tree's arena. The zero value is never a
// valid node.
type ID uint64

// EditOp is the NETCONF edit-config default-operation annotation carried
// transiently on a node during edit composition (spec §3).
type EditOp string

const (
	OpMerge   EditOp = "merge"
	OpReplace EditOp = "replace"
	OpCreate  EditOp = "create"
	OpDelete  EditOp = "delete"
	OpRemove  EditOp = "remove"
	OpNone    EditOp = "none"
)

// Node is a qualified-name element with an optional textual body,
// ordered children, and keyed attributes.
type Node struct {
	id     ID
	parent ID

	Module string
	Local  string
	Body   string
	Attrs  map[string]string

	// Keys names the child leaves that identify this node within its
	// siblings when it is a YANG list entry. Empty for containers,
	// leaves, and leaf-list entries (the latter are identified by
	// Body value instead, see IsLeafListEntry).
	Keys []string
	// IsLeafListEntry marks a node as a leaf-list value entry, matched
	// by Body rather than by Keys.
	IsLeafListEntry bool

	// DefaultOp is the edit-config operation in force for this node
	// during a single put() call. It is never persisted.
	DefaultOp EditOp

	children []ID
}

// ID returns the node's arena handle.
func (n *Node) ID() ID { return n.id }

// QName returns the module-qualified name, e.g. "ietf-interfaces:interface".
func (n *Node) QName() string {
	if n.Module == "" {
		return n.Local
	}
	return n.Module + ":" + n.Local
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(id=%d)", n.QName(), n.id)
}
