package xmltree

import "github.com/sdcio/clixon-engine/internal/errs"

// Put applies an edit-config style operation to dst, merging the
// top-level children of edit into dst's root under op, honoring any
// per-node DefaultOp annotation set on nodes within edit (spec §3/§4.A).
//
// Semantics follow NETCONF edit-config: merge recursively unions,
// replace wholly replaces the matched subtree, create/delete fail on
// existence mismatch, remove is delete-without-error, none is a
// structural placeholder that only affects descent.
func Put(dst *Tree, op EditOp, edit *Tree, user string) errs.List {
	var out errs.List
	for _, c := range edit.Children(edit.Root()) {
		if err := mergeNode(dst, dst.Root(), edit, c, op); err != nil {
			out = append(out, err)
		}
	}
	return out
}

func mergeNode(dst *Tree, dstParent ID, src *Tree, srcID ID, op EditOp) *errs.Record {
	srcNode := src.Node(srcID)
	effectiveOp := op
	if srcNode.DefaultOp != "" {
		effectiveOp = srcNode.DefaultOp
	}

	existing := findMatch(dst, dstParent, src, srcID)

	switch effectiveOp {
	case OpCreate:
		if existing != 0 {
			return errs.New(errs.TypeApplication, errs.TagDataExists, srcNode.QName(), "node already exists")
		}
		copySubtreeInto(dst, dstParent, src, srcID)
		return nil

	case OpDelete:
		if existing == 0 {
			return errs.New(errs.TypeApplication, errs.TagDataMissing, srcNode.QName(), "node does not exist")
		}
		dst.DetachChild(existing)
		return nil

	case OpRemove:
		if existing != 0 {
			dst.DetachChild(existing)
		}
		return nil

	case OpReplace:
		if existing != 0 {
			dst.DetachChild(existing)
		}
		copySubtreeInto(dst, dstParent, src, srcID)
		return nil

	case OpNone:
		if existing == 0 {
			existing = dst.NewChild(dstParent, srcNode.Module, srcNode.Local)
			stampListIdentity(dst.Node(existing), srcNode)
		}
		for _, c := range src.Children(srcID) {
			if err := mergeNode(dst, existing, src, c, OpNone); err != nil {
				return err
			}
		}
		return nil

	default: // merge
		if existing == 0 {
			existing = dst.NewChild(dstParent, srcNode.Module, srcNode.Local)
		}
		dstNode := dst.Node(existing)
		stampListIdentity(dstNode, srcNode)
		if len(src.Children(srcID)) == 0 {
			dstNode.Body = srcNode.Body
		}
		mergeAttrs(dstNode, srcNode)
		for _, c := range src.Children(srcID) {
			if err := mergeNode(dst, existing, src, c, OpMerge); err != nil {
				return err
			}
		}
		return nil
	}
}

func stampListIdentity(dstNode, srcNode *Node) {
	dstNode.Keys = append([]string(nil), srcNode.Keys...)
	dstNode.IsLeafListEntry = srcNode.IsLeafListEntry
}

func mergeAttrs(dstNode, srcNode *Node) {
	if srcNode.Attrs == nil {
		return
	}
	if dstNode.Attrs == nil {
		dstNode.Attrs = make(map[string]string, len(srcNode.Attrs))
	}
	for k, v := range srcNode.Attrs {
		dstNode.Attrs[k] = v
	}
}

// findMatch locates the dst child that corresponds to srcNode: by key
// values for list entries, by value for leaf-list entries, otherwise by
// qualified name (spec §4.A: "list entries identified by their keys, not
// position; leaf-lists by value").
func findMatch(dst *Tree, dstParent ID, src *Tree, srcID ID) ID {
	srcNode := src.Node(srcID)
	switch {
	case srcNode.IsLeafListEntry:
		return dst.FindLeafListEntry(dstParent, srcNode.Local, srcNode.Body)
	case len(srcNode.Keys) > 0:
		keyValues := make(map[string]string, len(srcNode.Keys))
		for _, k := range srcNode.Keys {
			if kid := src.FindChildByQName(srcID, "", k); kid != 0 {
				keyValues[k] = src.Node(kid).Body
			}
		}
		return dst.FindListEntry(dstParent, srcNode.Local, keyValues)
	default:
		return dst.FindChildByQName(dstParent, srcNode.Module, srcNode.Local)
	}
}

// copySubtreeInto deep-copies the subtree rooted at srcID (from src)
// into dst as a new child of dstParent, returning the new root handle.
func copySubtreeInto(dst *Tree, dstParent ID, src *Tree, srcID ID) ID {
	srcNode := src.Node(srcID)
	id := dst.NewChild(dstParent, srcNode.Module, srcNode.Local)
	dn := dst.Node(id)
	dn.Body = srcNode.Body
	stampListIdentity(dn, srcNode)
	mergeAttrs(dn, srcNode)
	for _, c := range src.Children(srcID) {
		copySubtreeInto(dst, id, src, c)
	}
	return id
}
