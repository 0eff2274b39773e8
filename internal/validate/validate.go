// Package validate implements the structural validator (spec §4.C):
// pure, side-effect-free checks of a configuration tree against a set of
// YANG-derived constraints (types, ranges, patterns, mandatory nodes,
// list keys, unique constraints, leafref targets, when/must
// expressions).
//
// Grounded on pkg/tree/validation_entry_leafref.go (leafref
// target resolution) and pkg/types/validation_result.go (mutex-guarded
// error/warning accumulation into a result object), and on
// pkg/tree/root_entry.go's channel fan-in pattern for collecting
// validation results from a tree walk.
package validate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sdcio/clixon-engine/internal/errs"
	"github.com/sdcio/clixon-engine/internal/xmltree"
)

// LeafConstraint describes the YANG-derived constraints on a single leaf
// schema node, keyed by qualified local name within its parent. A real
// deployment compiles these from a parsed YANG model (out of scope per
// spec §1 — "the YANG parser itself" is a collaborator with a defined,
// opaque interface); here they are supplied directly.
type LeafConstraint struct {
	Mandatory bool
	Pattern   *regexp.Regexp
	Min, Max  *int64 // range constraint, nil means unbounded
	// LeafrefTarget, if set, is a path (relative to the datastore root)
	// that must resolve to an existing leaf with the same value.
	LeafrefTarget string
	// Must names entries in Schema.Must evaluated against this leaf's
	// own siblings (the other children of its parent node).
	Must []string
}

// ListConstraint describes constraints on a YANG list: its declared
// keys, any non-key leaf combinations that must independently be
// unique across entries (YANG "unique", distinct from the key tuple
// itself), and the names of must/when expressions evaluated once per
// entry against that entry's own leaf values.
type ListConstraint struct {
	Keys   []string
	Unique [][]string
	Must   []string
}

// Schema is the minimal constraint set the validator consumes: a map
// from dotted path ("interfaces.interface.mtu") to the constraint that
// applies at every occurrence of that path.
type Schema struct {
	Leaves map[string]*LeafConstraint
	Lists  map[string]*ListConstraint
	// LeafLists names dotted paths whose entries are matched by value
	// rather than position (YANG leaf-list), mirroring Lists' role for
	// ordinary lists. Consumed by Hints for xmltree.Annotate.
	LeafLists map[string]bool
	// Must/When are named boolean expressions evaluated against a node's
	// sibling values; nil or missing names are treated as satisfied. A
	// when expression is, for this validator's purposes, the same kind
	// of check as a must expression — both gate on sibling state — so
	// both attach to LeafConstraint.Must/ListConstraint.Must by name.
	Must map[string]func(siblings map[string]string) bool
}

// Hints projects the schema's list/leaf-list declarations into
// xmltree.SchemaHints, for annotating a tree parsed from an external
// source before it reaches xmltree.Put.
func (s *Schema) Hints() xmltree.SchemaHints {
	keys := make(map[string][]string, len(s.Lists))
	for path, lc := range s.Lists {
		keys[path] = lc.Keys
	}
	return xmltree.SchemaHints{ListKeys: keys, LeafLists: s.LeafLists}
}

// Validate evaluates schema's constraints against t and returns the
// (possibly empty) list of error/warning records (spec §4.C). Validate
// never mutates t.
func Validate(t *xmltree.Tree, schema *Schema) errs.List {
	v := &validator{tree: t, schema: schema, seen: map[string]map[string]bool{}}
	v.walk(t.Root(), "")
	return v.out
}

type validator struct {
	tree   *xmltree.Tree
	schema *Schema
	out    errs.List
	seen   map[string]map[string]bool // path -> key-tuple -> seen, for unique/list-key checks
}

func (v *validator) walk(id xmltree.ID, path string) {
	children := v.tree.Children(id)
	grouped := map[string][]xmltree.ID{}
	for _, c := range children {
		n := v.tree.Node(c)
		grouped[n.Local] = append(grouped[n.Local], c)
	}

	for local, ids := range grouped {
		childPath := joinPath(path, local)
		if lc, ok := v.schema.Lists[childPath]; ok {
			v.checkListKeys(childPath, lc, ids)
			v.checkUnique(childPath, lc, ids)
			for _, entry := range ids {
				v.checkMust(childPath, lc.Must, v.siblingValues(entry))
			}
		}
		for _, c := range ids {
			v.checkLeaf(childPath, id, c)
			v.walk(c, childPath)
		}
	}

	if path != "" {
		v.checkMandatory(path, id)
	}
}

func (v *validator) checkLeaf(path string, parent, id xmltree.ID) {
	lc, ok := v.schema.Leaves[path]
	if !ok {
		return
	}
	n := v.tree.Node(id)
	if len(v.tree.Children(id)) > 0 {
		return // container, not a leaf
	}
	if lc.Pattern != nil && n.Body != "" && !lc.Pattern.MatchString(n.Body) {
		v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagInvalidValue, path,
			fmt.Sprintf("value %q does not match pattern %s", n.Body, lc.Pattern.String())))
	}
	if lc.Min != nil || lc.Max != nil {
		v.checkRange(path, n.Body, lc)
	}
	if lc.LeafrefTarget != "" {
		v.checkLeafref(path, n.Body, lc.LeafrefTarget)
	}
	if len(lc.Must) > 0 {
		v.checkMust(path, lc.Must, v.siblingValues(parent))
	}
}

// siblingValues returns the leaf children of parent as a local-name ->
// body map, the "sibling values" must/when expressions are evaluated
// against.
func (v *validator) siblingValues(parent xmltree.ID) map[string]string {
	out := map[string]string{}
	for _, c := range v.tree.Children(parent) {
		n := v.tree.Node(c)
		if len(v.tree.Children(c)) == 0 {
			out[n.Local] = n.Body
		}
	}
	return out
}

// checkMust evaluates each named expression in names against siblings,
// recording a violation for any that resolves to false. An unknown name
// is treated as satisfied (spec's Schema.Must doc: "nil or missing
// names are treated as satisfied").
func (v *validator) checkMust(path string, names []string, siblings map[string]string) {
	for _, name := range names {
		fn := v.schema.Must[name]
		if fn == nil {
			continue
		}
		if !fn(siblings) {
			v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagOperationFailed, path,
				fmt.Sprintf("must expression %q is not satisfied", name)))
		}
	}
}

// checkUnique enforces YANG "unique": within one list, no two entries
// may share the same combination of values across a declared leaf set,
// distinct from (and evaluated independently of) the key tuple itself.
func (v *validator) checkUnique(path string, lc *ListConstraint, ids []xmltree.ID) {
	for _, leafSet := range lc.Unique {
		seen := map[string]bool{}
		for _, id := range ids {
			tuple := ""
			for _, leaf := range leafSet {
				kid := v.tree.FindChildByQName(id, "", leaf)
				val := ""
				if kid != 0 {
					val = v.tree.Node(kid).Body
				}
				tuple += "\x00" + val
			}
			if seen[tuple] {
				v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagOperationFailed, path,
					fmt.Sprintf("unique constraint on %v violated for the same value combination", leafSet)))
				continue
			}
			seen[tuple] = true
		}
	}
}

func (v *validator) checkRange(path, body string, lc *LeafConstraint) {
	if body == "" {
		return
	}
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagInvalidValue, path,
			fmt.Sprintf("value %q is not a valid integer for a range-constrained leaf", body)))
		return
	}
	if lc.Min != nil && n < *lc.Min {
		v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagInvalidValue, path,
			fmt.Sprintf("value %d is below minimum %d", n, *lc.Min)))
	}
	if lc.Max != nil && n > *lc.Max {
		v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagInvalidValue, path,
			fmt.Sprintf("value %d is above maximum %d", n, *lc.Max)))
	}
}

func (v *validator) checkLeafref(path, value, target string) {
	if value == "" {
		return
	}
	if !v.leafrefResolves(target, value) {
		v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagInvalidValue, path,
			fmt.Sprintf("leafref target %s has no leaf with value %q", target, value)))
	}
}

// leafrefResolves performs a flat scan for any leaf at the target path
// (anywhere in the tree) carrying value. Real leafref resolution would
// respect the path's relative/absolute addressing against the schema
// tree; this is a deliberate simplification of that addressing, not of
// the pass/fail contract.
func (v *validator) leafrefResolves(target, value string) bool {
	found := false
	var scan func(id xmltree.ID, path string)
	scan = func(id xmltree.ID, path string) {
		if found {
			return
		}
		for _, c := range v.tree.Children(id) {
			n := v.tree.Node(c)
			p := joinPath(path, n.Local)
			if p == target && n.Body == value {
				found = true
				return
			}
			scan(c, p)
		}
	}
	scan(v.tree.Root(), "")
	return found
}

func (v *validator) checkListKeys(path string, lc *ListConstraint, ids []xmltree.ID) {
	seen := map[string]bool{}
	for _, id := range ids {
		keyTuple := ""
		for _, k := range lc.Keys {
			kid := v.tree.FindChildByQName(id, "", k)
			val := ""
			if kid != 0 {
				val = v.tree.Node(kid).Body
			}
			keyTuple += "\x00" + val
		}
		if seen[keyTuple] {
			v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagOperationFailed, path,
				"duplicate list entry for the same key tuple"))
			continue
		}
		seen[keyTuple] = true
	}
}

func (v *validator) checkMandatory(path string, id xmltree.ID) {
	for childPath, lc := range v.schema.Leaves {
		if !lc.Mandatory {
			continue
		}
		parentPath, local := splitPath(childPath)
		if parentPath != path {
			continue
		}
		if v.tree.FindChildByQName(id, "", local) == 0 {
			v.out = append(v.out, errs.New(errs.TypeApplication, errs.TagMissingElement, childPath,
				"mandatory leaf is not present"))
		}
	}
}

func joinPath(parent, local string) string {
	if parent == "" {
		return local
	}
	return parent + "." + local
}

func splitPath(path string) (parent, local string) {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}
