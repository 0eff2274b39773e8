package xmltree

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ToXML projects t into an etree.Document whose root element is
// <config>, matching the persisted-file layout of spec §6 ("a <config>
// root with schema-valid children"). Grounded on
// sharedEntryAttributes.ToXML / netconf.XMLConfigBuilder.fastForward.
func ToXML(t *Tree) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("config")
	for _, c := range t.Children(t.Root()) {
		appendXML(root, t, c)
	}
	return doc
}

// AppendChildren appends copies of t's top-level children directly
// under parent, without the <config> wrapper ToXML always adds. Used by
// the RPC dispatcher to embed a Get result under an <rpc-reply>'s
// <data> element (spec §6's "<rpc-reply> with ... one or more
// elements").
func AppendChildren(parent *etree.Element, t *Tree) {
	for _, c := range t.Children(t.Root()) {
		appendXML(parent, t, c)
	}
}

// FromElement parses el's children into a fresh Tree the same way
// FromXML parses a document root's children, for embedding an
// already-parsed <rpc> payload element directly without a surrounding
// document.
func FromElement(el *etree.Element) *Tree {
	t := New()
	if el == nil {
		return t
	}
	for _, child := range el.ChildElements() {
		appendFromXML(t, t.Root(), child)
	}
	return t
}

func appendXML(parent *etree.Element, t *Tree, id ID) {
	n := t.Node(id)
	el := parent.CreateElement(n.Local)
	if n.Module != "" {
		el.CreateAttr("xmlns", n.Module)
	}
	for k, v := range n.Attrs {
		el.CreateAttr(k, v)
	}
	children := t.Children(id)
	if len(children) == 0 {
		if n.Body != "" {
			el.SetText(n.Body)
		}
		return
	}
	for _, c := range children {
		appendXML(el, t, c)
	}
}

// FromXML parses an XML document with a <config> (or arbitrary name)
// root into a fresh Tree whose top-level children mirror the document's
// top-level elements.
func FromXML(doc *etree.Document) (*Tree, error) {
	t := New()
	root := doc.Root()
	if root == nil {
		return t, nil
	}
	for _, child := range root.ChildElements() {
		appendFromXML(t, t.Root(), child)
	}
	return t, nil
}

func appendFromXML(t *Tree, parent ID, el *etree.Element) {
	local := el.Tag
	module := ""
	if ns := el.SelectAttrValue("xmlns", ""); ns != "" {
		module = ns
	}
	id := t.NewChild(parent, module, local)
	n := t.Node(id)
	for _, a := range el.Attr {
		if a.Key == "xmlns" {
			continue
		}
		if a.Key == "operation" {
			if op, ok := parseEditOp(a.Value); ok {
				n.DefaultOp = op
			}
			continue
		}
		if n.Attrs == nil {
			n.Attrs = map[string]string{}
		}
		n.Attrs[a.Key] = a.Value
	}
	children := el.ChildElements()
	if len(children) == 0 {
		n.Body = strings.TrimSpace(el.Text())
		return
	}
	for _, c := range children {
		appendFromXML(t, id, c)
	}
}

// parseEditOp recognizes a NETCONF edit-config "operation" attribute
// value (RFC 6241 §7.2), carried under any namespace prefix in the
// source document — a.Key alone is checked, not a.Space — so a client
// payload mixing e.g. operation="delete" on one child with an implicit
// merge on its siblings is honored the same way buildPathEdit builds
// per-node DefaultOp internally.
func parseEditOp(v string) (EditOp, bool) {
	switch EditOp(v) {
	case OpMerge, OpReplace, OpCreate, OpDelete, OpRemove, OpNone:
		return EditOp(v), true
	default:
		return "", false
	}
}

// SerializeXML renders t as an indented XML string with a <config> root,
// the exact persisted form of spec §4.B/§6.
func SerializeXML(t *Tree) (string, error) {
	doc := ToXML(t)
	doc.Indent(2)
	return doc.WriteToString()
}

// ParseXML parses an XML document of the persisted <config> form into a
// Tree.
func ParseXML(data []byte) (*Tree, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return FromXML(doc)
}
