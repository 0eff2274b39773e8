package xmltree

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func TestAnnotate_StampsListKeysOnParsedXML(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("config")
	ifs := root.CreateElement("interfaces")
	eth0 := ifs.CreateElement("interface")
	eth0.CreateElement("name").SetText("eth0")
	eth1 := ifs.CreateElement("interface")
	eth1.CreateElement("name").SetText("eth1")

	tree, err := FromXML(doc)
	require.NoError(t, err)
	Annotate(tree, SchemaHints{ListKeys: map[string][]string{"interfaces.interface": {"name"}}})

	dst := New()
	require.Empty(t, Put(dst, OpMerge, tree, "alice"))

	patch := etree.NewDocument()
	patchIfs := patch.CreateElement("config").CreateElement("interfaces")
	patchEth1 := patchIfs.CreateElement("interface")
	patchEth1.CreateElement("name").SetText("eth1")
	patchEth1.CreateElement("mtu").SetText("9000")
	patchTree, err := FromXML(patch)
	require.NoError(t, err)
	Annotate(patchTree, SchemaHints{ListKeys: map[string][]string{"interfaces.interface": {"name"}}})

	require.Empty(t, Put(dst, OpMerge, patchTree, "alice"))

	dstIfs := dst.FindChildByQName(dst.Root(), "", "interfaces")
	require.Len(t, dst.Children(dstIfs), 2, "a keyed merge arriving via FromXML must match eth1 by key, not create a third entry")
}

func TestPut_WithoutKeyAnnotationUnkeyedEntriesCollapseByPosition(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("config")
	ifs := root.CreateElement("interfaces")
	ifs.CreateElement("interface").CreateElement("name").SetText("eth0")
	ifs.CreateElement("interface").CreateElement("name").SetText("eth1")

	// No Annotate call: FromXML alone never stamps Keys, so both
	// unkeyed "interface" siblings are matched by qname against the
	// same first match, and the second silently overwrites the first
	// instead of becoming its own entry — the exact failure the fix
	// closes by stamping Keys before any real payload reaches Put.
	tree, err := FromXML(doc)
	require.NoError(t, err)

	dst := New()
	require.Empty(t, Put(dst, OpMerge, tree, "alice"))

	dstIfs := dst.FindChildByQName(dst.Root(), "", "interfaces")
	require.Len(t, dst.Children(dstIfs), 1, "unannotated list entries are matched by qname (position), so eth1 overwrites eth0 instead of coexisting")
	name := dst.FindChildByQName(dst.Children(dstIfs)[0], "", "name")
	require.Equal(t, "eth1", dst.Node(name).Body)
}

func TestAppendFromXML_PerNodeOperationAttributeSetsDefaultOp(t *testing.T) {
	doc := etree.NewDocument()
	root := doc.CreateElement("config")
	ifs := root.CreateElement("interfaces")
	eth0 := ifs.CreateElement("interface")
	eth0.CreateElement("name").SetText("eth0")
	mtu := eth0.CreateElement("mtu")
	mtu.CreateAttr("operation", "delete")
	mtu.SetText("1500")
	eth0.CreateElement("description").SetText("kept")

	tree, err := FromXML(doc)
	require.NoError(t, err)

	ifsID := tree.FindChildByQName(tree.Root(), "", "interfaces")
	eth0ID := tree.FindChildByQName(ifsID, "", "interface")
	mtuID := tree.FindChildByQName(eth0ID, "", "mtu")
	require.Equal(t, OpDelete, tree.Node(mtuID).DefaultOp)

	descID := tree.FindChildByQName(eth0ID, "", "description")
	require.Empty(t, tree.Node(descID).DefaultOp, "siblings without an operation attribute keep the implicit default")

	_, hasAttr := tree.Node(mtuID).Attrs["operation"]
	require.False(t, hasAttr, "the operation attribute is transient and must not be carried as ordinary node data")
}

func TestAppendFromXML_UnknownOperationValueIgnored(t *testing.T) {
	doc := etree.NewDocument()
	el := doc.CreateElement("config").CreateElement("leaf")
	el.CreateAttr("operation", "bogus")
	el.SetText("x")

	tree, err := FromXML(doc)
	require.NoError(t, err)
	id := tree.FindChildByQName(tree.Root(), "", "leaf")
	require.Empty(t, tree.Node(id).DefaultOp)
}
