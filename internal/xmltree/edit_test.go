package xmltree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildLeaf(t *Tree, parent ID, module, local, body string) ID {
	id := t.NewChild(parent, module, local)
	t.Node(id).Body = body
	return id
}

func buildListEntry(t *Tree, parent ID, local string, keyName, keyVal string) ID {
	id := t.NewChild(parent, "", local)
	n := t.Node(id)
	n.Keys = []string{keyName}
	buildLeaf(t, id, "", keyName, keyVal)
	return id
}

func TestPut_MergeIdempotent(t *testing.T) {
	dst := New()
	edit := New()
	ifs := edit.NewChild(edit.Root(), "if", "interfaces")
	eth0 := buildListEntry(edit, ifs, "interface", "name", "eth0")
	buildLeaf(edit, eth0, "", "mtu", "1500")

	errs1 := Put(dst, OpMerge, edit, "alice")
	require.Empty(t, errs1)
	want, err := SerializeXML(dst)
	require.NoError(t, err)

	errs2 := Put(dst, OpMerge, edit, "alice")
	require.Empty(t, errs2)
	got, err := SerializeXML(dst)
	require.NoError(t, err)

	require.Equal(t, want, got, "merge idempotence: applying the same edit twice must not change the tree")
}

func TestPut_CreateFailsOnExisting(t *testing.T) {
	dst := New()
	edit := New()
	buildLeaf(edit, edit.Root(), "", "hostname", "r1")
	require.Empty(t, Put(dst, OpCreate, edit, "alice"))

	errList := Put(dst, OpCreate, edit, "alice")
	require.Len(t, errList, 1)
	require.Equal(t, "data-exists", string(errList[0].Tag))
}

func TestPut_DeleteFailsOnMissing(t *testing.T) {
	dst := New()
	edit := New()
	buildLeaf(edit, edit.Root(), "", "hostname", "r1")

	errList := Put(dst, OpDelete, edit, "alice")
	require.Len(t, errList, 1)
	require.Equal(t, "data-missing", string(errList[0].Tag))
}

func TestPut_RemoveSilentOnMissing(t *testing.T) {
	dst := New()
	edit := New()
	buildLeaf(edit, edit.Root(), "", "hostname", "r1")

	errList := Put(dst, OpRemove, edit, "alice")
	require.Empty(t, errList)
}

func TestPut_ReplaceWholeSubtree(t *testing.T) {
	dst := New()
	edit1 := New()
	ifs := edit1.NewChild(edit1.Root(), "", "interfaces")
	eth0 := buildListEntry(edit1, ifs, "interface", "name", "eth0")
	buildLeaf(edit1, eth0, "", "mtu", "1500")
	buildLeaf(edit1, eth0, "", "enabled", "true")
	require.Empty(t, Put(dst, OpMerge, edit1, "alice"))

	edit2 := New()
	ifs2 := edit2.NewChild(edit2.Root(), "", "interfaces")
	eth0b := buildListEntry(edit2, ifs2, "interface", "name", "eth0")
	buildLeaf(edit2, eth0b, "", "mtu", "9000")
	require.Empty(t, Put(dst, OpReplace, edit2, "alice"))

	frag := Get(dst, "interfaces/interface[name='eth0']")
	entry := frag.Children(frag.Root())[0]
	require.Zero(t, frag.FindChildByQName(entry, "", "enabled")) // replaced away
	mtu := frag.FindChildByQName(entry, "", "mtu")
	require.Equal(t, "9000", frag.Node(mtu).Body)
}

func TestPut_ListEntriesMatchedByKeyNotPosition(t *testing.T) {
	dst := New()
	edit1 := New()
	ifs := edit1.NewChild(edit1.Root(), "", "interfaces")
	buildListEntry(edit1, ifs, "interface", "name", "eth0")
	buildListEntry(edit1, ifs, "interface", "name", "eth1")
	require.Empty(t, Put(dst, OpMerge, edit1, "alice"))

	edit2 := New()
	ifs2 := edit2.NewChild(edit2.Root(), "", "interfaces")
	eth1 := buildListEntry(edit2, ifs2, "interface", "name", "eth1")
	buildLeaf(edit2, eth1, "", "mtu", "9000")
	require.Empty(t, Put(dst, OpMerge, edit2, "alice"))

	dstIfs := dst.FindChildByQName(dst.Root(), "", "interfaces")
	require.Len(t, dst.Children(dstIfs), 2, "must not duplicate eth1 as a new entry")
}

func TestGet_EmptyResultOnNoMatch(t *testing.T) {
	dst := New()
	frag := Get(dst, "nonexistent/path")
	require.NotNil(t, frag)
	require.Empty(t, frag.Children(frag.Root()))
}

func TestCopy_ByteEquivalent(t *testing.T) {
	src := New()
	buildLeaf(src, src.Root(), "", "hostname", "r1")

	dup := src.Copy()
	a, err := SerializeXML(src)
	require.NoError(t, err)
	b, err := SerializeXML(dup)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestXML_RoundTrip(t *testing.T) {
	src := New()
	ifs := src.NewChild(src.Root(), "", "interfaces")
	eth0 := buildListEntry(src, ifs, "interface", "name", "eth0")
	buildLeaf(src, eth0, "", "mtu", "1500")

	out, err := SerializeXML(src)
	require.NoError(t, err)

	parsed, err := ParseXML([]byte(out))
	require.NoError(t, err)

	out2, err := SerializeXML(parsed)
	require.NoError(t, err)
	require.Equal(t, out, out2)
}
