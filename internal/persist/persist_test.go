package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sdcio/clixon-engine/internal/xmltree"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	tree := xmltree.New()
	id := tree.NewChild(tree.Root(), "", "hostname")
	tree.Node(id).Body = "r1"

	require.NoError(t, s.Store("running", tree))
	require.True(t, s.Exists("running"))

	loaded, err := s.Load("running")
	require.NoError(t, err)

	want, err := xmltree.SerializeXML(tree)
	require.NoError(t, err)
	got, err := xmltree.SerializeXML(loaded)
	require.NoError(t, err)
	require.Equal(t, want, got, "load(store(t)) must round-trip")
}

func TestLoadMissingFile(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("running")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestResetKeepsFilePresent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	tree := xmltree.New()
	tree.NewChild(tree.Root(), "", "hostname")
	require.NoError(t, s.Store("running", tree))

	require.NoError(t, s.Reset("running"))
	require.True(t, s.Exists("running"))

	loaded, err := s.Load("running")
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())
}

func TestStoreFailureLeavesPreviousFileIntact(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	tree := xmltree.New()
	tree.NewChild(tree.Root(), "", "hostname")
	require.NoError(t, s.Store("running", tree))

	before, err := os.ReadFile(filepath.Join(dir, "running_db"))
	require.NoError(t, err)

	// Simulate a temp-file write failure by making the directory
	// read-only, then restoring it — the original file content must
	// survive an aborted store.
	require.NoError(t, os.Chmod(dir, 0o500))
	tree2 := xmltree.New()
	tree2.NewChild(tree2.Root(), "", "hostname")
	storeErr := s.Store("running", tree2)
	os.Chmod(dir, 0o700)
	require.Error(t, storeErr)

	after, err := os.ReadFile(filepath.Join(dir, "running_db"))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestFailsafeMarkerRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	require.False(t, s.NeedsFailsafe())

	require.NoError(t, s.MarkFailsafe())
	require.True(t, s.NeedsFailsafe())

	require.NoError(t, s.ClearFailsafe())
	require.False(t, s.NeedsFailsafe())
}

func TestClearFailsafeOnAbsentMarkerIsNotAnError(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.ClearFailsafe())
}

func TestLoad_HintsAnnotateListKeysSoAPutMatchesByKey(t *testing.T) {
	s := New(t.TempDir())
	s.Hints = xmltree.SchemaHints{ListKeys: map[string][]string{"interfaces.interface": {"name"}}}

	onDisk := xmltree.New()
	ifs := onDisk.NewChild(onDisk.Root(), "", "interfaces")
	eth0 := onDisk.NewChild(ifs, "", "interface")
	onDisk.Node(onDisk.NewChild(eth0, "", "name")).Body = "eth0"
	eth1 := onDisk.NewChild(ifs, "", "interface")
	onDisk.Node(onDisk.NewChild(eth1, "", "name")).Body = "eth1"
	require.NoError(t, s.Store("running", onDisk))

	loaded, err := s.Load("running")
	require.NoError(t, err)

	patch := xmltree.New()
	patchIfs := patch.NewChild(patch.Root(), "", "interfaces")
	patchEntry := patch.NewChild(patchIfs, "", "interface")
	patch.Node(patch.NewChild(patchEntry, "", "name")).Body = "eth1"
	patch.Node(patch.NewChild(patchEntry, "", "mtu")).Body = "9000"
	patch.Node(patchEntry).Keys = []string{"name"}

	require.Empty(t, xmltree.Put(loaded, xmltree.OpMerge, patch, "tester"))

	loadedIfs := loaded.FindChildByQName(loaded.Root(), "", "interfaces")
	require.Len(t, loaded.Children(loadedIfs), 2,
		"a loaded tree must carry its list keys so a later Put merges eth1 instead of matching eth0 by position")
}
