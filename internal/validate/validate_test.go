package validate

import (
	"regexp"
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/sdcio/clixon-engine/internal/xmltree"
	"github.com/stretchr/testify/require"
)

func TestValidate_MandatoryMissing(t *testing.T) {
	tree := xmltree.New()
	ifs := tree.NewChild(tree.Root(), "", "interfaces")
	tree.NewChild(ifs, "", "interface")

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"interfaces.interface.name": {Mandatory: true},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors())
	require.Equal(t, "missing-element", string(result[0].Tag))
}

func TestValidate_RangeConstraint(t *testing.T) {
	tree := xmltree.New()
	ifs := tree.NewChild(tree.Root(), "", "interfaces")
	iface := tree.NewChild(ifs, "", "interface")
	mtu := tree.NewChild(iface, "", "mtu")
	tree.Node(mtu).Body = "99999"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"interfaces.interface.mtu": {Min: pointer.ToInt64(68), Max: pointer.ToInt64(9000)},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors())
}

func TestValidate_PatternConstraint(t *testing.T) {
	tree := xmltree.New()
	iface := tree.NewChild(tree.Root(), "", "interface")
	name := tree.NewChild(iface, "", "name")
	tree.Node(name).Body = "not an interface name!"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"interface.name": {Pattern: regexp.MustCompile(`^[a-z0-9]+$`)},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors())
}

func TestValidate_LeafrefResolves(t *testing.T) {
	tree := xmltree.New()
	ifs := tree.NewChild(tree.Root(), "", "interfaces")
	iface := tree.NewChild(ifs, "", "interface")
	name := tree.NewChild(iface, "", "name")
	tree.Node(name).Body = "eth0"

	routing := tree.NewChild(tree.Root(), "", "routing")
	ref := tree.NewChild(routing, "", "outgoing-interface")
	tree.Node(ref).Body = "eth0"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"routing.outgoing-interface": {LeafrefTarget: "interfaces.interface.name"},
		},
	}
	result := Validate(tree, schema)
	require.Empty(t, result)
}

func TestValidate_LeafrefDangling(t *testing.T) {
	tree := xmltree.New()
	routing := tree.NewChild(tree.Root(), "", "routing")
	ref := tree.NewChild(routing, "", "outgoing-interface")
	tree.Node(ref).Body = "eth99"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"routing.outgoing-interface": {LeafrefTarget: "interfaces.interface.name"},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors())
}

func TestValidate_PureNoMutation(t *testing.T) {
	tree := xmltree.New()
	iface := tree.NewChild(tree.Root(), "", "interface")
	tree.Node(iface).Body = ""

	before, _ := xmltree.SerializeXML(tree)
	Validate(tree, &Schema{Leaves: map[string]*LeafConstraint{}})
	after, _ := xmltree.SerializeXML(tree)
	require.Equal(t, before, after)
}

func TestValidate_MustViolated(t *testing.T) {
	tree := xmltree.New()
	tunnel := tree.NewChild(tree.Root(), "", "tunnel")
	lo := tree.NewChild(tunnel, "", "local")
	tree.Node(lo).Body = "10.0.0.1"
	hi := tree.NewChild(tunnel, "", "remote")
	tree.Node(hi).Body = "10.0.0.1"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"tunnel.local": {Must: []string{"endpoints-differ"}},
		},
		Must: map[string]func(map[string]string) bool{
			"endpoints-differ": func(s map[string]string) bool {
				return s["local"] != s["remote"]
			},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors())
	require.Equal(t, "operation-failed", string(result[0].Tag))
}

func TestValidate_MustSatisfied(t *testing.T) {
	tree := xmltree.New()
	tunnel := tree.NewChild(tree.Root(), "", "tunnel")
	lo := tree.NewChild(tunnel, "", "local")
	tree.Node(lo).Body = "10.0.0.1"
	hi := tree.NewChild(tunnel, "", "remote")
	tree.Node(hi).Body = "10.0.0.2"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"tunnel.local": {Must: []string{"endpoints-differ"}},
		},
		Must: map[string]func(map[string]string) bool{
			"endpoints-differ": func(s map[string]string) bool {
				return s["local"] != s["remote"]
			},
		},
	}
	result := Validate(tree, schema)
	require.Empty(t, result)
}

func TestValidate_MustUnregisteredNameTreatedAsSatisfied(t *testing.T) {
	tree := xmltree.New()
	leaf := tree.NewChild(tree.Root(), "", "leaf")
	tree.Node(leaf).Body = "x"

	schema := &Schema{
		Leaves: map[string]*LeafConstraint{
			"leaf": {Must: []string{"no-such-expression"}},
		},
	}
	result := Validate(tree, schema)
	require.Empty(t, result, "an unregistered must name is treated as satisfied, not a failure")
}

func TestValidate_UniqueConstraintViolated(t *testing.T) {
	tree := xmltree.New()
	ifs := tree.NewChild(tree.Root(), "", "interfaces")
	a := tree.NewChild(ifs, "", "interface")
	tree.Node(tree.NewChild(a, "", "name")).Body = "eth0"
	tree.Node(tree.NewChild(a, "", "description")).Body = "uplink"
	b := tree.NewChild(ifs, "", "interface")
	tree.Node(tree.NewChild(b, "", "name")).Body = "eth1"
	tree.Node(tree.NewChild(b, "", "description")).Body = "uplink"

	schema := &Schema{
		Lists: map[string]*ListConstraint{
			"interfaces.interface": {Keys: []string{"name"}, Unique: [][]string{{"description"}}},
		},
	}
	result := Validate(tree, schema)
	require.True(t, result.HasErrors(), "two entries with distinct keys but the same unique-constrained description must be rejected")
	require.Equal(t, "operation-failed", string(result[0].Tag))
}

func TestValidate_UniqueConstraintSatisfied(t *testing.T) {
	tree := xmltree.New()
	ifs := tree.NewChild(tree.Root(), "", "interfaces")
	a := tree.NewChild(ifs, "", "interface")
	tree.Node(tree.NewChild(a, "", "name")).Body = "eth0"
	tree.Node(tree.NewChild(a, "", "description")).Body = "uplink"
	b := tree.NewChild(ifs, "", "interface")
	tree.Node(tree.NewChild(b, "", "name")).Body = "eth1"
	tree.Node(tree.NewChild(b, "", "description")).Body = "downlink"

	schema := &Schema{
		Lists: map[string]*ListConstraint{
			"interfaces.interface": {Keys: []string{"name"}, Unique: [][]string{{"description"}}},
		},
	}
	result := Validate(tree, schema)
	require.Empty(t, result)
}

func TestSchema_HintsProjectsListKeysAndLeafLists(t *testing.T) {
	schema := &Schema{
		Lists: map[string]*ListConstraint{
			"interfaces.interface": {Keys: []string{"name"}},
		},
		LeafLists: map[string]bool{
			"interfaces.interface.tagged-vlans": true,
		},
	}
	hints := schema.Hints()
	require.Equal(t, []string{"name"}, hints.ListKeys["interfaces.interface"])
	require.True(t, hints.LeafLists["interfaces.interface.tagged-vlans"])
}
