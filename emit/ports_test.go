package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/ir"
)

func chan8() ir.ChannelTyp {
	return ir.ChannelTyp{Fwd: ir.UnsignedBits(8), Bwd: ir.UnsignedBits(1)}
}

func TestGroupPrimitivesFlattensArrayIndices(t *testing.T) {
	typ := ir.StructIfaceTyp(
		ir.InterfaceField{Name: "scalar", Typ: ir.ChannelIfaceTyp(chan8())},
		ir.InterfaceField{Name: "arr", Typ: ir.ArrayIfaceTyp(ir.ChannelIfaceTyp(chan8()), 3)},
	)

	groups := groupPrimitives(typ)
	require.Len(t, groups, 2)

	var scalar, arr *fieldGroup
	for i := range groups {
		switch groups[i].Name {
		case "scalar":
			scalar = &groups[i]
		case "arr":
			arr = &groups[i]
		}
	}
	require.NotNil(t, scalar)
	require.NotNil(t, arr)

	assert.Equal(t, 1, scalar.Count)
	assert.Equal(t, 3, arr.Count)
	assert.Equal(t, 8, arr.Channel.Fwd.Width())
	for i, leaf := range arr.Leaves {
		assert.Equal(t, i, leaf.Path[len(leaf.Path)-1].Index)
	}
}

func TestLocateLeafReportsGroupPositionAndWidth(t *testing.T) {
	typ := ir.ArrayIfaceTyp(ir.ChannelIfaceTyp(chan8()), 4)
	leaves := typ.IntoPrimitives()

	name, pos, count, ch, isUnit, found := locateLeaf(typ, leaves[2].Path)
	require.True(t, found)
	assert.False(t, isUnit)
	assert.Equal(t, "", name)
	assert.Equal(t, 2, pos)
	assert.Equal(t, 4, count)
	assert.Equal(t, 8, ch.Fwd.Width())
}

func TestLocateLeafMissingPathNotFound(t *testing.T) {
	typ := ir.ChannelIfaceTyp(chan8())
	other := ir.ArrayIfaceTyp(ir.ChannelIfaceTyp(chan8()), 2).IntoPrimitives()[1].Path

	_, _, _, _, _, found := locateLeaf(typ, other)
	assert.False(t, found)
}

func TestSidePortsNamesUnitFieldsOut(t *testing.T) {
	typ := ir.StructIfaceTyp(
		ir.InterfaceField{Name: "done", Typ: ir.UnitTyp()},
		ir.InterfaceField{Name: "data", Typ: ir.ChannelIfaceTyp(chan8())},
	)
	ports := inputPorts(typ)
	var names []string
	for _, p := range ports {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "in_data_payload")
	assert.Contains(t, names, "in_data_resolver")
	assert.NotContains(t, names, "in_done_payload")
}
