package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
)

// identitySpec builds a module with a single-field channel input wired
// straight through to an identically-shaped output, with no submodules.
func identitySpec(t *testing.T) ModuleSpec {
	t.Helper()
	ifaceTyp := ir.StructIfaceTyp(ir.InterfaceField{Name: "data", Typ: ir.ChannelIfaceTyp(chan8())})

	out := graph.NewUnwiredInterface(ifaceTyp)
	leaf := ifaceTyp.IntoPrimitives()[0]
	require.NoError(t, out.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointInput, Path: leaf.Path}))

	return ModuleSpec{
		Name:      "identity",
		InputTyp:  ifaceTyp,
		OutputTyp: ifaceTyp,
		Graph:     &graph.Graph{Output: out},
		Store:     ir.NewStore(),
	}
}

func TestCompileIdentityPassthrough(t *testing.T) {
	out, err := Compile(identitySpec(t), DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, out, "module identity")
	assert.Contains(t, out, "input clk")
	assert.Contains(t, out, "input rst")
	assert.Contains(t, out, "in_data_payload")
	assert.Contains(t, out, "out_data_payload")
	assert.Contains(t, out, "assign out_data_payload = in_data_payload;")
	// the module's own input-side resolver (its output ack) is tied high.
	assert.Contains(t, out, "assign in_data_resolver")
}

func TestCompileUnwiredOutputLeafErrors(t *testing.T) {
	ifaceTyp := ir.ChannelIfaceTyp(chan8())
	spec := ModuleSpec{
		Name:      "broken",
		InputTyp:  ifaceTyp,
		OutputTyp: ifaceTyp,
		Graph:     &graph.Graph{Output: graph.NewUnwiredInterface(ifaceTyp)},
		Store:     ir.NewStore(),
	}
	_, err := Compile(spec, DefaultOptions())
	assert.Error(t, err)
}

func TestAllOnesWidths(t *testing.T) {
	assert.EqualValues(t, 0, allOnes(0))
	assert.EqualValues(t, 1, allOnes(1))
	assert.EqualValues(t, 0xff, allOnes(8))
	assert.EqualValues(t, ^uint64(0), allOnes(64))
}
