package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
)

// submoduleSpec wires the top-level input straight into one plain
// submodule instance and that instance's output straight to the
// top-level output, exercising phases 1-4 without any Fsm/Seq/FromFn
// lowering.
func submoduleSpec(t *testing.T) ModuleSpec {
	t.Helper()
	leafTyp := ir.StructIfaceTyp(ir.InterfaceField{Name: "data", Typ: ir.ChannelIfaceTyp(chan8())})

	edgeInput := graph.NewUnwiredInterface(leafTyp)
	leaf := leafTyp.IntoPrimitives()[0]
	require.NoError(t, edgeInput.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointInput, Path: leaf.Path}))

	mod := &graph.Module{Kind: graph.KindSubmodule, Name: "child", OutputTyp: leafTyp}
	edge := graph.Edge{Module: mod, Input: edgeInput}

	out := graph.NewUnwiredInterface(leafTyp)
	require.NoError(t, out.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointSubmodule, Index: 0, Path: leaf.Path}))

	return ModuleSpec{
		Name:      "parent",
		InputTyp:  leafTyp,
		OutputTyp: leafTyp,
		Graph:     &graph.Graph{Edges: []graph.Edge{edge}, Output: out},
		Store:     ir.NewStore(),
	}
}

func TestCompileInstantiatesSubmoduleAndWiresThrough(t *testing.T) {
	out, err := Compile(submoduleSpec(t), DefaultOptions())
	require.NoError(t, err)

	assert.Contains(t, out, "child u0")
	assert.Contains(t, out, ".in_data_payload(u0_in_data_payload)")
	assert.Contains(t, out, ".out_data_payload(u0_out_data_payload)")
	assert.Contains(t, out, "assign u0_in_data_payload = in_data_payload;")
	assert.Contains(t, out, "assign out_data_payload = u0_out_data_payload;")
	// resolver connections on the instance are tied high, not routed.
	assert.Contains(t, out, ".in_data_resolver(1'b1)")
}

func TestCompileModuleSplitInlinesWithoutInstance(t *testing.T) {
	leafTyp := ir.StructIfaceTyp(ir.InterfaceField{Name: "data", Typ: ir.ChannelIfaceTyp(chan8())})
	leaf := leafTyp.IntoPrimitives()[0]

	edgeInput := graph.NewUnwiredInterface(leafTyp)
	require.NoError(t, edgeInput.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointInput, Path: leaf.Path}))

	mod := &graph.Module{Kind: graph.KindModuleSplit, Name: "split", OutputTyp: leafTyp}
	edge := graph.Edge{Module: mod, Input: edgeInput}

	out := graph.NewUnwiredInterface(leafTyp)
	require.NoError(t, out.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointSubmodule, Index: 0, Path: leaf.Path}))

	spec := ModuleSpec{
		Name:      "parent",
		InputTyp:  leafTyp,
		OutputTyp: leafTyp,
		Graph:     &graph.Graph{Edges: []graph.Edge{edge}, Output: out},
		Store:     ir.NewStore(),
	}

	result, err := Compile(spec, DefaultOptions())
	require.NoError(t, err)
	assert.NotContains(t, result, "split u0")
	assert.Contains(t, result, "assign out_data_payload = in_data_payload;")
}
