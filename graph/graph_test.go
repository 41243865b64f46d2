package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

type fakeTy struct {
	iface *ir.InterfaceTyp
}

func (t fakeTy) ToPortDecls() (interface{}, bool) { return nil, false }
func (t fakeTy) ToInterfaceTyp() (interface{}, bool) {
	if t.iface == nil {
		return nil, false
	}
	return *t.iface, true
}
func (fakeTy) EnumVariants() ([]thir.EnumVariantTy, bool) { return nil, false }

func (fakeTy) String() string { return "chan" }

func chanTy() fakeTy {
	ch := ir.ChannelIfaceTyp(ir.ChannelTyp{Fwd: ir.UnsignedBits(8), Bwd: ir.UnsignedBits(1)})
	return fakeTy{iface: &ch}
}

func TestBuildWiresPlainPassthroughFromExternalInput(t *testing.T) {
	ty := chanTy()
	ifaceTyp, _ := ty.ToInterfaceTyp()
	outputTyp := ifaceTyp.(ir.InterfaceTyp)

	def := &thir.FunctionIR{
		Name:   "identity",
		Params: []thir.Param{{Name: "x", Typ: ty}},
		RetTy:  ty,
		Body:   &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
	}

	extIface := graph.NewUnwiredInterface(outputTyp)
	for _, leaf := range outputTyp.IntoPrimitives() {
		require.NoError(t, extIface.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointInput, Path: leaf.Path}))
	}

	bld := graph.NewBuilder(map[string]*thir.FunctionIR{def.Name: def}, func(e thir.Expr) (ir.ExprId, error) {
		t.Fatalf("pureLower should not be called for a plain Var passthrough, got %T", e)
		return ir.ExprId{}, nil
	})

	g, err := bld.Build(def, []graph.ModuleGraphValue{{Interface: extIface, IsExternal: true}}, outputTyp)
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Output.UnwiredPaths())

	for key, ep := range g.Output.Endpoints() {
		assert.Equal(t, graph.EndpointInput, ep.Kind, "leaf %q should be driven by the external input", key)
	}
}

func TestBuildRejectsIfAsTopologyError(t *testing.T) {
	ty := chanTy()
	ifaceTyp, _ := ty.ToInterfaceTyp()
	outputTyp := ifaceTyp.(ir.InterfaceTyp)

	def := &thir.FunctionIR{
		Name:   "branchy",
		Params: []thir.Param{{Name: "x", Typ: ty}},
		RetTy:  ty,
		Body: &thir.If{
			ExprBase: thir.ExprBase{Typ: ty},
			Cond:     &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
			Then:     &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
			Else:     &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
		},
	}

	extIface := graph.NewUnwiredInterface(outputTyp)

	bld := graph.NewBuilder(map[string]*thir.FunctionIR{def.Name: def}, func(e thir.Expr) (ir.ExprId, error) {
		return ir.ExprId{}, nil
	})

	_, err := bld.Build(def, []graph.ModuleGraphValue{{Interface: extIface, IsExternal: true}}, outputTyp)
	require.Error(t, err)
	var topoErr *graph.TopologyError
	assert.ErrorAs(t, err, &topoErr)
}
