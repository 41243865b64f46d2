package hfc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
	"github.com/hazardflow/hfc/virgen"
)

type fakeTy struct {
	name  string
	bits  *ir.PortDecls
	iface *ir.InterfaceTyp
}

func (t fakeTy) ToPortDecls() (interface{}, bool) {
	if t.bits == nil {
		return nil, false
	}
	return *t.bits, true
}

func (t fakeTy) ToInterfaceTyp() (interface{}, bool) {
	if t.iface == nil {
		return nil, false
	}
	return *t.iface, true
}

func (fakeTy) EnumVariants() ([]thir.EnumVariantTy, bool) { return nil, false }

func (t fakeTy) String() string { return t.name }

func channelTy(name string) fakeTy {
	ch := ir.ChannelIfaceTyp(ir.ChannelTyp{Fwd: ir.UnsignedBits(8), Bwd: ir.UnsignedBits(1)})
	return fakeTy{name: name, iface: &ch}
}

func TestCompileRejectsRootMissingFromTable(t *testing.T) {
	ty := channelTy("Chan8")
	root := &thir.FunctionIR{
		Name:   "identity",
		Params: []thir.Param{{Name: "x", Typ: ty}},
		RetTy:  ty,
		Body:   &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
	}
	_, err := hfc.Compile(map[string]*thir.FunctionIR{}, root)
	assert.Error(t, err)
}

func TestCompileElaboratesIdentity(t *testing.T) {
	ty := channelTy("Chan8")
	root := &thir.FunctionIR{
		Name:   "identity",
		Params: []thir.Param{{Name: "x", Typ: ty}},
		RetTy:  ty,
		Body:   &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
	}
	funcs := map[string]*thir.FunctionIR{root.Name: root}

	out, err := hfc.CompileWithConfig(funcs, root, virgen.DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, out, "module identity")
}

func TestCompileRejectsNilRoot(t *testing.T) {
	_, err := hfc.Compile(map[string]*thir.FunctionIR{}, nil)
	assert.Error(t, err)
}
