package virgen

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// fakeTy is a minimal thir.Ty fixture standing in for a real frontend's
// type representation: it answers exactly one of ToPortDecls/
// ToInterfaceTyp, matching how a genuine bits-or-interface type would.
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

// identityFn builds fn identity(x: Chan8) -> Chan8 { x }, with no
// submodule calls at all — the simplest possible root for Elaborate.
func identityFn() *thir.FunctionIR {
	ty := channelTy("Chan8")
	return &thir.FunctionIR{
		Name:   "identity",
		Params: []thir.Param{{Name: "x", Typ: ty}},
		RetTy:  ty,
		Body:   &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "x"},
	}
}

func TestElaborateIdentityProducesPassthroughModule(t *testing.T) {
	fn := identityFn()
	funcs := map[string]*thir.FunctionIR{fn.Name: fn}

	out, err := Elaborate(funcs, fn, DefaultConfig())
	require.NoError(t, err)

	assert.Contains(t, out, "module identity")
	assert.Contains(t, out, "in_x_payload")
	assert.Contains(t, out, "assign out_payload = in_x_payload;")
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/hfc.yaml"
	require.NoError(t, os.WriteFile(path, []byte("system_task: false\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.SystemTask)
	assert.Equal(t, "clk", cfg.ClockName)
	assert.Equal(t, "rst", cfg.ResetName)
}
