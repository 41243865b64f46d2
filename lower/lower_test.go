package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/thir"
)

type bitsTy struct {
	width  int
	signed bool
}

func (t bitsTy) ToPortDecls() (interface{}, bool) {
	if t.signed {
		return ir.SignedBits(t.width), true
	}
	return ir.UnsignedBits(t.width), true
}
func (bitsTy) ToInterfaceTyp() (interface{}, bool)         { return nil, false }
func (bitsTy) EnumVariants() ([]thir.EnumVariantTy, bool)  { return nil, false }
func (t bitsTy) String() string                            { return "u8" }

func u8() bitsTy { return bitsTy{width: 8} }

func TestBuildLowersBinaryAddOfTwoParams(t *testing.T) {
	ty := u8()
	def := &thir.FunctionIR{
		Name:   "add",
		Params: []thir.Param{{Name: "a", Typ: ty}, {Name: "b", Typ: ty}},
		RetTy:  ty,
		Body: &thir.BinOp{
			ExprBase: thir.ExprBase{Typ: ty},
			Op:       thir.BinAdd,
			Lhs:      &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "a"},
			Rhs:      &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "b"},
		},
	}

	store := ir.NewStore()
	cache := ir.NewFsmCache(store)
	aID := ir.InputVar(cache, "a", ir.UnsignedBits(8), ir.Span{})
	bID := ir.InputVar(cache, "b", ir.UnsignedBits(8), ir.Span{})

	fn := &lower.Fn{Kind: lower.FnLocal, Def: def}
	result, tasks, err := lower.Build(cache, map[string]*thir.FunctionIR{"add": def}, fn,
		[]lower.PureValue{lower.ExprValue(aID), lower.ExprValue(bID)}, lower.NewMapFnTable())

	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 8, cache.TypeOf(result).Width())

	got := store.Get(result)
	clip, ok := got.Kind.(ir.ExprClip)
	require.True(t, ok, "expected the 9-bit add to be clipped to 8 bits, got %T", got.Kind)
	bin, ok := store.Get(clip.Inner).Kind.(ir.ExprBinaryOp)
	require.True(t, ok, "expected a binary-op expr under the clip, got %T", store.Get(clip.Inner).Kind)
	assert.Equal(t, ir.OpAdd, bin.Op)
	assert.Equal(t, aID, bin.Lhs)
	assert.Equal(t, bID, bin.Rhs)
}

// enumTy is a two-variant sum type fixture: A carries no payload, B
// carries a single u2 field, mirroring `enum E { A, B(u2) }`.
type enumTy struct{}

func (enumTy) ToPortDecls() (interface{}, bool)    { return nil, false }
func (enumTy) ToInterfaceTyp() (interface{}, bool) { return nil, false }
func (enumTy) EnumVariants() ([]thir.EnumVariantTy, bool) {
	return []thir.EnumVariantTy{
		{Name: "A"},
		{Name: "B", Fields: []thir.EnumFieldTy{{Name: "0", Typ: bitsTy{width: 2}}}},
	}, true
}
func (enumTy) String() string { return "E" }

// TestEnumEqComparesDifferentlySizedVariantsWithoutPanicking exercises
// EnumEq(E::A, E::B(0)) for enum E { A, B(u2) }: the two EnumCtors must
// lower to identically-shaped ExprStructs (A's slot padded to B's
// width) so the discriminant/payload comparison never hits a
// mismatched-width panic, and the comparison must genuinely depend on
// both the discriminant and the payload.
func TestEnumEqComparesDifferentlySizedVariantsWithoutPanicking(t *testing.T) {
	ety := enumTy{}
	u2 := bitsTy{width: 2}
	a := &thir.EnumCtor{
		ExprBase: thir.ExprBase{Typ: ety}, VariantName: "A", VariantIndex: 0, NumVariants: 2,
	}
	b := &thir.EnumCtor{
		ExprBase: thir.ExprBase{Typ: ety}, VariantName: "B", VariantIndex: 1, NumVariants: 2,
		Fields: []thir.StructCtorField{{Name: "0", Val: &thir.Lit{ExprBase: thir.ExprBase{Typ: u2}, Bits: []bool{false, false}}}},
	}
	call := &thir.Call{
		ExprBase:  thir.ExprBase{Typ: bitsTy{width: 1}},
		Kind:      thir.CalleeMagic,
		MagicName: "EnumEq",
		Args:      []thir.Expr{a, b},
	}
	def := &thir.FunctionIR{Name: "eq", RetTy: bitsTy{width: 1}, Body: call}

	cache := ir.NewFsmCache(ir.NewStore())
	fn := &lower.Fn{Kind: lower.FnLocal, Def: def}

	require.NotPanics(t, func() {
		result, tasks, err := lower.Build(cache, map[string]*thir.FunctionIR{"eq": def}, fn, nil, lower.NewMapFnTable())
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.Equal(t, 1, cache.TypeOf(result).Width())
	})
}

func TestBuildRejectsArgumentCountMismatch(t *testing.T) {
	ty := u8()
	def := &thir.FunctionIR{
		Name:   "identity",
		Params: []thir.Param{{Name: "a", Typ: ty}},
		RetTy:  ty,
		Body:   &thir.Var{ExprBase: thir.ExprBase{Typ: ty}, Name: "a"},
	}
	cache := ir.NewFsmCache(ir.NewStore())
	fn := &lower.Fn{Kind: lower.FnLocal, Def: def}
	_, _, err := lower.Build(cache, map[string]*thir.FunctionIR{"identity": def}, fn, nil, lower.NewMapFnTable())
	assert.Error(t, err)
}
