package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardflow/hfc/ir"
)

func TestBinaryOpWidthRules(t *testing.T) {
	store := ir.NewStore()
	a := ir.InputVar(store, "a", ir.UnsignedBits(8), ir.Span{})
	b := ir.InputVar(store, "b", ir.UnsignedBits(8), ir.Span{})

	add := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAdd, Lhs: a, Rhs: b}})
	assert.Equal(t, 9, store.TypeOf(add).Width(), "Add grows by one guard bit")

	mul := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpMul, Lhs: a, Rhs: b}})
	assert.Equal(t, 16, store.TypeOf(mul).Width())

	div := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpDiv, Lhs: a, Rhs: b}})
	assert.Equal(t, 8, store.TypeOf(div).Width())

	eq := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: a, Rhs: b}})
	assert.Equal(t, 1, store.TypeOf(eq).Width())
	assert.False(t, store.TypeOf(eq).IsSigned(), "comparisons are always unsigned")
}

func TestBinaryOpSignednessRequiresBothOperandsSigned(t *testing.T) {
	store := ir.NewStore()
	signedA := ir.InputVar(store, "a", ir.SignedBits(8), ir.Span{})
	unsignedB := ir.InputVar(store, "b", ir.UnsignedBits(8), ir.Span{})
	signedB := ir.InputVar(store, "b2", ir.SignedBits(8), ir.Span{})

	mixed := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAdd, Lhs: signedA, Rhs: unsignedB}})
	assert.False(t, store.TypeOf(mixed).IsSigned())

	bothSigned := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAdd, Lhs: signedA, Rhs: signedB}})
	assert.True(t, store.TypeOf(bothSigned).IsSigned())
}

func TestAddRequiresEqualOperandWidths(t *testing.T) {
	store := ir.NewStore()
	a := ir.InputVar(store, "a", ir.UnsignedBits(8), ir.Span{})
	b := ir.InputVar(store, "b", ir.UnsignedBits(4), ir.Span{})
	add := store.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAdd, Lhs: a, Rhs: b}})

	assert.Panics(t, func() { store.TypeOf(add) })
}

func TestCondRequiresUniformArmWidths(t *testing.T) {
	store := ir.NewStore()
	guard := ir.InputVar(store, "g", ir.UnsignedBits(1), ir.Span{})
	thenV := ir.InputVar(store, "t", ir.UnsignedBits(8), ir.Span{})
	elseV := ir.InputVar(store, "e", ir.UnsignedBits(8), ir.Span{})

	cond := store.Alloc(ir.Expr{Kind: ir.ExprCond{
		Arms:    []ir.ExprCondArm{{Cond: guard, Val: thenV}},
		Default: elseV,
	}})
	assert.Equal(t, 8, store.TypeOf(cond).Width())

	v := ir.NewValidator(store)
	require.NoError(t, v.Check([]ir.ExprId{cond}))
}

func TestResizeWidensByZeroExtension(t *testing.T) {
	store := ir.NewStore()
	a := ir.InputVar(store, "a", ir.UnsignedBits(4), ir.Span{})
	wide := ir.Resize(store, a, 4, 8, ir.Span{})
	assert.Equal(t, 8, store.TypeOf(wide).Width())
}

func TestResizeNarrowsByClip(t *testing.T) {
	store := ir.NewStore()
	a := ir.InputVar(store, "a", ir.UnsignedBits(8), ir.Span{})
	narrow := ir.Resize(store, a, 8, 4, ir.Span{})
	assert.Equal(t, 4, store.TypeOf(narrow).Width())
}

func TestResizeNoopReturnsSameId(t *testing.T) {
	store := ir.NewStore()
	a := ir.InputVar(store, "a", ir.UnsignedBits(8), ir.Span{})
	same := ir.Resize(store, a, 8, 8, ir.Span{})
	assert.Equal(t, a, same)
}

func TestFsmCacheHashConsesStructurallyEqualExprs(t *testing.T) {
	store := ir.NewStore()
	cache := ir.NewFsmCache(store)

	a1 := ir.InputVar(cache, "x", ir.UnsignedBits(4), ir.Span{File: "f", Line: 1})
	a2 := ir.InputVar(cache, "x", ir.UnsignedBits(4), ir.Span{File: "f", Line: 99})

	assert.Equal(t, a1, a2, "identical kinds with differing spans still hash-cons to the same id")

	different := ir.InputVar(cache, "y", ir.UnsignedBits(4), ir.Span{})
	assert.NotEqual(t, a1, different)

	stats := cache.Stats()
	assert.Contains(t, stats, "cache hit: 1")
}

func TestStoreNeverDedupes(t *testing.T) {
	store := ir.NewStore()
	a1 := ir.InputVar(store, "x", ir.UnsignedBits(4), ir.Span{})
	a2 := ir.InputVar(store, "x", ir.UnsignedBits(4), ir.Span{})
	assert.NotEqual(t, a1, a2, "the raw arena allocates a fresh id on every call")
}

func TestThirCacheTracksHitsSeparatelyFromFsmCache(t *testing.T) {
	store := ir.NewStore()
	thir := ir.NewThirCache()

	lowered := ir.InputVar(store, "x", ir.UnsignedBits(4), ir.Span{})
	thir.Insert(7, lowered)

	got, ok := thir.Get(7)
	require.True(t, ok)
	assert.Equal(t, lowered, got)

	_, ok = thir.Get(8)
	assert.False(t, ok)
}
