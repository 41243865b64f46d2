package ir

// Allocator is satisfied by both *Store and *FsmCache, letting the
// constructor helpers below hash-cons when given a module-scoped cache
// or simply append when given the raw global arena.
type Allocator interface {
	Alloc(Expr) ExprId
	TypeOf(ExprId) PortDecls
}

// UnitExpr allocates the zero-width unit value.
func UnitExpr(a Allocator, span Span) ExprId {
	return a.Alloc(Expr{Kind: ExprConstant{Bits: nil, Typ: Unit()}, Span: span})
}

// InputVar allocates a named free variable of the given interface-level
// payload type, used as the root reference for one of a module's
// top-level inputs.
func InputVar(a Allocator, name string, typ PortDecls, span Span) ExprId {
	return a.Alloc(Expr{Kind: ExprVar{Name: name, Typ: typ}, Span: span})
}

// UnsignedBitsLiteral allocates an unsigned constant of the given width
// from its little-endian bit slice.
func UnsignedBitsLiteral(a Allocator, bits []bool, span Span) ExprId {
	b := make([]bool, len(bits))
	copy(b, bits)
	return a.Alloc(Expr{Kind: ExprConstant{Bits: b, Typ: UnsignedBits(len(b))}, Span: span})
}

// SignedBitsLiteral allocates a signed constant of the given width from
// its little-endian bit slice.
func SignedBitsLiteral(a Allocator, bits []bool, span Span) ExprId {
	b := make([]bool, len(bits))
	copy(b, bits)
	return a.Alloc(Expr{Kind: ExprConstant{Bits: b, Typ: SignedBits(len(b))}, Span: span})
}

// CastBits reinterprets from's bit pattern as the given Shape without
// changing its bits, used when signedness or dimensionality needs to
// change but the width already matches.
func CastBits(a Allocator, from ExprId, to Shape, span Span) ExprId {
	if a.TypeOf(from).Width() != to.Width() {
		panic("ir: CastBits requires equal widths; use Resize to change width")
	}
	return a.Alloc(Expr{Kind: ExprCast{From: from, To: to}, Span: span})
}

// Resize changes a flat bit-vector expr's width: widening zero-extends
// via Append(from, Repeat(zero, delta)) and narrowing truncates via Clip
// from offset 0. fromWidth/toWidth are the expr's declared width before
// and after resizing.
func Resize(a Allocator, from ExprId, fromWidth, toWidth int, span Span) ExprId {
	if fromWidth == toWidth {
		return from
	}
	if toWidth > fromWidth {
		delta := toWidth - fromWidth
		zeroBit := UnsignedBitsLiteral(a, []bool{false}, span)
		zeros := a.Alloc(Expr{Kind: ExprRepeat{Inner: zeroBit, Count: delta}, Span: span})
		return a.Alloc(Expr{Kind: ExprAppend{Lhs: from, Rhs: zeros, EltTyp: UnsignedBits(1)}, Span: span})
	}
	zeroIdx := UnsignedBitsLiteral(a, zeroBitsOfWidth(1), span)
	return a.Alloc(Expr{Kind: ExprClip{Inner: from, EltTyp: UnsignedBits(1), From: zeroIdx, Size: toWidth}, Span: span})
}

func zeroBitsOfWidth(w int) []bool {
	return make([]bool, w)
}
