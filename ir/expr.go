package ir

import "fmt"

// ExprId is a lightweight opaque index into the global expression arena.
// Comparison is O(1); all ExprId values are valid for the process
// lifetime once allocated.
type ExprId uint32

// BinaryOp enumerates the combinational binary operators; their result
// width follows binaryOpWidth below.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op BinaryOp) isComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

func (op BinaryOp) String() string {
	names := [...]string{"Add", "Sub", "Mul", "Div", "Mod", "And", "Or", "Xor", "Shl", "Shr", "Eq", "Ne", "Lt", "Le", "Gt", "Ge"}
	if int(op) < len(names) {
		return names[op]
	}
	return "BinaryOp(?)"
}

// FunctionId references a FunctionBuilder value used as an operand of
// Fold/Map, resolved by package lower. The ir package treats it as an
// opaque comparable key so that the FsmCache can still hash-cons
// expressions that reference the same function value.
type FunctionId uint32

// Span marks a source location for diagnostics. It is carried on every
// Expr but deliberately excluded from structural equality and hashing:
// two exprs built at different call sites with identical operands must
// still hash-cons to the same ExprId.
type Span struct {
	File      string
	Line, Col int
}

// Expr is an immutable, hash-consed combinational term. Two
// Exprs with the same kind and operand ids are structurally equal
// regardless of where they were allocated (Span is ignored); the
// FsmCache keys its index on this structure (exprKey) to guarantee
// hash-consing within one module body.
type Expr struct {
	Kind ExprKind
	Span Span
}

// ExprKind is the tagged union of expression node kinds.
type ExprKind interface {
	isExprKind()
	// portDecls computes this node's PortDecls given a lookup function
	// for operand types (so Expr does not need back-pointers into an
	// arena; callers pass ir.Store.TypeOf as the lookup).
	portDecls(typeOf func(ExprId) PortDecls) PortDecls
}

type ExprX struct{ Typ PortDecls }
type ExprConstant struct {
	Bits []bool
	Typ  PortDecls
}
type ExprRepeat struct {
	Inner ExprId
	Count int
}
type ExprVar struct {
	Name string
	Typ  PortDecls
}
type ExprMember struct {
	Inner ExprId
	Index int
}
type ExprStruct struct {
	// Fields mirrors PortDecls.Fields: optional name + operand.
	Names  []*string
	Fields []ExprId
}
type ExprNot struct{ Inner ExprId }
type ExprBinaryOp struct {
	Op       BinaryOp
	Lhs, Rhs ExprId
}
type ExprFold struct {
	Inner  ExprId
	EltTyp PortDecls
	Init   ExprId
	Fn     FunctionId
}
type ExprTreeFold struct {
	Inner    ExprId
	Acc      ExprId
	Op       ExprId
	Lhs, Rhs ExprId
}
type ExprMap struct {
	Inner  ExprId
	EltTyp PortDecls
	FnRet  PortDecls
	Len    int
	Fn     FunctionId
}
type ExprRange struct {
	Len    int
	EltTyp PortDecls
}
type ExprGet struct {
	Inner  ExprId
	EltTyp PortDecls
	Index  ExprId
}
type ExprClip struct {
	Inner  ExprId
	EltTyp PortDecls
	From   ExprId
	Size   int
}
type ExprAppend struct {
	Lhs, Rhs ExprId
	EltTyp   PortDecls
}
type ExprZip struct {
	Inner  []ExprId
	EltTyp []PortDecls
}
type ExprConcat struct {
	Inner  ExprId
	EltTyp PortDecls
}
type ExprChunk struct {
	Inner     ExprId
	ChunkSize int
}
type ExprRepr struct{ Inner ExprId }
type ExprCondArm struct {
	Cond ExprId
	Val  ExprId
}
type ExprCond struct {
	Arms    []ExprCondArm
	Default ExprId
}
type ExprSet struct {
	Inner ExprId
	Index ExprId
	Elt   ExprId
}
type ExprSetRange struct {
	Inner  ExprId
	EltTyp PortDecls
	Index  ExprId
	Elts   ExprId
}
type ExprCaseItem struct {
	Cond ExprId
	Val  ExprId
}
type ExprCase struct {
	Scrutinee ExprId
	Items     []ExprCaseItem
	Default   *ExprId
}
type ExprConcatArray struct {
	Inner  []ExprId
	EltTyp PortDecls
}
type ExprCast struct {
	From ExprId
	To   Shape
}

func (ExprX) isExprKind()           {}
func (ExprConstant) isExprKind()    {}
func (ExprRepeat) isExprKind()      {}
func (ExprVar) isExprKind()         {}
func (ExprMember) isExprKind()      {}
func (ExprStruct) isExprKind()      {}
func (ExprNot) isExprKind()         {}
func (ExprBinaryOp) isExprKind()    {}
func (ExprFold) isExprKind()        {}
func (ExprTreeFold) isExprKind()    {}
func (ExprMap) isExprKind()         {}
func (ExprRange) isExprKind()       {}
func (ExprGet) isExprKind()         {}
func (ExprClip) isExprKind()        {}
func (ExprAppend) isExprKind()      {}
func (ExprZip) isExprKind()         {}
func (ExprConcat) isExprKind()      {}
func (ExprChunk) isExprKind()       {}
func (ExprRepr) isExprKind()        {}
func (ExprCond) isExprKind()        {}
func (ExprSet) isExprKind()         {}
func (ExprSetRange) isExprKind()    {}
func (ExprCase) isExprKind()        {}
func (ExprConcatArray) isExprKind() {}
func (ExprCast) isExprKind()        {}

func (e ExprX) portDecls(func(ExprId) PortDecls) PortDecls        { return e.Typ }
func (e ExprConstant) portDecls(func(ExprId) PortDecls) PortDecls { return e.Typ }
func (e ExprRepeat) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return typeOf(e.Inner).Multiple(e.Count)
}
func (e ExprVar) portDecls(func(ExprId) PortDecls) PortDecls { return e.Typ }
func (e ExprMember) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return typeOf(e.Inner).Fields()[e.Index].Decl
}
func (e ExprStruct) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	fields := make([]PortDeclsField, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = PortDeclsField{Name: e.Names[i], Decl: typeOf(f)}
	}
	return StructDecl(fields...)
}
func (e ExprNot) portDecls(typeOf func(ExprId) PortDecls) PortDecls { return typeOf(e.Inner) }
func (e ExprBinaryOp) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	lhs, rhs := typeOf(e.Lhs), typeOf(e.Rhs)
	width := binaryOpWidth(e.Op, lhs.Width(), rhs.Width())
	if e.Op.isComparison() {
		return UnsignedBits(width)
	}
	switch e.Op {
	case OpShl, OpShr:
		if lhs.IsSigned() {
			return SignedBits(width)
		}
		return UnsignedBits(width)
	default:
		if lhs.IsSigned() && rhs.IsSigned() {
			return SignedBits(width)
		}
		return UnsignedBits(width)
	}
}

// binaryOpWidth computes a binary operator's result width from its
// operand widths.
func binaryOpWidth(op BinaryOp, lhsWidth, rhsWidth int) int {
	switch op {
	case OpAdd:
		if lhsWidth != rhsWidth {
			panic(fmt.Sprintf("ir: Add operand widths differ: %d vs %d", lhsWidth, rhsWidth))
		}
		return lhsWidth + 1
	case OpSub, OpAnd, OpOr, OpXor, OpShl, OpShr:
		return lhsWidth
	case OpMul:
		return lhsWidth + rhsWidth
	case OpDiv:
		return lhsWidth
	case OpMod:
		return rhsWidth
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if lhsWidth != rhsWidth {
			panic(fmt.Sprintf("ir: comparison operand widths differ: %d vs %d", lhsWidth, rhsWidth))
		}
		return 1
	default:
		panic(fmt.Sprintf("ir: unknown binary op %v", op))
	}
}

func (e ExprFold) portDecls(typeOf func(ExprId) PortDecls) PortDecls { return typeOf(e.Init) }
func (e ExprTreeFold) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return typeOf(e.Lhs)
}
func (e ExprMap) portDecls(func(ExprId) PortDecls) PortDecls { return e.FnRet.Multiple(e.Len) }
func (e ExprRange) portDecls(func(ExprId) PortDecls) PortDecls {
	return e.EltTyp.Multiple(e.Len)
}
func (e ExprGet) portDecls(func(ExprId) PortDecls) PortDecls { return e.EltTyp }
func (e ExprClip) portDecls(func(ExprId) PortDecls) PortDecls {
	return e.EltTyp.Multiple(e.Size)
}
func (e ExprAppend) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	count := (typeOf(e.Lhs).Width() + typeOf(e.Rhs).Width()) / e.EltTyp.Width()
	return e.EltTyp.Multiple(count)
}
func (e ExprZip) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	fields := make([]PortDeclsField, len(e.Inner))
	for i, in := range e.Inner {
		fields[i] = UnnamedField(typeOf(in))
	}
	return StructDecl(fields...)
}
func (e ExprConcat) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	count := typeOf(e.Inner).Width() / e.EltTyp.Width()
	return e.EltTyp.Multiple(count)
}
func (e ExprChunk) portDecls(typeOf func(ExprId) PortDecls) PortDecls { return typeOf(e.Inner) }
func (e ExprRepr) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return UnsignedBits(typeOf(e.Inner).Width())
}
func (e ExprCond) portDecls(typeOf func(ExprId) PortDecls) PortDecls { return typeOf(e.Default) }
func (e ExprSet) portDecls(typeOf func(ExprId) PortDecls) PortDecls { return typeOf(e.Inner) }
func (e ExprSetRange) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return typeOf(e.Inner)
}
func (e ExprCase) portDecls(typeOf func(ExprId) PortDecls) PortDecls {
	if len(e.Items) == 0 {
		if e.Default == nil {
			panic("ir: Case with no items must have a default")
		}
		return typeOf(*e.Default)
	}
	return typeOf(e.Items[0].Val)
}
func (e ExprConcatArray) portDecls(func(ExprId) PortDecls) PortDecls {
	return e.EltTyp.Multiple(len(e.Inner))
}
func (e ExprCast) portDecls(func(ExprId) PortDecls) PortDecls { return BitsDecl(e.To) }

// PortDecls returns the node's computed type; typeOf resolves operand
// ids to their already-computed types (normally Store.TypeOf).
func (e Expr) PortDecls(typeOf func(ExprId) PortDecls) PortDecls {
	return e.Kind.portDecls(typeOf)
}

// Width is shorthand for PortDecls(typeOf).Width().
func (e Expr) Width(typeOf func(ExprId) PortDecls) int {
	return e.PortDecls(typeOf).Width()
}
