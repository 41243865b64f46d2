package lower

import (
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// lowerMagicCall dispatches the built-in primitives tagged ArrayMagic,
// IntMagic, AdtMagic, and XMagic.
func (b *FunctionBuilder) lowerMagicCall(n *thir.Call, span ir.Span) (ir.ExprId, error) {
	args, err := b.lowerArgs(n)
	if err != nil {
		return 0, err
	}
	expr := func(i int) ir.ExprId { return args[i].Expr }

	switch n.MagicName {
	case "X":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprX{Typ: decl}, Span: span}), nil

	case "Range":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		eltTyp := decl
		if decl.IsBits() {
			eltTyp = decl.Divide(decl.Shape().Dims[0])
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprRange{Len: decl.Shape().Dims[0], EltTyp: eltTyp}, Span: span}), nil

	case "Zip":
		ids := make([]ir.ExprId, len(args))
		typs := make([]ir.PortDecls, len(args))
		for i, a := range args {
			ids[i] = a.Expr
			typs[i] = b.cache.TypeOf(a.Expr)
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprZip{Inner: ids, EltTyp: typs}, Span: span}), nil

	case "Map":
		fn := args[len(args)-1].Fn
		inner := expr(0)
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		innerDecl := b.cache.TypeOf(inner)
		eltTyp := innerDecl
		if innerDecl.IsBits() {
			eltTyp = innerDecl.Divide(innerDecl.Shape().Dims[0])
		}
		fid, err := b.registerMapFn(fn)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprMap{
			Inner: inner, EltTyp: eltTyp, FnRet: decl, Len: decl.Shape().Dims[0], Fn: fid,
		}, Span: span}), nil

	case "Fold":
		fn := args[len(args)-1].Fn
		inner := expr(0)
		init := expr(1)
		innerDecl := b.cache.TypeOf(inner)
		eltTyp := innerDecl
		if innerDecl.IsBits() {
			eltTyp = innerDecl.Divide(innerDecl.Shape().Dims[0])
		}
		fid, err := b.registerMapFn(fn)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprFold{Inner: inner, EltTyp: eltTyp, Init: init, Fn: fid}, Span: span}), nil

	case "Chunk":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprChunk{Inner: expr(0), ChunkSize: decl.Shape().Dims[len(decl.Shape().Dims)-1]}, Span: span}), nil

	case "Concat":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		eltTyp := decl
		if decl.IsBits() {
			eltTyp = decl.Divide(decl.Shape().Dims[0])
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprConcat{Inner: expr(0), EltTyp: eltTyp}, Span: span}), nil

	case "Resize":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		from := expr(0)
		fromWidth := b.cache.TypeOf(from).Width()
		return ir.Resize(b.cache, from, fromWidth, decl.Width(), span), nil

	case "Set":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprSet{Inner: expr(0), Index: expr(1), Elt: expr(2)}, Span: span}), nil

	case "SetRange":
		innerDecl := b.cache.TypeOf(expr(0))
		eltTyp := innerDecl
		if innerDecl.IsBits() {
			eltTyp = innerDecl.Divide(innerDecl.Shape().Dims[0])
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprSetRange{Inner: expr(0), EltTyp: eltTyp, Index: expr(1), Elts: expr(2)}, Span: span}), nil

	case "ClipConst":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		eltTyp := decl
		size := 1
		if decl.IsBits() {
			dims := decl.Shape().Dims
			size = dims[0]
			eltTyp = decl.Divide(size)
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprClip{Inner: expr(0), EltTyp: eltTyp, From: expr(1), Size: size}, Span: span}), nil

	case "Append":
		innerDecl := b.cache.TypeOf(expr(0))
		eltTyp := innerDecl
		if innerDecl.IsBits() {
			eltTyp = innerDecl.Divide(innerDecl.Shape().Dims[0])
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprAppend{Lhs: expr(0), Rhs: expr(1), EltTyp: eltTyp}, Span: span}), nil

	case "From":
		return expr(0), nil

	case "Index":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprGet{Inner: expr(0), EltTyp: decl, Index: expr(1)}, Span: span}), nil

	case "BitOr":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpOr, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil
	case "BitAnd":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil
	case "BitXor":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpXor, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil

	case "Repeat":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprRepeat{Inner: expr(0), Count: decl.Shape().Dims[0]}, Span: span}), nil

	case "Eq":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil
	case "Ne":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpNe, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil

	case "EnumEq":
		return b.lowerEnumEq(expr(0), expr(1), span)
	case "EnumNe":
		eq, err := b.lowerEnumEq(expr(0), expr(1), span)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprNot{Inner: eq}, Span: span}), nil

	case "Convert":
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprCast{From: expr(0), To: decl.Shape()}, Span: span}), nil
	case "Not":
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprNot{Inner: expr(0)}, Span: span}), nil

	case "Add", "Sub", "Mul", "Div", "Mod", "Shl", "Shr", "Lt", "Le", "Gt", "Ge":
		op := intBinOpMap[n.MagicName]
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: op, Lhs: expr(0), Rhs: expr(1)}, Span: span}), nil

	default:
		return 0, errf(n.Pos(), "unknown magic primitive %q", n.MagicName)
	}
}

var intBinOpMap = map[string]ir.BinaryOp{
	"Add": ir.OpAdd, "Sub": ir.OpSub, "Mul": ir.OpMul, "Div": ir.OpDiv, "Mod": ir.OpMod,
	"Shl": ir.OpShl, "Shr": ir.OpShr, "Lt": ir.OpLt, "Le": ir.OpLe, "Gt": ir.OpGt, "Ge": ir.OpGe,
}

// registerMapFn allocates a FunctionId for a Map/Fold function
// argument. FunctionId is an opaque key and ir itself does not store Fn
// values; the builder delegates to the module-scoped MapFnTable so the emit
// stage can later resolve the same id back to its live *Fn, even from a
// fresh FunctionBuilder re-lowering the same function body.
func (b *FunctionBuilder) registerMapFn(fn *Fn) (ir.FunctionId, error) {
	return b.mapFns.Register(fn)
}

// lowerEnumEq compiles structural enum equality: discriminants equal,
// AND, across every declared variant, the discriminant matches that
// variant's index AND that variant's payload slot compares equal. The
// payload term only needs lhs's own discriminant, since it is ANDed
// against discriminantsEqual; a mismatched inactive slot (filled with X
// on construction) never contributes once its variant term is excluded.
func (b *FunctionBuilder) lowerEnumEq(lhs, rhs ir.ExprId, span ir.Span) (ir.ExprId, error) {
	decl := b.cache.TypeOf(lhs)
	if !decl.IsStruct() || len(decl.Fields()) < 1 {
		return 0, errf(thir.Span{}, "EnumEq operand has no discriminant slot")
	}
	fields := decl.Fields()
	numVariants := len(fields) - 1
	discrimWidth := fields[0].Decl.Width()

	lhsDiscrim := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: lhs, Index: 0}, Span: span})
	rhsDiscrim := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: rhs, Index: 0}, Span: span})
	discrimEq := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: lhsDiscrim, Rhs: rhsDiscrim}, Span: span})

	if numVariants == 0 {
		return discrimEq, nil
	}

	var payloadEq ir.ExprId
	for i := 0; i < numVariants; i++ {
		want := ir.UnsignedBitsLiteral(b.cache, widthBits(i, discrimWidth), span)
		isVariant := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: lhsDiscrim, Rhs: want}, Span: span})
		lhsSlot := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: lhs, Index: i + 1}, Span: span})
		rhsSlot := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: rhs, Index: i + 1}, Span: span})
		slotEq := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: lhsSlot, Rhs: rhsSlot}, Span: span})
		term := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: isVariant, Rhs: slotEq}, Span: span})
		if i == 0 {
			payloadEq = term
			continue
		}
		payloadEq = b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpOr, Lhs: payloadEq, Rhs: term}, Span: span})
	}
	return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: discrimEq, Rhs: payloadEq}, Span: span}), nil
}
