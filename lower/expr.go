package lower

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// lowerExpr recursively lowers one typed-IR expression into an
// ir.ExprId.
func (b *FunctionBuilder) lowerExpr(e thir.Expr) (ir.ExprId, error) {
	span := toSpan(e.Pos())
	switch n := e.(type) {
	case *thir.Lit:
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		if decl.IsSigned() {
			return b.cache.Alloc(ir.Expr{Kind: ir.ExprConstant{Bits: n.Bits, Typ: ir.SignedBits(len(n.Bits))}, Span: span}), nil
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprConstant{Bits: n.Bits, Typ: ir.UnsignedBits(len(n.Bits))}, Span: span}), nil

	case *thir.Tuple:
		ids := make([]ir.ExprId, len(n.Elems))
		for i, el := range n.Elems {
			id, err := b.lowerExpr(el)
			if err != nil {
				return 0, err
			}
			ids[i] = id
		}
		names := make([]*string, len(ids))
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprStruct{Names: names, Fields: ids}, Span: span}), nil

	case *thir.StructCtor:
		names := make([]*string, len(n.Fields))
		ids := make([]ir.ExprId, len(n.Fields))
		for i, f := range n.Fields {
			id, err := b.lowerExpr(f.Val)
			if err != nil {
				return 0, err
			}
			name := f.Name
			names[i] = &name
			ids[i] = id
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprStruct{Names: names, Fields: ids}, Span: span}), nil

	case *thir.EnumCtor:
		// The struct built here has one slot per declared variant (not
		// just the active one): two EnumCtors of the same enum type
		// must produce ExprStruct values of identical shape regardless
		// of which variant each constructs, so that later consumers
		// (EnumEq, a Match scrutinee, a port driving two different
		// constructions) see one consistent width. The active variant's
		// slot holds its real fields; every other slot holds an X of
		// that variant's own payload width.
		discrimWidth := clog2(n.NumVariants)
		discrim := b.cache.Alloc(ir.Expr{Kind: ir.ExprConstant{
			Bits: widthBits(n.VariantIndex, discrimWidth), Typ: ir.UnsignedBits(discrimWidth),
		}, Span: span})

		variantDecls, variantNames, err := enumVariantDecls(n.Type())
		if err != nil {
			return 0, err
		}

		names := make([]*string, 0, n.NumVariants+1)
		ids := make([]ir.ExprId, 0, n.NumVariants+1)
		discName := "discriminant"
		names = append(names, &discName)
		ids = append(ids, discrim)

		for i := 0; i < n.NumVariants; i++ {
			name := variantNames[i]
			var slot ir.ExprId
			if i == n.VariantIndex {
				fieldNames := make([]*string, len(n.Fields))
				fieldIds := make([]ir.ExprId, len(n.Fields))
				for j, f := range n.Fields {
					id, err := b.lowerExpr(f.Val)
					if err != nil {
						return 0, err
					}
					fname := f.Name
					fieldNames[j] = &fname
					fieldIds[j] = id
				}
				slot = b.cache.Alloc(ir.Expr{Kind: ir.ExprStruct{Names: fieldNames, Fields: fieldIds}, Span: span})
			} else {
				slot = b.cache.Alloc(ir.Expr{Kind: ir.ExprX{Typ: variantDecls[i]}, Span: span})
			}
			names = append(names, &name)
			ids = append(ids, slot)
		}

		return b.cache.Alloc(ir.Expr{Kind: ir.ExprStruct{Names: names, Fields: ids}, Span: span}), nil

	case *thir.Field:
		base, err := b.lowerExpr(n.Base)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: base, Index: n.Index}, Span: span}), nil

	case *thir.Index:
		base, err := b.lowerExpr(n.Base)
		if err != nil {
			return 0, err
		}
		idx, err := b.lowerExpr(n.Index)
		if err != nil {
			return 0, err
		}
		eltTyp, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprGet{Inner: base, EltTyp: eltTyp, Index: idx}, Span: span}), nil

	case *thir.If:
		cond, err := b.lowerExpr(n.Cond)
		if err != nil {
			return 0, err
		}
		then, err := b.lowerExpr(n.Then)
		if err != nil {
			return 0, err
		}
		elseVal, err := b.lowerExpr(n.Else)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{
			Kind: ir.ExprCond{Arms: []ir.ExprCondArm{{Cond: cond, Val: then}}, Default: elseVal},
			Span: span,
		}), nil

	case *thir.Match:
		return b.lowerMatch(n, span)

	case *thir.Var:
		v, ok := b.binds[n.Name]
		if !ok {
			return 0, errf(n.Pos(), "unbound variable %q", n.Name)
		}
		if v.IsFn {
			return 0, errf(n.Pos(), "variable %q is a function value, not a plain expression", n.Name)
		}
		return v.Expr, nil

	case *thir.Upvar:
		v, ok := b.binds[n.Name]
		if !ok {
			return 0, errf(n.Pos(), "unbound upvar %q", n.Name)
		}
		return v.Expr, nil

	case *thir.BinOp:
		return b.lowerBinOp(n, span)

	case *thir.UnOp:
		base, err := b.lowerExpr(n.Base)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case thir.UnNot:
			return b.cache.Alloc(ir.Expr{Kind: ir.ExprNot{Inner: base}, Span: span}), nil
		case thir.UnNeg:
			zero := ir.UnsignedBitsLiteral(b.cache, []bool{false}, span)
			return b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpSub, Lhs: zero, Rhs: base}, Span: span}), nil
		default:
			return 0, errf(n.Pos(), "unknown unary op %d", n.Op)
		}

	case *thir.Cast:
		base, err := b.lowerExpr(n.Base)
		if err != nil {
			return 0, err
		}
		// An enum cast only reinterprets the discriminant member; the
		// payload fields of a Struct-encoded enum are otherwise opaque.
		baseDecl, err := portDeclsOf(n.Base.Type())
		if err == nil && baseDecl.IsStruct() {
			base = b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: base, Index: 0}, Span: span})
		}
		toDecl, err := portDeclsOf(n.To)
		if err != nil {
			return 0, err
		}
		if !toDecl.IsBits() {
			return 0, errf(n.Pos(), "cast target must be a flat bit vector")
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprCast{From: base, To: toDecl.Shape()}, Span: span}), nil

	case *thir.Closure:
		upvars := make(map[string]PureValue, len(n.Upvars))
		for _, name := range n.Upvars {
			v, ok := b.binds[name]
			if !ok {
				return 0, errf(n.Pos(), "closure captures unbound upvar %q", name)
			}
			upvars[name] = v
		}
		_ = &Fn{Kind: FnClosure, Params: n.Params, Body: n.Body, Upvars: upvars}
		return 0, errf(n.Pos(), "a closure value cannot be lowered directly; it must be bound and applied via Call")

	case *thir.Call:
		return b.lowerCall(n, span)

	case *thir.ArrayLit:
		ids := make([]ir.ExprId, len(n.Elems))
		for i, el := range n.Elems {
			id, err := b.lowerExpr(el)
			if err != nil {
				return 0, err
			}
			ids[i] = id
		}
		eltTyp, err := portDeclsOf(n.Type())
		if err != nil {
			return 0, err
		}
		if eltTyp.IsBits() {
			eltTyp = eltTyp.Divide(len(ids))
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprConcatArray{Inner: ids, EltTyp: eltTyp}, Span: span}), nil

	case *thir.Let:
		return b.lowerLet(n, span)

	case *thir.Return:
		// Explicit returns are already captured by Preprocess and
		// folded into the top-level Cond by combineReturns; in tail
		// position during ordinary recursion they contribute a
		// don't-care placeholder that the enclosing Cond arm replaces.
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			decl = ir.Unit()
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprX{Typ: decl}, Span: span}), nil

	case *thir.SystemTask:
		return ir.UnitExpr(b.cache, span), nil

	default:
		return 0, fmt.Errorf("lower: unhandled expression kind %T", e)
	}
}

func (b *FunctionBuilder) lowerBinOp(n *thir.BinOp, span ir.Span) (ir.ExprId, error) {
	lhs, err := b.lowerExpr(n.Lhs)
	if err != nil {
		return 0, err
	}
	rhs, err := b.lowerExpr(n.Rhs)
	if err != nil {
		return 0, err
	}
	op, ok := binOpMap[n.Op]
	if !ok {
		return 0, errf(n.Pos(), "unknown binary op %d", n.Op)
	}
	result := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: op, Lhs: lhs, Rhs: rhs}, Span: span})

	// Add/Mul/Mod widen implicitly; a trailing resize clamps to the
	// user-typed output width.
	switch op {
	case ir.OpAdd, ir.OpMul, ir.OpMod:
		decl, err := portDeclsOf(n.Type())
		if err != nil {
			return result, nil
		}
		from := b.cache.TypeOf(result).Width()
		return ir.Resize(b.cache, result, from, decl.Width(), span), nil
	default:
		return result, nil
	}
}

var binOpMap = map[thir.BinOpKind]ir.BinaryOp{
	thir.BinAdd: ir.OpAdd, thir.BinSub: ir.OpSub, thir.BinMul: ir.OpMul,
	thir.BinDiv: ir.OpDiv, thir.BinMod: ir.OpMod,
	thir.BinAnd: ir.OpAnd, thir.BinOr: ir.OpOr, thir.BinXor: ir.OpXor,
	thir.BinShl: ir.OpShl, thir.BinShr: ir.OpShr,
	thir.BinEq: ir.OpEq, thir.BinNe: ir.OpNe,
	thir.BinLt: ir.OpLt, thir.BinLe: ir.OpLe, thir.BinGt: ir.OpGt, thir.BinGe: ir.OpGe,
	thir.BinLogicalAnd: ir.OpAnd, thir.BinLogicalOr: ir.OpOr,
}

func (b *FunctionBuilder) lowerMatch(n *thir.Match, span ir.Span) (ir.ExprId, error) {
	scrutinee, err := b.lowerExpr(n.Scrutinee)
	if err != nil {
		return 0, err
	}

	var arms []ir.ExprCondArm
	var def *ir.ExprId
	for _, arm := range n.Arms {
		saved := b.saveBinds(bindNames(arm.Pat))
		if err := b.bindPattern(arm.Pat, scrutinee); err != nil {
			return 0, err
		}

		test, err := b.patternTest(arm.Pat, scrutinee)
		if err != nil {
			return 0, err
		}
		if arm.Guard != nil {
			guard, err := b.lowerExpr(arm.Guard)
			if err != nil {
				return 0, err
			}
			test = b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: test, Rhs: guard}})
		}

		val, err := b.lowerExpr(arm.Body)
		if err != nil {
			return 0, err
		}
		b.restoreBinds(saved)

		if isWildArm(arm.Pat) && arm.Guard == nil {
			def = &val
			continue
		}
		arms = append(arms, ir.ExprCondArm{Cond: test, Val: val})
	}
	if def == nil {
		if len(arms) == 0 {
			return 0, errf(n.Pos(), "match has no arms")
		}
		last := arms[len(arms)-1]
		def = &last.Val
		arms = arms[:len(arms)-1]
	}
	return b.cache.Alloc(ir.Expr{Kind: ir.ExprCond{Arms: arms, Default: *def}, Span: span}), nil
}

func isWildArm(p thir.Pat) bool {
	_, ok := p.(thir.Wild)
	return ok
}

func bindNames(p thir.Pat) []string {
	switch n := p.(type) {
	case thir.Bind:
		return []string{n.Name}
	case thir.EnumVariant:
		var out []string
		for _, f := range n.Fields {
			out = append(out, bindNames(f)...)
		}
		return out
	case thir.TuplePat:
		var out []string
		for _, f := range n.Elems {
			out = append(out, bindNames(f)...)
		}
		return out
	case thir.Or:
		if len(n.Alts) == 0 {
			return nil
		}
		return bindNames(n.Alts[0])
	default:
		return nil
	}
}

func (b *FunctionBuilder) saveBinds(names []string) map[string]PureValue {
	saved := make(map[string]PureValue, len(names))
	for _, n := range names {
		if v, ok := b.binds[n]; ok {
			saved[n] = v
		}
	}
	return saved
}

func (b *FunctionBuilder) restoreBinds(saved map[string]PureValue) {
	for n, v := range saved {
		b.binds[n] = v
	}
}

func (b *FunctionBuilder) lowerLet(n *thir.Let, span ir.Span) (ir.ExprId, error) {
	init, err := b.lowerExpr(n.Init)
	if err != nil {
		return 0, err
	}
	if n.Else == nil {
		saved := b.saveBinds(bindNames(n.Pat))
		if err := b.bindPattern(n.Pat, init); err != nil {
			return 0, err
		}
		val, err := b.lowerExpr(n.Body)
		b.restoreBinds(saved)
		return val, err
	}

	test, err := b.patternTest(n.Pat, init)
	if err != nil {
		return 0, err
	}
	saved := b.saveBinds(bindNames(n.Pat))
	if err := b.bindPattern(n.Pat, init); err != nil {
		return 0, err
	}
	then, err := b.lowerExpr(n.Body)
	b.restoreBinds(saved)
	if err != nil {
		return 0, err
	}
	elseVal, err := b.lowerExpr(n.Else)
	if err != nil {
		return 0, err
	}
	return b.cache.Alloc(ir.Expr{
		Kind: ir.ExprCond{Arms: []ir.ExprCondArm{{Cond: test, Val: then}}, Default: elseVal},
		Span: span,
	}), nil
}

func toSpan(s thir.Span) ir.Span {
	return ir.Span{File: s.File, Line: s.Line, Col: s.Col}
}
