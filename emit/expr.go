package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/rtl"
	"github.com/hazardflow/hfc/thir"
)

// combState threads the pieces needed to translate one combinational
// ir.Expr tree into a sequence of rtl.Stmt (blocking assigns to fresh
// temporaries, plus conditional blocks for Cond/Case) within a single
// `always @*` body.
type combState struct {
	store *ir.Store
	ctx   *Context
	names map[string]rtl.Expr
	memo  map[ir.ExprId]rtl.Expr
	stmts *[]rtl.Stmt

	// funcs/mapFns let Map/Fold exprs re-lower their callee body against
	// a fresh per-element FsmCache, the same N-way static unrolling used
	// by FromFn/Seq replication.
	funcs  map[string]*thir.FunctionIR
	mapFns *lower.MapFnTable
}

func newCombState(store *ir.Store, ctx *Context, names map[string]rtl.Expr, stmts *[]rtl.Stmt, funcs map[string]*thir.FunctionIR, mapFns *lower.MapFnTable) *combState {
	return &combState{store: store, ctx: ctx, names: names, memo: make(map[ir.ExprId]rtl.Expr), stmts: stmts, funcs: funcs, mapFns: mapFns}
}

func (c *combState) translate(id ir.ExprId) (rtl.Expr, error) {
	if v, ok := c.memo[id]; ok {
		return v, nil
	}
	e := c.store.Get(id)
	width := e.Width(c.store.TypeOf)

	switch n := e.Kind.(type) {
	case ir.ExprX:
		return c.finish(id, rtl.Lit{Width: width, Value: 0})
	case ir.ExprConstant:
		return c.finish(id, rtl.Lit{Width: width, Value: packBits(n.Bits), Binary: true})
	case ir.ExprVar:
		if v, ok := c.names[n.Name]; ok {
			return c.finish(id, v)
		}
		return c.finish(id, rtl.Bare(n.Name))
	case ir.ExprRepeat:
		inner, err := c.translate(n.Inner)
		if err != nil {
			return nil, err
		}
		return c.finish(id, rtl.Repl{Count: n.Count, Elem: inner})
	case ir.ExprMember:
		return c.translateMember(id, n)
	case ir.ExprStruct:
		elems := make([]rtl.Expr, len(n.Fields))
		for i, f := range n.Fields {
			v, err := c.translate(f)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return c.finish(id, rtl.Concat{Elems: elems})
	case ir.ExprNot:
		inner, err := c.translate(n.Inner)
		if err != nil {
			return nil, err
		}
		return c.finish(id, rtl.UnaryOp{Op: "~", Operand: inner})
	case ir.ExprBinaryOp:
		lhs, err := c.translate(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := c.translate(n.Rhs)
		if err != nil {
			return nil, err
		}
		return c.finish(id, rtl.BinaryOp{Op: binOpStr(n.Op), Lhs: lhs, Rhs: rhs})
	case ir.ExprMap:
		return c.translateMap(id, n)
	case ir.ExprFold:
		return c.translateFold(id, n)
	case ir.ExprTreeFold:
		// No lowering path ever constructs ExprTreeFold (lower/magic.go's
		// Fold case always produces a flat ExprFold); kept as a
		// documented, genuinely unreachable fallback rather than wired to
		// a real reduction tree.
		return c.finish(id, rtl.Lit{Width: width, Value: 0})
	case ir.ExprRange:
		elems := make([]rtl.Expr, n.Len)
		for i := 0; i < n.Len; i++ {
			elems[n.Len-1-i] = rtl.Lit{Width: n.EltTyp.Width(), Value: uint64(i)}
		}
		return c.finish(id, rtl.Concat{Elems: elems})
	case ir.ExprGet:
		return c.translateDynamicSlice(id, n.Inner, n.EltTyp, n.Index)
	case ir.ExprClip:
		return c.translateClip(id, n)
	case ir.ExprAppend:
		lhs, err := c.translate(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := c.translate(n.Rhs)
		if err != nil {
			return nil, err
		}
		return c.finish(id, rtl.Concat{Elems: []rtl.Expr{rhs, lhs}})
	case ir.ExprZip:
		elems := make([]rtl.Expr, len(n.Inner))
		for i, in := range n.Inner {
			v, err := c.translate(in)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return c.finish(id, rtl.Concat{Elems: elems})
	case ir.ExprConcat:
		return c.translatePassthrough(id, n.Inner)
	case ir.ExprChunk:
		return c.translatePassthrough(id, n.Inner)
	case ir.ExprRepr:
		return c.translatePassthrough(id, n.Inner)
	case ir.ExprCond:
		return c.translateCond(id, n)
	case ir.ExprSet:
		return c.translateSet(id, n)
	case ir.ExprSetRange:
		return c.translateSetRange(id, n)
	case ir.ExprCase:
		return c.translateCase(id, n)
	case ir.ExprConcatArray:
		elems := make([]rtl.Expr, len(n.Inner))
		for i, in := range n.Inner {
			v, err := c.translate(in)
			if err != nil {
				return nil, err
			}
			elems[len(n.Inner)-1-i] = v
		}
		return c.finish(id, rtl.Concat{Elems: elems})
	case ir.ExprCast:
		return c.translatePassthrough(id, n.From)
	default:
		return nil, fmt.Errorf("emit: unhandled expr kind %T", n)
	}
}

func (c *combState) translatePassthrough(id, inner ir.ExprId) (rtl.Expr, error) {
	v, err := c.translate(inner)
	if err != nil {
		return nil, err
	}
	return c.finish(id, v)
}

func (c *combState) translateMember(id ir.ExprId, n ir.ExprMember) (rtl.Expr, error) {
	inner, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	fields := c.store.TypeOf(n.Inner).Fields()
	below := 0
	for i := n.Index + 1; i < len(fields); i++ {
		below += fields[i].Decl.Width()
	}
	myWidth := fields[n.Index].Decl.Width()
	if ident, ok := inner.(rtl.Ident); ok && !ident.Slice {
		return c.finish(id, rtl.Sliced(ident.Name, below, myWidth))
	}
	// inner isn't a bare identifier: materialise it into a temp first so
	// it can be sliced.
	tmp := c.ctx.Fresh("t")
	*c.stmts = append(*c.stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: inner})
	return c.finish(id, rtl.Sliced(tmp, below, myWidth))
}

// translateDynamicSlice handles Get/array-index access: for a
// compile-time-constant index it resolves to a direct bit-slice;
// otherwise it falls back to a shift-and-mask expansion.
func (c *combState) translateDynamicSlice(id ir.ExprId, inner ir.ExprId, eltTyp ir.PortDecls, index ir.ExprId) (rtl.Expr, error) {
	base, err := c.translate(inner)
	if err != nil {
		return nil, err
	}
	if k, ok := c.constIndex(index); ok {
		if ident, ok := base.(rtl.Ident); ok && !ident.Slice {
			return c.finish(id, rtl.Sliced(ident.Name, k*eltTyp.Width(), eltTyp.Width()))
		}
		tmp := c.ctx.Fresh("t")
		*c.stmts = append(*c.stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: base})
		return c.finish(id, rtl.Sliced(tmp, k*eltTyp.Width(), eltTyp.Width()))
	}
	idxExpr, err := c.translate(index)
	if err != nil {
		return nil, err
	}
	shiftAmt := rtl.BinaryOp{Op: "*", Lhs: idxExpr, Rhs: rtl.Lit{Width: 32, Value: uint64(eltTyp.Width())}}
	shifted := rtl.BinaryOp{Op: ">>", Lhs: base, Rhs: shiftAmt}
	return c.finish(id, rtl.BinaryOp{Op: "&", Lhs: shifted, Rhs: rtl.Lit{Width: eltTyp.Width(), Value: allOnes(eltTyp.Width()), Binary: true}})
}

func (c *combState) translateClip(id ir.ExprId, n ir.ExprClip) (rtl.Expr, error) {
	inner, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	if k, ok := c.constIndex(n.From); ok {
		if ident, ok := inner.(rtl.Ident); ok && !ident.Slice {
			return c.finish(id, rtl.Sliced(ident.Name, k*n.EltTyp.Width(), n.Size*n.EltTyp.Width()))
		}
		tmp := c.ctx.Fresh("t")
		*c.stmts = append(*c.stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: inner})
		return c.finish(id, rtl.Sliced(tmp, k*n.EltTyp.Width(), n.Size*n.EltTyp.Width()))
	}
	fromExpr, err := c.translate(n.From)
	if err != nil {
		return nil, err
	}
	shiftAmt := rtl.BinaryOp{Op: "*", Lhs: fromExpr, Rhs: rtl.Lit{Width: 32, Value: uint64(n.EltTyp.Width())}}
	shifted := rtl.BinaryOp{Op: ">>", Lhs: inner, Rhs: shiftAmt}
	width := n.Size * n.EltTyp.Width()
	return c.finish(id, rtl.BinaryOp{Op: "&", Lhs: shifted, Rhs: rtl.Lit{Width: width, Value: allOnes(width), Binary: true}})
}

// materialize returns a bare identifier naming e, declaring a fresh
// temporary assigned from e first if it is not already one.
func (c *combState) materialize(e rtl.Expr) string {
	if ident, ok := e.(rtl.Ident); ok && !ident.Slice {
		return ident.Name
	}
	tmp := c.ctx.Fresh("t")
	*c.stmts = append(*c.stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: e})
	return tmp
}

// translateMap unrolls an array map into Len independent replicas of
// the element function, each re-lowered against its own fresh FsmCache
// and its own slice of the input array — the same N-way static
// unrolling emitFromFn/emitSeq use to replicate a function body.
func (c *combState) translateMap(id ir.ExprId, n ir.ExprMap) (rtl.Expr, error) {
	fn := c.mapFns.Get(n.Fn)
	if fn == nil {
		return nil, fmt.Errorf("emit: map function id %d not registered", n.Fn)
	}
	params := fnParams(fn)
	if len(params) != 1 {
		return nil, fmt.Errorf("emit: map function must take one element parameter, got %d", len(params))
	}

	inner, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	innerName := c.materialize(inner)
	eltWidth := n.EltTyp.Width()

	elems := make([]rtl.Expr, n.Len)
	for i := 0; i < n.Len; i++ {
		cache := ir.NewFsmCache(c.store)
		eltVar := ir.InputVar(cache, params[0].Name, n.EltTyp, ir.Span{})
		names := map[string]rtl.Expr{
			params[0].Name: rtl.Sliced(innerName, i*eltWidth, eltWidth),
		}
		result, _, err := lower.Build(cache, c.funcs, fn, []lower.PureValue{lower.ExprValue(eltVar)}, c.mapFns)
		if err != nil {
			return nil, fmt.Errorf("lowering map element %d: %w", i, err)
		}
		step := newCombState(c.store, c.ctx, names, c.stmts, c.funcs, c.mapFns)
		elemExpr, err := step.translate(result)
		if err != nil {
			return nil, err
		}
		elems[n.Len-1-i] = elemExpr
	}
	return c.finish(id, rtl.Concat{Elems: elems})
}

// translateFold unrolls an array fold into a sequential chain of
// replicas, threading the accumulator from one element's result into
// the next element's input, mirroring emitSeq's carry chain.
func (c *combState) translateFold(id ir.ExprId, n ir.ExprFold) (rtl.Expr, error) {
	fn := c.mapFns.Get(n.Fn)
	if fn == nil {
		return nil, fmt.Errorf("emit: fold function id %d not registered", n.Fn)
	}
	params := fnParams(fn)
	if len(params) != 2 {
		return nil, fmt.Errorf("emit: fold function must take (acc, elem), got %d", len(params))
	}

	inner, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	innerName := c.materialize(inner)
	eltWidth := n.EltTyp.Width()
	innerLen := c.store.TypeOf(n.Inner).Width() / eltWidth

	acc, err := c.translate(n.Init)
	if err != nil {
		return nil, err
	}
	accDecl := c.store.TypeOf(n.Init)

	for i := 0; i < innerLen; i++ {
		cache := ir.NewFsmCache(c.store)
		accVar := ir.InputVar(cache, params[0].Name, accDecl, ir.Span{})
		eltVar := ir.InputVar(cache, params[1].Name, n.EltTyp, ir.Span{})
		accName := c.materialize(acc)
		names := map[string]rtl.Expr{
			params[0].Name: rtl.Bare(accName),
			params[1].Name: rtl.Sliced(innerName, i*eltWidth, eltWidth),
		}
		result, _, err := lower.Build(cache, c.funcs, fn, []lower.PureValue{lower.ExprValue(accVar), lower.ExprValue(eltVar)}, c.mapFns)
		if err != nil {
			return nil, fmt.Errorf("lowering fold element %d: %w", i, err)
		}
		step := newCombState(c.store, c.ctx, names, c.stmts, c.funcs, c.mapFns)
		acc, err = step.translate(result)
		if err != nil {
			return nil, err
		}
	}
	return c.finish(id, acc)
}

func (c *combState) translateSet(id ir.ExprId, n ir.ExprSet) (rtl.Expr, error) {
	base, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	eltTyp := c.store.TypeOf(n.Elt)
	k, ok := c.constIndex(n.Index)
	if !ok {
		// Dynamic-index Set on a variable is handled as a non-blocking
		// memory write by the caller (Fsm emission); as a plain
		// expression it falls back to the unmodified base.
		return c.finish(id, base)
	}
	total := c.store.TypeOf(n.Inner).Width()
	newElt, err := c.translate(n.Elt)
	if err != nil {
		return nil, err
	}
	below := k * eltTyp.Width()
	above := total - below - eltTyp.Width()
	var parts []rtl.Expr
	if above > 0 {
		parts = append(parts, sliceOf(base, below+eltTyp.Width(), above))
	}
	parts = append(parts, newElt)
	if below > 0 {
		parts = append(parts, sliceOf(base, 0, below))
	}
	return c.finish(id, rtl.Concat{Elems: parts})
}

func (c *combState) translateSetRange(id ir.ExprId, n ir.ExprSetRange) (rtl.Expr, error) {
	base, err := c.translate(n.Inner)
	if err != nil {
		return nil, err
	}
	k, ok := c.constIndex(n.Index)
	if !ok {
		return c.finish(id, base)
	}
	total := c.store.TypeOf(n.Inner).Width()
	newElts, err := c.translate(n.Elts)
	if err != nil {
		return nil, err
	}
	eltsWidth := c.store.TypeOf(n.Elts).Width()
	below := k * n.EltTyp.Width()
	above := total - below - eltsWidth
	var parts []rtl.Expr
	if above > 0 {
		parts = append(parts, sliceOf(base, below+eltsWidth, above))
	}
	parts = append(parts, newElts)
	if below > 0 {
		parts = append(parts, sliceOf(base, 0, below))
	}
	return c.finish(id, rtl.Concat{Elems: parts})
}

func sliceOf(e rtl.Expr, base, width int) rtl.Expr {
	if ident, ok := e.(rtl.Ident); ok && !ident.Slice {
		return rtl.Sliced(ident.Name, base, width)
	}
	return e
}

// translateCond lowers an ExprCond into an if/else-if chain assigning a
// fresh temp, emitted into the enclosing always block.
func (c *combState) translateCond(id ir.ExprId, n ir.ExprCond) (rtl.Expr, error) {
	tmp := c.ctx.Fresh("t")
	stmt, err := c.condChain(n.Arms, n.Default, tmp)
	if err != nil {
		return nil, err
	}
	*c.stmts = append(*c.stmts, stmt)
	return c.finish(id, rtl.Bare(tmp))
}

func (c *combState) condChain(arms []ir.ExprCondArm, def ir.ExprId, tmp string) (rtl.Stmt, error) {
	if len(arms) == 0 {
		v, err := c.translate(def)
		if err != nil {
			return nil, err
		}
		return rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: v}, nil
	}
	arm := arms[0]
	cond, err := c.translate(arm.Cond)
	if err != nil {
		return nil, err
	}
	val, err := c.translate(arm.Val)
	if err != nil {
		return nil, err
	}
	rest, err := c.condChain(arms[1:], def, tmp)
	if err != nil {
		return nil, err
	}
	return rtl.If{
		Cond: cond,
		Then: []rtl.Stmt{rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: val}},
		Else: []rtl.Stmt{rest},
	}, nil
}

func (c *combState) translateCase(id ir.ExprId, n ir.ExprCase) (rtl.Expr, error) {
	tmp := c.ctx.Fresh("t")
	var def ir.ExprId
	if n.Default != nil {
		def = *n.Default
	} else if len(n.Items) > 0 {
		def = n.Items[len(n.Items)-1].Val
	}
	arms := make([]ir.ExprCondArm, len(n.Items))
	for i, it := range n.Items {
		arms[i] = ir.ExprCondArm{Cond: it.Cond, Val: it.Val}
	}
	stmt, err := c.condChain(arms, def, tmp)
	if err != nil {
		return nil, err
	}
	*c.stmts = append(*c.stmts, stmt)
	return c.finish(id, rtl.Bare(tmp))
}

func (c *combState) constIndex(id ir.ExprId) (int, bool) {
	k, ok := c.store.Get(id).Kind.(ir.ExprConstant)
	if !ok {
		return 0, false
	}
	return int(packBits(k.Bits)), true
}

func (c *combState) finish(id ir.ExprId, v rtl.Expr) (rtl.Expr, error) {
	c.memo[id] = v
	return v, nil
}

func packBits(bits []bool) uint64 {
	var v uint64
	for i, b := range bits {
		if i >= 64 {
			break
		}
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

func binOpStr(op ir.BinaryOp) string {
	switch op {
	case ir.OpAdd:
		return "+"
	case ir.OpSub:
		return "-"
	case ir.OpMul:
		return "*"
	case ir.OpDiv:
		return "/"
	case ir.OpMod:
		return "%"
	case ir.OpAnd:
		return "&"
	case ir.OpOr:
		return "|"
	case ir.OpXor:
		return "^"
	case ir.OpShl:
		return "<<"
	case ir.OpShr:
		return ">>"
	case ir.OpEq:
		return "=="
	case ir.OpNe:
		return "!="
	case ir.OpLt:
		return "<"
	case ir.OpLe:
		return "<="
	case ir.OpGt:
		return ">"
	case ir.OpGe:
		return ">="
	default:
		return "?"
	}
}
