package lower

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// FunctionBuilder lowers one function body into a hash-consed ir.Expr
// tree. It owns the bindings visible while walking that one body;
// nested local-function calls get their own FunctionBuilder sharing the
// same cache so that exprs still hash-cons across the call boundary.
type FunctionBuilder struct {
	cache  *ir.FsmCache
	thir   *ir.ThirCache
	funcs  map[string]*thir.FunctionIR
	binds  map[string]PureValue
	tasks  []ir.SystemTask
	mapFns *MapFnTable
}

// MapFnTable is a module-scoped registry of Map/Fold function values. A
// module's FunctionId space is shared across every FunctionBuilder that
// lowers part of it, so the table is constructed once per module and
// threaded through every lower.Build call for that module's lifetime:
// ids minted while building the graph must still resolve when emit
// re-lowers an Fsm/Seq/FromFn body later with a fresh FunctionBuilder.
type MapFnTable struct {
	fns []*Fn
}

// NewMapFnTable constructs an empty, module-scoped Map/Fold registry.
func NewMapFnTable() *MapFnTable {
	return &MapFnTable{}
}

// Register allocates a FunctionId for fn and appends it to the table.
func (t *MapFnTable) Register(fn *Fn) (ir.FunctionId, error) {
	if fn == nil {
		return 0, fmt.Errorf("lower: expected a function argument")
	}
	id := ir.FunctionId(len(t.fns))
	t.fns = append(t.fns, fn)
	return id, nil
}

// Get resolves a FunctionId allocated by Register back to its *Fn.
func (t *MapFnTable) Get(id ir.FunctionId) *Fn {
	return t.fns[int(id)]
}

// NewFunctionBuilder constructs a builder over the given module-scoped
// cache and function table (every FunctionIR transitively reachable
// from the design root, keyed by name). mapFns is the module's shared
// Map/Fold registry; every builder lowering part of the same module
// must share the same table.
func NewFunctionBuilder(cache *ir.FsmCache, funcs map[string]*thir.FunctionIR, mapFns *MapFnTable) *FunctionBuilder {
	return &FunctionBuilder{
		cache:  cache,
		thir:   ir.NewThirCache(),
		funcs:  funcs,
		binds:  make(map[string]PureValue),
		mapFns: mapFns,
	}
}

// Build lowers fn applied to args, returning the result expr and every
// system task recorded along the way.
func Build(cache *ir.FsmCache, funcs map[string]*thir.FunctionIR, fn *Fn, args []PureValue, mapFns *MapFnTable) (ir.ExprId, []ir.SystemTask, error) {
	b := NewFunctionBuilder(cache, funcs, mapFns)
	return b.build(fn, args)
}

func (b *FunctionBuilder) build(fn *Fn, args []PureValue) (ir.ExprId, []ir.SystemTask, error) {
	params, body, err := b.bindArgs(fn, args)
	if err != nil {
		return 0, nil, err
	}
	_ = params

	pre := Preprocess(body)

	result, err := b.lowerExpr(body)
	if err != nil {
		return 0, nil, err
	}

	result, err = b.combineReturns(result, pre.Returns)
	if err != nil {
		return 0, nil, err
	}

	if err := b.lowerSystemTasks(pre.SystemTasks); err != nil {
		return 0, nil, err
	}

	return result, b.tasks, nil
}

func (b *FunctionBuilder) bindArgs(fn *Fn, args []PureValue) ([]thir.Param, thir.Expr, error) {
	var params []thir.Param
	var body thir.Expr
	switch fn.Kind {
	case FnLocal:
		params = fn.Def.Params
		body = fn.Def.Body
	case FnClosure:
		params = fn.Params
		body = fn.Body
		for name, v := range fn.Upvars {
			b.binds[name] = v
		}
	}
	if len(params) != len(args) {
		return nil, nil, fmt.Errorf("lower: argument count mismatch: want %d, got %d", len(params), len(args))
	}
	for i, p := range params {
		b.binds[p.Name] = args[i]
	}
	return params, body, nil
}

// combineReturns folds the body's tail value and every recorded
// explicit return into one Cond: one arm per explicit return keyed by
// its path condition, default = the tail value.
func (b *FunctionBuilder) combineReturns(tail ir.ExprId, returns []ExplicitReturn) (ir.ExprId, error) {
	if len(returns) == 0 {
		return tail, nil
	}
	arms := make([]ir.ExprCondArm, 0, len(returns))
	for _, ret := range returns {
		val, err := b.lowerExpr(ret.Value)
		if err != nil {
			return 0, err
		}
		cond, err := b.combineConditions(ret.PathConds)
		if err != nil {
			return 0, err
		}
		arms = append(arms, ir.ExprCondArm{Cond: cond, Val: val})
	}
	return b.cache.Alloc(ir.Expr{Kind: ir.ExprCond{Arms: arms, Default: tail}}), nil
}

func (b *FunctionBuilder) lowerSystemTasks(infos []SystemTaskInfo) error {
	for _, info := range infos {
		var pathCond *ir.ExprId
		if len(info.PathConds) > 0 {
			c, err := b.combineConditions(info.PathConds)
			if err != nil {
				return err
			}
			pathCond = &c
		}
		var args []ir.ExprId
		if info.Arg != nil {
			a, err := b.lowerExpr(info.Arg)
			if err != nil {
				return err
			}
			args = append(args, a)
		}
		if info.Kind == thir.SystemTaskAssert {
			cond, err := b.lowerExpr(info.Cond)
			if err != nil {
				return err
			}
			args = append([]ir.ExprId{cond}, args...)
		}
		kind := ir.SystemTaskDisplay
		if info.Kind == thir.SystemTaskAssert {
			kind = ir.SystemTaskAssert
		}
		b.tasks = append(b.tasks, ir.SystemTask{
			Kind: kind, Fstring: info.Fstring, PathCond: pathCond, Args: args,
			Span: ir.Span{File: info.Span.File, Line: info.Span.Line, Col: info.Span.Col},
		})
	}
	return nil
}

// combineConditions ANDs together every frame of a path-condition
// snapshot, lazily: a single frame needs no And at all.
func (b *FunctionBuilder) combineConditions(conds []Condition) (ir.ExprId, error) {
	var acc *ir.ExprId
	for _, c := range conds {
		id, err := b.lowerCondition(c)
		if err != nil {
			return 0, err
		}
		acc = ir.AddPathCond(b.cache, acc, id, ir.Span{})
	}
	if acc == nil {
		return b.trueConst(), nil
	}
	return *acc, nil
}

func (b *FunctionBuilder) trueConst() ir.ExprId {
	return ir.UnsignedBitsLiteral(b.cache, []bool{true}, ir.Span{})
}

func (b *FunctionBuilder) lowerCondition(c Condition) (ir.ExprId, error) {
	switch c.Kind {
	case CondExpr:
		return b.lowerExpr(c.Expr)
	case CondMatches:
		scrutinee, err := b.lowerExpr(c.On)
		if err != nil {
			return 0, err
		}
		return b.patternTest(c.Pat, scrutinee)
	case CondNot:
		inner, err := b.lowerCondition(*c.Inner)
		if err != nil {
			return 0, err
		}
		return b.cache.Alloc(ir.Expr{Kind: ir.ExprNot{Inner: inner}}), nil
	default:
		return 0, fmt.Errorf("lower: unknown condition kind %d", c.Kind)
	}
}

// patternTest compiles pat into a 1-bit expression testing whether
// scrutinee matches it: Wild/Bind always succeed, EnumVariant checks
// the discriminant then recurses fieldwise, Tuple recurses
// elementwise, Or is the disjunction of its alternatives.
func (b *FunctionBuilder) patternTest(pat thir.Pat, scrutinee ir.ExprId) (ir.ExprId, error) {
	switch p := pat.(type) {
	case thir.Wild, thir.Bind:
		return b.trueConst(), nil
	case thir.EnumVariant:
		discrim := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: scrutinee, Index: 0}})
		discrimWidth := b.cache.TypeOf(discrim).Width()
		want := ir.UnsignedBitsLiteral(b.cache, widthBits(p.VariantIndex, discrimWidth), ir.Span{})
		test := b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpEq, Lhs: discrim, Rhs: want}})
		if len(p.Fields) > 0 {
			slot := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: scrutinee, Index: p.VariantIndex + 1}})
			for i, sub := range p.Fields {
				fieldVal := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: slot, Index: i}})
				subTest, err := b.patternTest(sub, fieldVal)
				if err != nil {
					return 0, err
				}
				test = b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: test, Rhs: subTest}})
			}
		}
		return test, nil
	case thir.TuplePat:
		test := b.trueConst()
		for i, sub := range p.Elems {
			elemVal := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: scrutinee, Index: i}})
			subTest, err := b.patternTest(sub, elemVal)
			if err != nil {
				return 0, err
			}
			test = b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpAnd, Lhs: test, Rhs: subTest}})
		}
		return test, nil
	case thir.Or:
		var acc ir.ExprId
		for i, alt := range p.Alts {
			t, err := b.patternTest(alt, scrutinee)
			if err != nil {
				return 0, err
			}
			if i == 0 {
				acc = t
				continue
			}
			acc = b.cache.Alloc(ir.Expr{Kind: ir.ExprBinaryOp{Op: ir.OpOr, Lhs: acc, Rhs: t}})
		}
		return acc, nil
	default:
		return 0, fmt.Errorf("lower: unknown pattern kind %T", pat)
	}
}

// clog2 returns the number of bits needed to distinguish n distinct
// values (0 and 1 both need a single bit, so the discriminant of a
// single-variant enum still occupies a real slot).
func clog2(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}

// widthBits returns the little-endian bit pattern of i in exactly width
// bits, the canonical encoding every construction of a given enum type
// must agree on regardless of which variant is active.
func widthBits(i, width int) []bool {
	bits := make([]bool, width)
	for k := 0; k < width; k++ {
		bits[k] = i&1 == 1
		i >>= 1
	}
	return bits
}

// bindPattern binds every name introduced by pat against val into
// b.binds. For Or patterns, a name bound on one side but read through a
// different alternative must select the right extraction at read time;
// since all alternatives of a well-formed Or bind the same set of names
// at the same tuple/variant shape here, a single positional extraction
// against the common scrutinee suffices for Tuple/EnumVariant
// alternatives, and Bind alternatives bind the scrutinee directly.
func (b *FunctionBuilder) bindPattern(pat thir.Pat, val ir.ExprId) error {
	switch p := pat.(type) {
	case thir.Wild:
		return nil
	case thir.Bind:
		b.binds[p.Name] = ExprValue(val)
		return nil
	case thir.EnumVariant:
		if len(p.Fields) == 0 {
			return nil
		}
		slot := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: val, Index: p.VariantIndex + 1}})
		for i, sub := range p.Fields {
			fieldVal := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: slot, Index: i}})
			if err := b.bindPattern(sub, fieldVal); err != nil {
				return err
			}
		}
		return nil
	case thir.TuplePat:
		for i, sub := range p.Elems {
			elemVal := b.cache.Alloc(ir.Expr{Kind: ir.ExprMember{Inner: val, Index: i}})
			if err := b.bindPattern(sub, elemVal); err != nil {
				return err
			}
		}
		return nil
	case thir.Or:
		for _, alt := range p.Alts {
			if err := b.bindPattern(alt, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("lower: unknown pattern kind %T", pat)
	}
}
