package lower

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// lowerCall dispatches a Call node to one of four cases: a closure
// call, a local function call, a magic primitive, or a foreign
// Default::default.
func (b *FunctionBuilder) lowerCall(n *thir.Call, span ir.Span) (ir.ExprId, error) {
	switch n.Kind {
	case thir.CalleeClosure:
		return b.lowerClosureCall(n, span)
	case thir.CalleeLocalFunction:
		return b.lowerLocalCall(n, span)
	case thir.CalleeMagic:
		return b.lowerMagicCall(n, span)
	case thir.CalleeForeign:
		return b.lowerForeignCall(n, span)
	default:
		return 0, errf(n.Pos(), "unknown callee kind %d", n.Kind)
	}
}

func (b *FunctionBuilder) lowerArgs(n *thir.Call) ([]PureValue, error) {
	args := make([]PureValue, len(n.Args))
	for i, a := range n.Args {
		if cl, ok := a.(*thir.Closure); ok {
			upvars := make(map[string]PureValue, len(cl.Upvars))
			for _, name := range cl.Upvars {
				v, ok := b.binds[name]
				if !ok {
					return nil, errf(cl.Pos(), "closure argument captures unbound upvar %q", name)
				}
				upvars[name] = v
			}
			args[i] = FnValue(&Fn{Kind: FnClosure, Params: cl.Params, Body: cl.Body, Upvars: upvars})
			continue
		}
		id, err := b.lowerExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = ExprValue(id)
	}
	return args, nil
}

func (b *FunctionBuilder) lowerClosureCall(n *thir.Call, span ir.Span) (ir.ExprId, error) {
	clExpr, ok := n.Callee.(*thir.Closure)
	var fn *Fn
	if ok {
		upvars := make(map[string]PureValue, len(clExpr.Upvars))
		for _, name := range clExpr.Upvars {
			v, ok := b.binds[name]
			if !ok {
				return 0, errf(clExpr.Pos(), "closure captures unbound upvar %q", name)
			}
			upvars[name] = v
		}
		fn = &Fn{Kind: FnClosure, Params: clExpr.Params, Body: clExpr.Body, Upvars: upvars}
	} else if v, ok := n.Callee.(*thir.Var); ok {
		bound, ok := b.binds[v.Name]
		if !ok || !bound.IsFn {
			return 0, errf(v.Pos(), "%q is not a bound function value", v.Name)
		}
		fn = bound.Fn
	} else {
		return 0, errf(n.Pos(), "closure call callee must be a closure literal or a bound function value")
	}

	args, err := b.lowerArgs(n)
	if err != nil {
		return 0, err
	}
	result, tasks, err := Build(b.cache, b.funcs, fn, args, b.mapFns)
	if err != nil {
		return 0, err
	}
	b.tasks = append(b.tasks, tasks...)
	return result, nil
}

func (b *FunctionBuilder) lowerLocalCall(n *thir.Call, span ir.Span) (ir.ExprId, error) {
	def, ok := b.funcs[n.FuncName]
	if !ok {
		return 0, errf(n.Pos(), "no such local function %q", n.FuncName)
	}
	args, err := b.lowerArgs(n)
	if err != nil {
		return 0, err
	}
	result, tasks, err := Build(b.cache, b.funcs, &Fn{Kind: FnLocal, Def: def}, args, b.mapFns)
	if err != nil {
		return 0, fmt.Errorf("lower: in call to %q: %w", n.FuncName, err)
	}
	b.tasks = append(b.tasks, tasks...)
	return result, nil
}

func (b *FunctionBuilder) lowerForeignCall(n *thir.Call, span ir.Span) (ir.ExprId, error) {
	if n.FuncName != "Default::default" && n.FuncName != "default" {
		return 0, errf(n.Pos(), "unsupported foreign function %q: only Default::default is allowed", n.FuncName)
	}
	decl, err := portDeclsOf(n.Type())
	if err != nil {
		return 0, err
	}
	return b.cache.Alloc(ir.Expr{Kind: ir.ExprConstant{Bits: make([]bool, decl.Width()), Typ: decl}, Span: span}), nil
}
