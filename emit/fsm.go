package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/rtl"
	"github.com/hazardflow/hfc/thir"
)

func fnParams(fn *lower.Fn) []thir.Param {
	if fn.Kind == lower.FnLocal {
		return fn.Def.Params
	}
	return fn.Params
}

// emitFsm lowers the fsm body against fresh ingress/state free
// variables, walks the resulting ExprId into a combinational always
// block, and emits the synchronous state-register update.
func (e *emitter) emitFsm(index int, edge graph.Edge) error {
	mod := edge.Module
	if mod.FsmFn == nil {
		return fmt.Errorf("fsm edge has no fsm_fn")
	}
	params := fnParams(mod.FsmFn)
	if len(params) < 2 {
		return fmt.Errorf("fsm_fn must take (input, state)")
	}

	cache := ir.NewFsmCache(e.spec.Store)
	names := make(map[string]rtl.Expr)
	args := make([]lower.PureValue, len(params))
	for i, p := range params {
		decl, err := portDeclsOf(p.Typ)
		if err != nil {
			return err
		}
		v := ir.InputVar(cache, p.Name, decl, ir.Span{})
		args[i] = lower.ExprValue(v)
	}
	names[params[0].Name] = rtl.Bare(inWireName(index, "input"))
	stateRegName := fmt.Sprintf("u%d_state", index)
	names[params[1].Name] = rtl.Bare(stateRegName)

	result, tasks, err := lower.Build(cache, e.spec.Funcs, mod.FsmFn, args, e.spec.MapFns)
	if err != nil {
		return fmt.Errorf("lowering fsm body: %w", err)
	}

	fields := cache.TypeOf(result).Fields()
	if len(fields) != 2 {
		return fmt.Errorf("fsm_fn must return (egress, next_state), got %d fields", len(fields))
	}
	egressWidth := fields[0].Decl.Width()
	stateWidth := fields[1].Decl.Width()

	var stmts []rtl.Stmt
	cs := newCombState(e.spec.Store, e.ctx, names, &stmts, e.spec.Funcs, e.spec.MapFns)
	resultExpr, err := cs.translate(result)
	if err != nil {
		return err
	}
	resultTmp := e.ctx.Fresh(fmt.Sprintf("u%d_result", index))
	stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(resultTmp), Rhs: resultExpr})
	egress := rtl.Sliced(resultTmp, stateWidth, egressWidth)
	nextState := rtl.Sliced(resultTmp, 0, stateWidth)

	egressReg := fmt.Sprintf("u%d_egress", index)
	nextStateReg := fmt.Sprintf("u%d_next_state", index)
	e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: egressReg, Width: egressWidth})
	e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: nextStateReg, Width: stateWidth})
	e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: stateRegName, Width: stateWidth})

	stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(egressReg), Rhs: egress})
	stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(nextStateReg), Rhs: nextState})
	e.module.Always = append(e.module.Always, rtl.Always{Body: stmts})

	e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: rtl.Bare(outWireName(index, "")), Rhs: rtl.Bare(egressReg)})

	return e.emitFsmSync(index, mod, stateRegName, stateWidth, nextStateReg, tasks)
}

func (e *emitter) emitFsmSync(index int, mod *graph.Module, stateReg string, stateWidth int, nextStateReg string, tasks []ir.SystemTask) error {
	var posStmts []rtl.Stmt
	cs := newCombState(e.spec.Store, e.ctx, nil, &posStmts, e.spec.Funcs, e.spec.MapFns)

	initExpr, err := cs.translate(mod.InitState.Expr)
	if err != nil {
		return fmt.Errorf("lowering init_state: %w", err)
	}
	posStmts = append(posStmts, rtl.If{
		Cond: rtl.Bare(e.opts.ResetName),
		Then: []rtl.Stmt{rtl.NonBlockingAssign{Lhs: rtl.Bare(stateReg), Rhs: initExpr}},
		Else: []rtl.Stmt{rtl.NonBlockingAssign{Lhs: rtl.Bare(stateReg), Rhs: rtl.Bare(nextStateReg)}},
	})

	if e.opts.SystemTask {
		for _, t := range tasks {
			stmt, err := e.emitSystemTask(cs, t)
			if err != nil {
				return err
			}
			if stmt != nil {
				posStmts = append(posStmts, stmt)
			}
		}
	}

	e.module.Always = append(e.module.Always, rtl.Always{Posedge: true, Clock: e.opts.ClockName, Body: posStmts})
	return nil
}

// emitSystemTask translates one lowered SystemTask into a guarded
// $display/$fatal statement.
func (e *emitter) emitSystemTask(cs *combState, t ir.SystemTask) (rtl.Stmt, error) {
	var guard rtl.Expr
	if t.PathCond != nil {
		g, err := cs.translate(*t.PathCond)
		if err != nil {
			return nil, err
		}
		guard = g
	}

	var inner []rtl.Stmt
	switch t.Kind {
	case ir.SystemTaskDisplay:
		args := make([]rtl.Expr, len(t.Args))
		for i, a := range t.Args {
			v, err := cs.translate(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		inner = []rtl.Stmt{rtl.Display{Fstring: t.Fstring, Args: args}}
	case ir.SystemTaskAssert:
		if len(t.Args) == 0 {
			return nil, fmt.Errorf("assert system task has no condition")
		}
		cond, err := cs.translate(t.Args[0])
		if err != nil {
			return nil, err
		}
		args := make([]rtl.Expr, 0, len(t.Args)-1)
		for _, a := range t.Args[1:] {
			v, err := cs.translate(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		inner = []rtl.Stmt{rtl.If{
			Cond: rtl.UnaryOp{Op: "!", Operand: cond},
			Then: []rtl.Stmt{
				rtl.Display{Fstring: "ERROR: " + t.Fstring, Args: args},
				rtl.Fatal{},
			},
		}}
	default:
		return nil, fmt.Errorf("emit: unknown system task kind %d", t.Kind)
	}

	if guard == nil {
		if len(inner) == 1 {
			return inner[0], nil
		}
		return rtl.If{Cond: rtl.Lit{Width: 1, Value: 1}, Then: inner}, nil
	}
	return rtl.If{Cond: guard, Then: inner}, nil
}
