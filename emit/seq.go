package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/rtl"
)

// emitSeq implements ModuleSeq carry-chain emission: element i's first
// argument comes from in_output.0[i], its own carry-in is element
// i-1's carry-out (element 0's carry-in is in_output.1), and the final
// element's carry-out drives out_output.1. Each element is lowered
// independently against its own fresh cache, matching the "N
// independent instances" replication used for FromFn.
func (e *emitter) emitSeq(index int, edge graph.Edge) error {
	mod := edge.Module
	if mod.SeqFn == nil {
		return fmt.Errorf("seq edge has no seq_fn")
	}
	n := mod.SeqCount
	params := fnParams(mod.SeqFn)
	if len(params) < 2 {
		return fmt.Errorf("seq_fn must take (elem, carry)")
	}
	elemDecl, err := portDeclsOf(params[0].Typ)
	if err != nil {
		return err
	}
	carryDecl, err := portDeclsOf(params[1].Typ)
	if err != nil {
		return err
	}
	elemWidth := elemDecl.Width()
	carryWidth := carryDecl.Width()

	elemGroup, carryGroup, err := seqGroups(groupPrimitives(edge.Input.Typ), n)
	if err != nil {
		return fmt.Errorf("locating seq input groups: %w", err)
	}
	outElemGroup, outCarryGroup, err := seqGroups(groupPrimitives(mod.OutputTyp), n)
	if err != nil {
		return fmt.Errorf("locating seq output groups: %w", err)
	}

	elemsInWire := inWireName(index, elemGroup)
	carryInWire := inWireName(index, carryGroup)

	var stmts []rtl.Stmt
	elemOuts := make([]rtl.Expr, n)
	carry := rtl.Bare(carryInWire)

	for i := 0; i < n; i++ {
		cache := ir.NewFsmCache(e.spec.Store)
		elemVar := ir.InputVar(cache, params[0].Name, elemDecl, ir.Span{})
		carryVar := ir.InputVar(cache, params[1].Name, carryDecl, ir.Span{})
		args := []lower.PureValue{lower.ExprValue(elemVar), lower.ExprValue(carryVar)}

		names := map[string]rtl.Expr{
			params[0].Name: rtl.Sliced(elemsInWire, i*elemWidth, elemWidth),
			params[1].Name: carry,
		}

		result, _, err := lower.Build(cache, e.spec.Funcs, mod.SeqFn, args, e.spec.MapFns)
		if err != nil {
			return fmt.Errorf("lowering seq element %d: %w", i, err)
		}
		fields := cache.TypeOf(result).Fields()
		if len(fields) != 2 {
			return fmt.Errorf("seq_fn must return (elem_out, carry_out), got %d fields", len(fields))
		}
		elemOutWidth := fields[0].Decl.Width()
		carryOutWidth := fields[1].Decl.Width()

		cs := newCombState(e.spec.Store, e.ctx, names, &stmts, e.spec.Funcs, e.spec.MapFns)
		resultExpr, err := cs.translate(result)
		if err != nil {
			return err
		}
		tmp := e.ctx.Fresh(fmt.Sprintf("u%d_seq%d", index, i))
		e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: tmp, Width: elemOutWidth + carryOutWidth})
		stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: resultExpr})

		elemOuts[i] = rtl.Sliced(tmp, carryOutWidth, elemOutWidth)
		carry = rtl.Sliced(tmp, 0, carryOutWidth)
		if i == n-1 {
			carryWidth = carryOutWidth
		}
	}

	elemsOutReg := fmt.Sprintf("u%d_seq_elems", index)
	totalElemWidth := elemWidth * n
	e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: elemsOutReg, Width: totalElemWidth})
	rev := make([]rtl.Expr, n)
	for i, ex := range elemOuts {
		rev[n-1-i] = ex
	}
	stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(elemsOutReg), Rhs: rtl.Concat{Elems: rev}})

	carryOutReg := fmt.Sprintf("u%d_seq_carry", index)
	e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: carryOutReg, Width: carryWidth})
	stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(carryOutReg), Rhs: carry})

	e.module.Always = append(e.module.Always, rtl.Always{Body: stmts})
	e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: rtl.Bare(outWireName(index, outElemGroup)), Rhs: rtl.Bare(elemsOutReg)})
	e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: rtl.Bare(outWireName(index, outCarryGroup)), Rhs: rtl.Bare(carryOutReg)})

	return nil
}

// seqGroups distinguishes the replicated-array field (Count == n) from
// the scalar carry field (Count == 1) among a tuple-shaped interface's
// field groups.
func seqGroups(groups []fieldGroup, n int) (elemGroup, carryGroup string, err error) {
	foundElem, foundCarry := false, false
	for _, g := range groups {
		if g.IsUnit {
			continue
		}
		switch g.Count {
		case n:
			elemGroup, foundElem = g.Name, true
		case 1:
			carryGroup, foundCarry = g.Name, true
		}
	}
	if !foundElem || !foundCarry {
		return "", "", fmt.Errorf("expected one array-of-%d field and one scalar carry field", n)
	}
	return elemGroup, carryGroup, nil
}
