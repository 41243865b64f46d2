package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/rtl"
)

// emitFromFn implements from_fn replication: N independent instances,
// each with its own ExprIds, built against a fresh cache rather than
// instantiated once and shared. Replica i's
// inputs come either from the shared input wire (broadcast fields) or
// from index i of an array-of-N input field; its outputs are packed
// back into the corresponding array-of-N output field(s).
func (e *emitter) emitFromFn(index int, edge graph.Edge) error {
	mod := edge.Module
	if mod.FromFn == nil {
		return fmt.Errorf("from_fn edge has no from_fn")
	}
	n := mod.FromFnN
	params := fnParams(mod.FromFn)

	inGroups := nonUnitGroups(groupPrimitives(edge.Input.Typ))
	if len(inGroups) < len(params) {
		return fmt.Errorf("from_fn input has %d field groups, fn has %d params", len(inGroups), len(params))
	}

	outGroups := nonUnitGroups(groupPrimitives(mod.OutputTyp))
	outOffsets := fieldOffsets(outGroups)

	var stmts []rtl.Stmt
	// outSlices[g][i] is replica i's slice of output field g.
	outSlices := make([][]rtl.Expr, len(outGroups))
	for g := range outSlices {
		outSlices[g] = make([]rtl.Expr, n)
	}

	for i := 0; i < n; i++ {
		cache := ir.NewFsmCache(e.spec.Store)
		names := make(map[string]rtl.Expr, len(params))
		args := make([]lower.PureValue, len(params))
		for pi, p := range params {
			decl, err := portDeclsOf(p.Typ)
			if err != nil {
				return err
			}
			v := ir.InputVar(cache, p.Name, decl, ir.Span{})
			args[pi] = lower.ExprValue(v)

			g := inGroups[pi]
			if g.Count == n {
				names[p.Name] = rtl.Sliced(inWireName(index, g.Name), i*decl.Width(), decl.Width())
			} else {
				names[p.Name] = rtl.Bare(inWireName(index, g.Name))
			}
		}

		result, _, err := lower.Build(cache, e.spec.Funcs, mod.FromFn, args, e.spec.MapFns)
		if err != nil {
			return fmt.Errorf("lowering from_fn replica %d: %w", i, err)
		}
		resultWidth := cache.TypeOf(result).Width()

		cs := newCombState(e.spec.Store, e.ctx, names, &stmts, e.spec.Funcs, e.spec.MapFns)
		resultExpr, err := cs.translate(result)
		if err != nil {
			return err
		}
		tmp := e.ctx.Fresh(fmt.Sprintf("u%d_fromfn%d", index, i))
		e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: tmp, Width: resultWidth})
		stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(tmp), Rhs: resultExpr})

		for g, grp := range outGroups {
			w := grp.Channel.Fwd.Width()
			outSlices[g][i] = rtl.Sliced(tmp, outOffsets[g], w)
		}
	}

	for g, grp := range outGroups {
		regName := fmt.Sprintf("u%d_fromfn_%s", index, safeName(grp.Name))
		totalWidth := grp.Channel.Fwd.Width() * n
		e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclReg, Name: regName, Width: totalWidth})
		rev := make([]rtl.Expr, n)
		for i, ex := range outSlices[g] {
			rev[n-1-i] = ex
		}
		stmts = append(stmts, rtl.BlockingAssign{Lhs: rtl.Bare(regName), Rhs: rtl.Concat{Elems: rev}})
		e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: rtl.Bare(outWireName(index, grp.Name)), Rhs: rtl.Bare(regName)})
	}

	e.module.Always = append(e.module.Always, rtl.Always{Body: stmts})
	return nil
}

func nonUnitGroups(groups []fieldGroup) []fieldGroup {
	out := make([]fieldGroup, 0, len(groups))
	for _, g := range groups {
		if !g.IsUnit {
			out = append(out, g)
		}
	}
	return out
}

// fieldOffsets computes each group's bit offset within one replica's
// packed result, using the same field-0-is-MSB convention as
// translateMember: a field's offset is the sum of the widths of every
// field that follows it.
func fieldOffsets(groups []fieldGroup) []int {
	offsets := make([]int, len(groups))
	below := 0
	for i := len(groups) - 1; i >= 0; i-- {
		offsets[i] = below
		below += groups[i].Channel.Fwd.Width()
	}
	return offsets
}

func safeName(name string) string {
	if name == "" {
		return "payload"
	}
	return name
}
