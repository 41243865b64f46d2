package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/rtl"
)

// emitSubmodule dispatches on the classified module kind. ModuleSplit
// needs nothing: its wiring was already inlined by exprForEndpoint.
func (e *emitter) emitSubmodule(index int, edge graph.Edge) error {
	switch edge.Module.Kind {
	case graph.KindModuleSplit:
		return nil
	case graph.KindSubmodule:
		return e.emitInstance(index, edge, edge.Module.Name)
	case graph.KindFfi:
		return e.emitInstance(index, edge, edge.Module.FfiModuleName)
	case graph.KindSeq:
		return e.emitSeq(index, edge)
	case graph.KindFsm:
		return e.emitFsm(index, edge)
	case graph.KindFromFn:
		return e.emitFromFn(index, edge)
	default:
		return fmt.Errorf("emit: unhandled module kind %d", edge.Module.Kind)
	}
}

// emitInstance emits a plain module instantiation for ModuleInst/Ffi
// kinds, connecting it to the already-declared per-edge wires.
func (e *emitter) emitInstance(index int, edge graph.Edge, moduleName string) error {
	var conns []rtl.Connection
	conns = append(conns, rtl.Connection{Port: e.opts.ClockName, Expr: rtl.Bare(e.opts.ClockName)})
	conns = append(conns, rtl.Connection{Port: e.opts.ResetName, Expr: rtl.Bare(e.opts.ResetName)})

	for _, g := range groupPrimitives(edge.Input.Typ) {
		if g.IsUnit || g.Channel.Fwd.Width() == 0 {
			continue
		}
		portBase := "in"
		if g.Name != "" {
			portBase = "in_" + g.Name
		}
		conns = append(conns, rtl.Connection{Port: portBase + "_payload", Expr: rtl.Bare(inWireName(index, g.Name))})
		conns = append(conns, rtl.Connection{Port: portBase + "_resolver", Expr: rtl.Lit{Width: g.Channel.Bwd.Width() * g.Count, Value: allOnes(g.Channel.Bwd.Width() * g.Count), Binary: true}})
	}
	for _, g := range groupPrimitives(edge.Module.OutputTyp) {
		if g.IsUnit || g.Channel.Fwd.Width() == 0 {
			continue
		}
		portBase := "out"
		if g.Name != "" {
			portBase = "out_" + g.Name
		}
		conns = append(conns, rtl.Connection{Port: portBase + "_payload", Expr: rtl.Bare(outWireName(index, g.Name))})
		conns = append(conns, rtl.Connection{Port: portBase + "_resolver", Expr: rtl.Lit{Width: g.Channel.Bwd.Width() * g.Count, Value: allOnes(g.Channel.Bwd.Width() * g.Count), Binary: true}})
	}

	e.module.Instances = append(e.module.Instances, rtl.Instance{
		Module: moduleName, InstName: fmt.Sprintf("u%d", index), Connections: conns,
	})
	return nil
}

func allOnes(width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}
