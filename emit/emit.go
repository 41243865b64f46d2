// Package emit implements the module emitter (component E): given one
// classified module and its wiring graph, produces a rtl.Module AST
// ready for printing.
package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/rtl"
	"github.com/hazardflow/hfc/thir"
)

// Options configures one Compile invocation.
type Options struct {
	// SystemTask enables emission of $display/$fatal guards for display
	// and assert system tasks recorded during fsm body lowering.
	SystemTask bool
	ClockName  string
	ResetName  string
}

// DefaultOptions returns the driver's default configuration: system
// tasks enabled, conventional clk/rst names.
func DefaultOptions() Options {
	return Options{SystemTask: true, ClockName: "clk", ResetName: "rst"}
}

// ModuleSpec bundles everything the emitter needs to print one
// classified module: its declared name, its external interface types,
// its submodule graph, and the function table needed to recursively
// lower Fsm/Seq bodies.
type ModuleSpec struct {
	Name      string
	InputTyp  ir.InterfaceTyp
	OutputTyp ir.InterfaceTyp
	Graph     *graph.Graph
	Funcs     map[string]*thir.FunctionIR
	Store     *ir.Store
	// MapFns is the module-scoped Map/Fold function registry built
	// alongside Store; Fsm/Seq/FromFn bodies are re-lowered at emit time
	// with their own per-replica FsmCache but must share this same table
	// so a FunctionId minted while building the graph still resolves.
	MapFns *lower.MapFnTable
}

// Compile runs the emitter's five phases and prints the resulting
// module.
func Compile(spec ModuleSpec, opts Options) (string, error) {
	e := newEmitter(spec, opts)
	m, err := e.build()
	if err != nil {
		return "", err
	}
	return rtl.Print(m), nil
}

type emitter struct {
	spec   ModuleSpec
	opts   Options
	ctx    *Context
	module *rtl.Module
}

func newEmitter(spec ModuleSpec, opts Options) *emitter {
	return &emitter{spec: spec, opts: opts, ctx: NewContext(), module: &rtl.Module{Name: spec.Name}}
}

func (e *emitter) build() (*rtl.Module, error) {
	// Phase 1: port declarations.
	e.module.Ports = append(e.module.Ports, rtl.Port{Dir: rtl.Input, Name: e.opts.ClockName, Width: 1})
	e.module.Ports = append(e.module.Ports, rtl.Port{Dir: rtl.Input, Name: e.opts.ResetName, Width: 1})
	e.module.Ports = append(e.module.Ports, inputPorts(e.spec.InputTyp)...)
	e.module.Ports = append(e.module.Ports, outputPorts(e.spec.OutputTyp)...)

	// Every input-side resolver port is this module's own output ack;
	// tie it high (always ready — see DESIGN.md for this simplification).
	for _, p := range inputPorts(e.spec.InputTyp) {
		if p.Dir == rtl.Output {
			e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: rtl.Bare(p.Name), Rhs: rtl.Lit{Width: p.Width, Value: (1 << uint(p.Width)) - 1, Binary: true}})
		}
	}

	// Phase 2: submodule wire declarations (payload only; resolvers are
	// tied high at the instance connection instead of routed).
	for i, edge := range e.spec.Graph.Edges {
		if edge.Module.Kind == graph.KindModuleSplit {
			continue
		}
		for _, g := range groupPrimitives(edge.Input.Typ) {
			if g.IsUnit || g.Channel.Fwd.Width() == 0 {
				continue
			}
			e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclWire, Name: inWireName(i, g.Name), Width: g.Channel.Fwd.Width() * g.Count})
		}
		for _, g := range groupPrimitives(edge.Module.OutputTyp) {
			if g.IsUnit || g.Channel.Fwd.Width() == 0 {
				continue
			}
			e.module.Decls = append(e.module.Decls, rtl.Decl{Kind: rtl.DeclWire, Name: outWireName(i, g.Name), Width: g.Channel.Fwd.Width() * g.Count})
		}
	}

	// Phase 3: continuous assigns driving every submodule's input wires.
	for i, edge := range e.spec.Graph.Edges {
		if edge.Module.Kind == graph.KindModuleSplit {
			continue
		}
		if err := e.wireGroupAssigns(edge.Input.Typ, edge.Input.Endpoints(), func(name string) string { return inWireName(i, name) }); err != nil {
			return nil, err
		}
	}
	// and the module's own output ports.
	if err := e.wireGroupAssigns(e.spec.OutputTyp, e.spec.Graph.Output.Endpoints(), func(name string) string {
		if name == "" {
			return "out_payload"
		}
		return "out_" + name + "_payload"
	}); err != nil {
		return nil, err
	}

	// Phase 4: per-submodule body emission.
	for i, edge := range e.spec.Graph.Edges {
		if err := e.emitSubmodule(i, edge); err != nil {
			return nil, fmt.Errorf("emit: submodule %d (%s): %w", i, edge.Module.Name, err)
		}
	}

	return e.module, nil
}

func inWireName(edgeIndex int, group string) string {
	if group == "" {
		return fmt.Sprintf("u%d_in_payload", edgeIndex)
	}
	return fmt.Sprintf("u%d_in_%s_payload", edgeIndex, group)
}

func outWireName(edgeIndex int, group string) string {
	if group == "" {
		return fmt.Sprintf("u%d_out_payload", edgeIndex)
	}
	return fmt.Sprintf("u%d_out_%s_payload", edgeIndex, group)
}

// wireGroupAssigns emits one continuous assign per field group of typ,
// using endpoints (the wiring state of that interface) to resolve each
// leaf's source and nameFor to resolve the group's target wire name.
func (e *emitter) wireGroupAssigns(typ ir.InterfaceTyp, endpoints map[string]graph.Endpoint, nameFor func(group string) string) error {
	for _, g := range groupPrimitives(typ) {
		if g.IsUnit || g.Channel.Fwd.Width() == 0 {
			continue
		}
		exprs := make([]rtl.Expr, len(g.Leaves))
		for i, leaf := range g.Leaves {
			ep, ok := endpoints[leaf.Path.String()]
			if !ok {
				return fmt.Errorf("emit: unwired leaf %q", leaf.Path.String())
			}
			ex, err := e.exprForEndpoint(ep)
			if err != nil {
				return err
			}
			exprs[i] = ex
		}
		lhs := rtl.Bare(nameFor(g.Name))
		var rhs rtl.Expr
		if len(exprs) == 1 {
			rhs = exprs[0]
		} else {
			rev := make([]rtl.Expr, len(exprs))
			for i, ex := range exprs {
				rev[len(exprs)-1-i] = ex
			}
			rhs = rtl.Concat{Elems: rev}
		}
		e.module.Assigns = append(e.module.Assigns, rtl.Assign{Lhs: lhs, Rhs: rhs})
	}
	return nil
}

// exprForEndpoint resolves an Endpoint to the rtl.Expr that drives it.
// ModuleSplit edges are inlined: their "output" is literally their
// "input" at the same path, so resolution recurses through them rather
// than emitting a pass-through instance.
func (e *emitter) exprForEndpoint(ep graph.Endpoint) (rtl.Expr, error) {
	switch ep.Kind {
	case graph.EndpointInput:
		base, idx, count, ch, isUnit, found := locateLeaf(e.spec.InputTyp, ep.Path)
		if !found {
			return nil, fmt.Errorf("emit: endpoint path %q not found in module input type", ep.Path.String())
		}
		if isUnit {
			return rtl.Lit{Width: 1, Value: 0}, nil
		}
		name := "in_payload"
		if base != "" {
			name = "in_" + base + "_payload"
		}
		if count == 1 {
			return rtl.Bare(name), nil
		}
		return rtl.Sliced(name, idx*ch.Fwd.Width(), ch.Fwd.Width()), nil

	case graph.EndpointSubmodule:
		producer := e.spec.Graph.Edges[ep.Index]
		if producer.Module.Kind == graph.KindModuleSplit {
			nested, ok := producer.Input.Endpoints()[ep.Path.String()]
			if !ok {
				return nil, fmt.Errorf("emit: module-split edge %d has no input endpoint at %q", ep.Index, ep.Path.String())
			}
			return e.exprForEndpoint(nested)
		}
		base, idx, count, ch, isUnit, found := locateLeaf(producer.Module.OutputTyp, ep.Path)
		if !found {
			return nil, fmt.Errorf("emit: endpoint path %q not found in submodule %d output type", ep.Path.String(), ep.Index)
		}
		if isUnit {
			return rtl.Lit{Width: 1, Value: 0}, nil
		}
		name := outWireName(ep.Index, base)
		if count == 1 {
			return rtl.Bare(name), nil
		}
		return rtl.Sliced(name, idx*ch.Fwd.Width(), ch.Fwd.Width()), nil

	default:
		return nil, fmt.Errorf("emit: unknown endpoint kind %d", ep.Kind)
	}
}
