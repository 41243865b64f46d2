package virgen

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hazardflow/hfc/emit"
	"github.com/hazardflow/hfc/graph"
	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/thir"
)

// Driver holds everything one module's elaboration needs: the
// frontend's function table, configuration, the target
// function-IR, its signature, its argument values, captured upvars for
// closure-valued modules, the discovered submodule edge list and output
// interface (both populated by preprocess), and a prefix recording the
// names of the parent modules this one was reached through. The prefix
// is not used in module naming or in log output.
type Driver struct {
	funcs  map[string]*thir.FunctionIR
	cfg    Config
	log    *slog.Logger
	prefix []string

	target    *thir.FunctionIR
	inputTyp  ir.InterfaceTyp
	outputTyp ir.InterfaceTyp
	args      []graph.ModuleGraphValue
	upvars    map[string]lower.PureValue

	store  *ir.Store
	graph  *graph.Graph
	mapFns *lower.MapFnTable
}

// NewTopDriver constructs the entry-point Driver for a design root: its
// own parameters become the module's external (always-ready, opaque)
// inputs.
func NewTopDriver(funcs map[string]*thir.FunctionIR, target *thir.FunctionIR, cfg Config) (*Driver, error) {
	inputTyp, args, upvars, store, err := bootstrapRoot(target)
	if err != nil {
		return nil, err
	}
	return &Driver{
		funcs: funcs, cfg: cfg, log: NewLogger(cfg),
		target: target, inputTyp: inputTyp, outputTyp: rootOutputTyp(target),
		args: args, upvars: upvars, store: store, mapFns: lower.NewMapFnTable(),
	}, nil
}

// NewSubmoduleDriver constructs a Driver for one distinct module
// instance reached from parent, inheriting its logger and config and
// extending its naming prefix. Each module body gets a fresh expression
// arena: ExprIds never cross module boundaries.
func NewSubmoduleDriver(parent *Driver, def *thir.FunctionIR) (*Driver, error) {
	inputTyp, args, upvars, store, err := bootstrapRoot(def)
	if err != nil {
		return nil, err
	}
	prefix := make([]string, len(parent.prefix)+1)
	copy(prefix, parent.prefix)
	prefix[len(prefix)-1] = parent.target.Name
	return &Driver{
		funcs: parent.funcs, cfg: parent.cfg, log: parent.log, prefix: prefix,
		target: def, inputTyp: inputTyp, outputTyp: rootOutputTyp(def),
		args: args, upvars: upvars, store: store, mapFns: lower.NewMapFnTable(),
	}, nil
}

// Name is the Verilog module name this Driver emits. Distinct reached
// functions are deduped by this name alone (see Elaborate); prefix plays
// no part in it.
func (d *Driver) Name() string {
	return d.target.Name
}

// preprocess runs the submodule graph constructor over the target body
// and returns the distinct user-defined module instances it discovered,
// for the caller to recursively elaborate.
func (d *Driver) preprocess() ([]*graph.Module, error) {
	started := time.Now()
	bld := graph.NewBuilder(d.funcs, d.pureLower())
	g, err := bld.Build(d.target, d.args, d.outputTyp)
	if err != nil {
		return nil, fmt.Errorf("virgen: preprocessing %s: %w", d.target.Name, err)
	}
	d.graph = g

	seen := make(map[string]bool)
	var instances []*graph.Module
	for _, e := range g.Edges {
		if e.Module.Kind != graph.KindSubmodule || e.Module.Def == nil {
			continue
		}
		if seen[e.Module.Name] {
			continue
		}
		seen[e.Module.Name] = true
		instances = append(instances, e.Module)
	}

	d.log.Debug("preprocessed module", "module", d.Name(), "edges", len(g.Edges), "distinct_instances", len(instances), "elapsed", time.Since(started))
	return instances, nil
}

// virgen runs the emitter over the graph preprocess discovered,
// returning this module's Verilog source text.
func (d *Driver) virgen() (string, error) {
	if d.graph == nil {
		return "", fmt.Errorf("virgen: %s: preprocess must run before virgen", d.target.Name)
	}
	spec := emit.ModuleSpec{
		Name: d.Name(), InputTyp: d.inputTyp, OutputTyp: d.outputTyp,
		Graph: d.graph, Funcs: d.funcs, Store: d.store, MapFns: d.mapFns,
	}
	return emit.Compile(spec, d.cfg.EmitOptions())
}

// pureLower builds the graph.Builder callback that lowers a
// non-module-valued subexpression to a plain ir.ExprId, by wrapping it
// as a zero-argument closure over this Driver's free variables — its
// own opaque value-typed parameters.
// Subexpressions that reference some OTHER pure local binding from
// earlier in the same body are not resolved this way; see DESIGN.md.
func (d *Driver) pureLower() func(thir.Expr) (ir.ExprId, error) {
	return func(e thir.Expr) (ir.ExprId, error) {
		cache := ir.NewFsmCache(d.store)
		closure := &lower.Fn{Kind: lower.FnClosure, Body: e, Upvars: d.upvars}
		id, _, err := lower.Build(cache, d.funcs, closure, nil, d.mapFns)
		if err != nil {
			return 0, fmt.Errorf("virgen: lowering pure subexpression: %w", err)
		}
		return id, nil
	}
}

// bootstrapRoot builds the opaque external-input Interface arguments for
// one function body being elaborated structurally on its own: its
// Channel/array-typed params become fully-wired ExternalInterface values
// (every leaf driven by Endpoint::Input at the param's own path), and
// its plain value-typed params (e.g. a from_fn repeat count) become free
// variables pre-allocated against a fresh arena, bound by name so
// pureLower's closures can resolve them.
func bootstrapRoot(def *thir.FunctionIR) (ir.InterfaceTyp, []graph.ModuleGraphValue, map[string]lower.PureValue, *ir.Store, error) {
	store := ir.NewStore()
	upvars := make(map[string]lower.PureValue)
	args := make([]graph.ModuleGraphValue, len(def.Params))
	var fields []ir.InterfaceField

	for i, p := range def.Params {
		if raw, ok := p.Typ.ToInterfaceTyp(); ok {
			typ, ok := raw.(ir.InterfaceTyp)
			if !ok {
				return ir.InterfaceTyp{}, nil, nil, nil, fmt.Errorf("virgen: param %s: unexpected interface type value", p.Name)
			}
			fields = append(fields, ir.InterfaceField{Name: p.Name, Typ: typ})
			paramPath := ir.Path{ir.FieldSeg(p.Name, "_")}
			iface := graph.NewUnwiredInterface(typ)
			for _, leaf := range typ.IntoPrimitives() {
				full := append(append(ir.Path{}, paramPath...), leaf.Path...)
				if err := iface.Wire(leaf.Path, graph.Endpoint{Kind: graph.EndpointInput, Path: full}); err != nil {
					return ir.InterfaceTyp{}, nil, nil, nil, err
				}
			}
			args[i] = graph.ModuleGraphValue{Interface: iface, IsExternal: true, ExternalPath: paramPath}
			continue
		}

		decl, err := paramPortDecls(p.Typ)
		if err != nil {
			return ir.InterfaceTyp{}, nil, nil, nil, fmt.Errorf("virgen: param %s has neither an interface nor a fixed bit layout: %w", p.Name, err)
		}
		cache := ir.NewFsmCache(store)
		id := ir.InputVar(cache, p.Name, decl, ir.Span{})
		upvars[p.Name] = lower.ExprValue(id)
		pure := lower.ExprValue(id)
		args[i] = graph.ModuleGraphValue{Pure: &pure}
	}

	fields = append(fields, ir.InterfaceField{Name: "captured", Typ: ir.UnitTyp()})
	fields = append(fields, ir.InterfaceField{Name: "output", Typ: ir.UnitTyp()})
	return ir.StructIfaceTyp(fields...), args, upvars, store, nil
}

func rootOutputTyp(def *thir.FunctionIR) ir.InterfaceTyp {
	raw, ok := def.RetTy.ToInterfaceTyp()
	if !ok {
		return ir.UnitTyp()
	}
	typ, ok := raw.(ir.InterfaceTyp)
	if !ok {
		return ir.UnitTyp()
	}
	return typ
}

func paramPortDecls(ty thir.Ty) (ir.PortDecls, error) {
	raw, ok := ty.ToPortDecls()
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("type %s has no fixed bit layout", ty)
	}
	decl, ok := raw.(ir.PortDecls)
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("type %s did not produce an ir.PortDecls", ty)
	}
	return decl, nil
}

// Elaborate runs the full recursive elaboration of a design root:
// preprocess+virgen the root, then preprocess+virgen every distinct
// user-defined module instance it (transitively) reaches,
// deduped by function name so a module called from multiple sites is
// only emitted once. Returns the concatenated Verilog source, root
// module first.
func Elaborate(funcs map[string]*thir.FunctionIR, root *thir.FunctionIR, cfg Config) (string, error) {
	id := runID()
	top, err := NewTopDriver(funcs, root, cfg)
	if err != nil {
		return "", err
	}
	top.log.Info("elaboration started", "run_id", id, "root", root.Name)

	emitted := make(map[string]bool)
	var out strings.Builder

	queue := []*Driver{top}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if emitted[d.Name()] {
			continue
		}
		emitted[d.Name()] = true

		instances, err := d.preprocess()
		if err != nil {
			return "", err
		}
		text, err := d.virgen()
		if err != nil {
			return "", fmt.Errorf("virgen: emitting %s: %w", d.Name(), err)
		}
		out.WriteString(text)
		out.WriteString("\n")

		for _, inst := range instances {
			if emitted[inst.Name] {
				continue
			}
			sub, err := NewSubmoduleDriver(d, inst.Def)
			if err != nil {
				return "", err
			}
			queue = append(queue, sub)
		}
	}

	names := maps.Keys(emitted)
	slices.Sort(names)
	top.log.Info("elaboration finished", "run_id", id, "modules_emitted", len(emitted), "modules", names)
	return out.String(), nil
}
