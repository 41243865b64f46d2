package graph

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/thir"
)

// walk recursively interprets a function body at the interface level,
// stopping at module-producing calls. Only a restricted shape of
// expression is legal here: simple let-bindings, variable references,
// and module-producing or pure calls. Every other expression, tuple and
// struct construction included, is handed to pureLower as a plain
// value, so interface values are not assembled into aggregates here.
// Any control-flow construct is a fatal TopologyError, since interface
// topology must be fixed in a circuit.
func (bld *Builder) walk(e thir.Expr, bindings map[string]ModuleGraphValue) (ModuleGraphValue, error) {
	switch n := e.(type) {
	case *thir.If:
		return ModuleGraphValue{}, &TopologyError{Span: n.Pos(), What: "if"}
	case *thir.Match:
		return ModuleGraphValue{}, &TopologyError{Span: n.Pos(), What: "match"}
	case *thir.Return:
		return ModuleGraphValue{}, &TopologyError{Span: n.Pos(), What: "return"}

	case *thir.Let:
		init, err := bld.walk(n.Init, bindings)
		if err != nil {
			return ModuleGraphValue{}, err
		}
		name, ok := n.Pat.(thir.Bind)
		if !ok {
			return ModuleGraphValue{}, fmt.Errorf("graph: only simple let-bindings are legal at the interface level")
		}
		next := make(map[string]ModuleGraphValue, len(bindings)+1)
		for k, v := range bindings {
			next[k] = v
		}
		next[name.Name] = init
		return bld.walk(n.Body, next)

	case *thir.Var:
		v, ok := bindings[n.Name]
		if !ok {
			return ModuleGraphValue{}, fmt.Errorf("graph: unbound interface-level variable %q", n.Name)
		}
		return v, nil

	case *thir.Call:
		return bld.walkCall(n, bindings)

	default:
		id, err := bld.pureLower(e)
		if err != nil {
			return ModuleGraphValue{}, err
		}
		pv := lower.ExprValue(id)
		return ModuleGraphValue{Pure: &pv}, nil
	}
}

func (bld *Builder) walkCall(n *thir.Call, bindings map[string]ModuleGraphValue) (ModuleGraphValue, error) {
	def, isLocal := bld.funcs[n.FuncName]

	if !isLocal {
		id, err := bld.pureLower(n)
		if err != nil {
			return ModuleGraphValue{}, err
		}
		pv := lower.ExprValue(id)
		return ModuleGraphValue{Pure: &pv}, nil
	}

	kind, ok := classify(def)
	if !ok {
		id, err := bld.pureLower(n)
		if err != nil {
			return ModuleGraphValue{}, err
		}
		pv := lower.ExprValue(id)
		return ModuleGraphValue{Pure: &pv}, nil
	}

	args := make([]ModuleGraphValue, len(n.Args))
	for i, a := range n.Args {
		v, err := bld.walk(a, bindings)
		if err != nil {
			return ModuleGraphValue{}, err
		}
		args[i] = v
	}

	mod, err := bld.buildModule(def, kind, n, args, bindings)
	if err != nil {
		return ModuleGraphValue{}, err
	}

	inputTyp := callInputTyp(def)
	input := NewUnwiredInterface(inputTyp)
	index := len(bld.edges)
	bld.edges = append(bld.edges, Edge{Module: mod, Input: input})

	if err := bld.wireArgs(index, input, def, args); err != nil {
		return ModuleGraphValue{}, err
	}
	input.WireUnitPrefix(ir.Path{ir.FieldSeg("captured", "_")})
	input.WireUnitPrefix(ir.Path{ir.FieldSeg("output", "_")})

	output := virtualOutput(index, outputTyp(def))
	return ModuleGraphValue{Interface: output}, nil
}

func classify(def *thir.FunctionIR) (ModuleKind, bool) {
	switch {
	case def.HasAttr(thir.AttrInterfaceFsm):
		return KindFsm, true
	case def.HasAttr(thir.AttrFfi):
		return KindFfi, true
	case def.HasAttr(thir.AttrModuleSplit):
		return KindModuleSplit, true
	case def.HasAttr(thir.AttrSeq):
		return KindSeq, true
	case def.HasAttr(thir.AttrFromFn):
		return KindFromFn, true
	case def.HasAttr(thir.AttrSubmodule):
		return KindSubmodule, true
	default:
		return 0, false
	}
}

func (bld *Builder) buildModule(def *thir.FunctionIR, kind ModuleKind, call *thir.Call, args []ModuleGraphValue, bindings map[string]ModuleGraphValue) (*Module, error) {
	mod := &Module{Kind: kind, Name: def.Name, OutputTyp: outputTyp(def)}
	switch kind {
	case KindFsm:
		if len(args) > 1 && args[1].Pure != nil {
			mod.InitState = *args[1].Pure
		}
		if len(call.Args) > 2 {
			fn, err := bld.resolveFnArg(call.Args[2])
			if err != nil {
				return nil, err
			}
			mod.FsmFn = fn
		}
	case KindFfi:
		attr, _ := def.FindAttr(thir.AttrFfi)
		mod.FfiModuleName = attr.ModuleName
		mod.FfiParams = make(map[string]string, len(attr.Params))
		for _, p := range attr.Params {
			mod.FfiParams[p] = p
		}
	case KindSeq:
		attr, _ := def.FindAttr(thir.AttrSeq)
		mod.SeqCount = attr.N
		if len(call.Args) > 0 {
			fn, err := bld.resolveFnArg(call.Args[0])
			if err != nil {
				return nil, err
			}
			mod.SeqFn = fn
		}
	case KindFromFn:
		attr, _ := def.FindAttr(thir.AttrFromFn)
		mod.FromFnN = attr.N
		if len(call.Args) > 0 {
			fn, err := bld.resolveFnArg(call.Args[0])
			if err != nil {
				return nil, err
			}
			mod.FromFn = fn
		}
	case KindSubmodule:
		mod.Def = def
	}
	return mod, nil
}

// resolveFnArg extracts the function value passed as an fsm/seq/from_fn
// argument. A closure's Fn is returned without captured upvars, and no
// later stage fills them in: the emitter lowers the closure body with
// only its declared parameters bound.
func (bld *Builder) resolveFnArg(e thir.Expr) (*lower.Fn, error) {
	switch n := e.(type) {
	case *thir.Closure:
		return &lower.Fn{Kind: lower.FnClosure, Params: n.Params, Body: n.Body}, nil
	case *thir.Var:
		def, ok := bld.funcs[n.Name]
		if !ok {
			return nil, fmt.Errorf("graph: no such function %q for fsm/seq/from_fn argument", n.Name)
		}
		return &lower.Fn{Kind: lower.FnLocal, Def: def}, nil
	default:
		return nil, fmt.Errorf("graph: fsm/seq/from_fn argument must be a closure literal or function reference")
	}
}

// callInputTyp projects a callee's parameter list into the interface
// type of its composite input: the struct of its declared parameter
// interface types, plus synthetic "captured"/"output" unit fields.
func callInputTyp(def *thir.FunctionIR) ir.InterfaceTyp {
	var fields []ir.InterfaceField
	for _, p := range def.Params {
		raw, ok := p.Typ.ToInterfaceTyp()
		if !ok {
			continue
		}
		typ, ok := raw.(ir.InterfaceTyp)
		if !ok {
			continue
		}
		fields = append(fields, ir.InterfaceField{Name: p.Name, Typ: typ})
	}
	fields = append(fields, ir.InterfaceField{Name: "captured", Typ: ir.UnitTyp()})
	fields = append(fields, ir.InterfaceField{Name: "output", Typ: ir.UnitTyp()})
	return ir.StructIfaceTyp(fields...)
}

func outputTyp(def *thir.FunctionIR) ir.InterfaceTyp {
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

// virtualOutput constructs the virtual output Interface of a freshly
// created edge: every leaf's driver is Endpoint{Kind: EndpointSubmodule}.
func virtualOutput(index int, typ ir.InterfaceTyp) *Interface {
	iface := NewUnwiredInterface(typ)
	for _, leaf := range typ.IntoPrimitives() {
		_ = iface.Wire(leaf.Path, Endpoint{Kind: EndpointSubmodule, Index: index, Path: leaf.Path})
	}
	return iface
}

// wireArgs wires a new edge's input interface: for each formal
// parameter path, the driver depends on what kind of value was passed.
func (bld *Builder) wireArgs(edgeIndex int, input *Interface, def *thir.FunctionIR, args []ModuleGraphValue) error {
	for i, p := range def.Params {
		if i >= len(args) {
			break
		}
		v := args[i]
		base := ir.Path{ir.FieldSeg(p.Name, "_")}
		switch {
		case v.IsExternal:
			if v.Interface != nil {
				if err := wirePrefixed(input, base, v.Interface); err != nil {
					return err
				}
			}
		case v.Interface != nil:
			if err := wirePrefixed(input, base, v.Interface); err != nil {
				return err
			}
		}
	}
	return nil
}

func wirePrefixed(dst *Interface, prefix ir.Path, src *Interface) error {
	for key, ep := range src.Endpoints() {
		full := prefix.String() + key
		if lw, ok := dst.leafs[full]; ok && lw.state == Unwired {
			lw.state = Wired
			lw.endpoint = ep
		}
	}
	return nil
}
