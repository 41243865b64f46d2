// Package graph discovers the submodule instance graph of one top-level
// or nested module (component D): a structural-only walk of the
// interface-level call graph that classifies every module-producing
// call and wires its endpoints.
package graph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/lower"
	"github.com/hazardflow/hfc/thir"
)

// EndpointKind distinguishes the two places a channel's driver can live.
type EndpointKind uint8

const (
	EndpointInput EndpointKind = iota
	EndpointSubmodule
)

// Endpoint names the structural driver of one primitive channel: either
// the enclosing module's own input interface at Path, or submodule
// Index's output interface at Path.
type Endpoint struct {
	Kind  EndpointKind
	Index int
	Path  ir.Path
}

// InterfaceState is the wiring status of one Interface value as it is
// incrementally completed during the graph walk: every leaf starts
// Unwired and is monotonically assigned an Endpoint exactly once.
type InterfaceState uint8

const (
	Unwired InterfaceState = iota
	Wired
)

// Interface is a (possibly partially wired) value of interface-level
// type: a tree shaped like its ir.InterfaceTyp, where every leaf
// Channel/Unit carries either Unwired or a concrete Endpoint.
type Interface struct {
	Typ   ir.InterfaceTyp
	leafs map[string]*leafWire
}

type leafWire struct {
	state    InterfaceState
	endpoint Endpoint
}

// NewUnwiredInterface builds an Interface of the given type with every
// leaf Unwired.
func NewUnwiredInterface(typ ir.InterfaceTyp) *Interface {
	iface := &Interface{Typ: typ, leafs: make(map[string]*leafWire)}
	for _, leaf := range typ.IntoPrimitives() {
		iface.leafs[leaf.Path.String()] = &leafWire{}
	}
	return iface
}

// Wire assigns ep as the driver of the leaf at path, which must
// currently be Unwired.
func (iface *Interface) Wire(path ir.Path, ep Endpoint) error {
	key := path.String()
	lw, ok := iface.leafs[key]
	if !ok {
		return fmt.Errorf("graph: path %q is not a leaf of this interface", key)
	}
	if lw.state == Wired {
		return fmt.Errorf("graph: path %q is already wired", key)
	}
	lw.state = Wired
	lw.endpoint = ep
	return nil
}

// WireUnitPrefix wires every leaf under the given path prefix to Unit,
// meaning "not driven by anything, consumed here" — used to finalise
// the synthetic captured/output sub-paths of a call's input interface.
func (iface *Interface) WireUnitPrefix(prefix ir.Path) {
	prefixStr := prefix.String()
	for key, lw := range iface.leafs {
		if lw.state == Unwired && hasPrefix(key, prefixStr) {
			lw.state = Wired
		}
	}
}

func hasPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

// UnwiredPaths reports every leaf path that is still Unwired, for the
// post-walk validation that every input and output leaf got a driver.
func (iface *Interface) UnwiredPaths() []string {
	var out []string
	for key, lw := range iface.leafs {
		if lw.state == Unwired {
			out = append(out, key)
		}
	}
	return out
}

// Endpoints returns every (path, endpoint) pair of this interface's
// wired leafs, used by the emitter to generate continuous assigns.
func (iface *Interface) Endpoints() map[string]Endpoint {
	out := make(map[string]Endpoint, len(iface.leafs))
	for key, lw := range iface.leafs {
		if lw.state == Wired {
			out[key] = lw.endpoint
		}
	}
	return out
}

// ModuleKind classifies a module-producing call at the interface level.
type ModuleKind uint8

const (
	KindFsm ModuleKind = iota
	KindFfi
	KindModuleSplit
	KindSeq
	KindFromFn
	KindSubmodule
)

// Module is one edge's payload: the classified callee plus its
// kind-specific parameters.
type Module struct {
	Kind ModuleKind
	Name string

	// OutputTyp is the callee's output interface type, set for every
	// kind; the emitter uses it to size and name a submodule
	// instance's output ports.
	OutputTyp ir.InterfaceTyp

	// KindFsm
	InitState lower.PureValue
	FsmFn     *lower.Fn

	// KindFfi
	FfiModuleName string
	FfiParams     map[string]string

	// KindSeq
	SeqFn    *lower.Fn
	SeqCount int

	// KindFromFn
	FromFnN int
	FromFn  *lower.Fn

	// KindSubmodule
	Def *thir.FunctionIR
}

// ModuleGraphValue is an opaque value flowing through the interface
// graph constructor: a wired Interface or a PureValue. ExternalPath is
// set when Interface is one of the caller's own (not-yet-consumed)
// input subinterfaces, distinguishing an external argument from an
// ordinary call-result interface value.
type ModuleGraphValue struct {
	Interface    *Interface
	ExternalPath ir.Path
	IsExternal   bool
	Pure         *lower.PureValue
}

// Edge is one entry of the discovered (Module, Interface) list: the
// classified module and the wiring state of its input interface, in
// call order.
type Edge struct {
	Module *Module
	Input  *Interface
}

// TopologyError reports control flow encountered while walking the
// interface-level call graph, which is forbidden because interface
// topology must be fixed in a circuit.
type TopologyError struct {
	Span thir.Span
	What string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("graph: %s:%d:%d: interface topology is fixed in a circuit (%s)", e.Span.File, e.Span.Line, e.Span.Col, e.What)
}

// Graph is the discovered submodule instance graph of one module body:
// the ordered edge list plus the fully-wired top-level output.
type Graph struct {
	Edges  []Edge
	Output *Interface
}

// Builder walks a module body constructing its Graph.
type Builder struct {
	funcs      map[string]*thir.FunctionIR
	edges      []Edge
	pureLower  func(thir.Expr) (ir.ExprId, error)
	input      *Interface
}

// NewBuilder constructs a graph Builder over the given function table.
// pureLower lowers a non-module-valued subexpression folded to a plain
// PureValue; package virgen supplies one that wraps the expression as a
// zero-argument closure and lowers it with lower.Build.
func NewBuilder(funcs map[string]*thir.FunctionIR, pureLower func(thir.Expr) (ir.ExprId, error)) *Builder {
	return &Builder{funcs: funcs, pureLower: pureLower}
}

// Build walks fn's body given its already-classified argument values
// and the declared output interface type, producing the ordered edge
// list and the fully-wired output interface.
func (bld *Builder) Build(fn *thir.FunctionIR, args []ModuleGraphValue, outputTyp ir.InterfaceTyp) (*Graph, error) {
	bindings := make(map[string]ModuleGraphValue, len(args))
	for i, p := range fn.Params {
		if i < len(args) {
			bindings[p.Name] = args[i]
		}
	}

	tail, err := bld.walk(fn.Body, bindings)
	if err != nil {
		return nil, err
	}

	output := NewUnwiredInterface(outputTyp)
	if tail.Interface != nil {
		if err := wireWhole(output, tail.Interface); err != nil {
			return nil, err
		}
	}

	var faults *multierror.Error
	for i, e := range bld.edges {
		for _, p := range e.Input.UnwiredPaths() {
			faults = multierror.Append(faults, fmt.Errorf("graph: edge %d (%s): unresolved input path %q", i, e.Module.Name, p))
		}
	}
	for _, p := range output.UnwiredPaths() {
		faults = multierror.Append(faults, fmt.Errorf("graph: top-level output: unresolved path %q", p))
	}
	if err := faults.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Graph{Edges: bld.edges, Output: output}, nil
}

// wireWhole copies every wired leaf of src onto dst at the same paths,
// used when a whole Interface value (e.g. a submodule's output) is
// returned verbatim as the enclosing module's tail expression.
func wireWhole(dst, src *Interface) error {
	for key, ep := range src.Endpoints() {
		if lw, ok := dst.leafs[key]; ok && lw.state == Unwired {
			lw.state = Wired
			lw.endpoint = ep
		}
	}
	return nil
}
