// Package lower implements the pure function lowering pass (component C):
// recursive descent over a typed function body (package thir) producing
// a hash-consed combinational expression (package ir) plus the list of
// system tasks encountered along the way.
package lower

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// PureValue is the value of one local binding during lowering: either a
// plain combinational expr, or (when the binding is itself a function
// value passed as an argument) a Fn, kept separate so that calling it
// does not require an ir.ExprId placeholder.
type PureValue struct {
	Expr ir.ExprId
	Fn   *Fn
	// IsFn distinguishes a bound function argument from a plain value;
	// Fn is only valid when IsFn is true.
	IsFn bool
}

// ExprValue wraps a plain expression id as a PureValue.
func ExprValue(id ir.ExprId) PureValue { return PureValue{Expr: id} }

// FnValue wraps a function value as a PureValue.
func FnValue(fn *Fn) PureValue { return PureValue{Fn: fn, IsFn: true} }

// FnKind distinguishes a function bound to a named top-level definition
// from one produced by a closure literal, which must carry its captured
// upvars as data rather than as a bare code pointer.
type FnKind uint8

const (
	FnLocal FnKind = iota
	FnClosure
)

// Fn is a lowerable function value: either a reference to a named
// FunctionIR (FnLocal) or a closure literal together with its captured
// upvar bindings (FnClosure). Fn travels by value through PureValue so
// that passing a closure to Map/Fold carries its captures along.
type Fn struct {
	Kind FnKind

	// FnLocal
	Def *thir.FunctionIR

	// FnClosure
	Params []thir.Param
	Body   thir.Expr
	Upvars map[string]PureValue
}

// IsClosure reports whether fn is a closure value (carries captured
// state) rather than a bare reference to a top-level function.
func (fn *Fn) IsClosure() bool { return fn.Kind == FnClosure }

// Condition is one frame of a path-condition stack recorded during the
// preprocess pass: either a plain boolean thir expression, a pattern
// match test, or the negation of another Condition. Conditions are kept
// as a stack of distinct frames rather than eagerly ANDed together, so
// that the AND only materialises into a single ir.ExprId lazily, at the
// point some system task or explicit return actually needs it.
type Condition struct {
	// Kind selects which of Expr/Matches/Inner is populated.
	Kind ConditionKind
	Expr thir.Expr
	Pat  thir.Pat
	On   thir.Expr
	Inner *Condition
}

// ConditionKind tags a Condition's variant.
type ConditionKind uint8

const (
	CondExpr ConditionKind = iota
	CondMatches
	CondNot
)

// ExprCond builds a plain boolean-expression condition frame.
func ExprCond(e thir.Expr) Condition { return Condition{Kind: CondExpr, Expr: e} }

// MatchesCond builds a pattern-match-test condition frame.
func MatchesCond(pat thir.Pat, on thir.Expr) Condition {
	return Condition{Kind: CondMatches, Pat: pat, On: on}
}

// NotCond negates another condition frame.
func NotCond(c Condition) Condition { return Condition{Kind: CondNot, Inner: &c} }

// ExplicitReturn records one `return e` encountered during preprocess,
// along with the path condition active at that point.
type ExplicitReturn struct {
	Value     thir.Expr
	PathConds []Condition
}

// SystemTaskInfo records one display/assert call site discovered during
// preprocess, along with the path condition active at that point.
type SystemTaskInfo struct {
	Kind      thir.SystemTaskKind
	Fstring   string
	Arg       thir.Expr
	Cond      thir.Expr // only set when Kind == SystemTaskAssert
	PathConds []Condition
	Span      thir.Span
}

// PreprocessResult is the output of the preprocess pass: every explicit
// return and system task found in a function body, each carrying the
// path condition active at its call site.
type PreprocessResult struct {
	Returns      []ExplicitReturn
	SystemTasks  []SystemTaskInfo
}

// PreprocessCtx accumulates Condition frames while walking a function
// body depth-first; push/pop bracket each branch so that frames outside
// the current branch are never seen by nested recorders.
type PreprocessCtx struct {
	stack   []Condition
	result  PreprocessResult
}

// NewPreprocessCtx constructs an empty preprocessing context.
func NewPreprocessCtx() *PreprocessCtx {
	return &PreprocessCtx{}
}

// PushCond pushes a new condition frame active for the remainder of the
// current branch.
func (c *PreprocessCtx) PushCond(cond Condition) {
	c.stack = append(c.stack, cond)
}

// PopCond removes the most recently pushed condition frame.
func (c *PreprocessCtx) PopCond() {
	c.stack = c.stack[:len(c.stack)-1]
}

// PathConds snapshots the current stack of condition frames.
func (c *PreprocessCtx) PathConds() []Condition {
	out := make([]Condition, len(c.stack))
	copy(out, c.stack)
	return out
}

// Preprocess walks body recording every explicit return and system task
// together with the path condition active at its site.
func Preprocess(body thir.Expr) PreprocessResult {
	ctx := NewPreprocessCtx()
	ctx.walk(body)
	return ctx.result
}

func (c *PreprocessCtx) walk(e thir.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *thir.If:
		c.walk(n.Cond)
		c.PushCond(ExprCond(n.Cond))
		c.walk(n.Then)
		c.PopCond()
		if n.Else != nil {
			c.PushCond(NotCond(ExprCond(n.Cond)))
			c.walk(n.Else)
			c.PopCond()
		}
	case *thir.Match:
		c.walk(n.Scrutinee)
		for _, arm := range n.Arms {
			cond := MatchesCond(arm.Pat, n.Scrutinee)
			c.PushCond(cond)
			if arm.Guard != nil {
				c.PushCond(ExprCond(arm.Guard))
			}
			c.walk(arm.Body)
			if arm.Guard != nil {
				c.PopCond()
			}
			c.PopCond()
		}
	case *thir.Let:
		c.walk(n.Init)
		c.walk(n.Body)
		c.walk(n.Else)
	case *thir.Return:
		c.walk(n.Value)
		c.result.Returns = append(c.result.Returns, ExplicitReturn{
			Value: n.Value, PathConds: c.PathConds(),
		})
	case *thir.SystemTask:
		for _, a := range n.Args {
			c.walk(a)
		}
		info := SystemTaskInfo{
			Kind: n.Kind, Fstring: n.Fstring, PathConds: c.PathConds(), Span: n.Pos(),
		}
		if len(n.Args) > 0 {
			info.Arg = n.Args[0]
		}
		if n.Kind == thir.SystemTaskAssert {
			info.Cond = n.Cond
			c.walk(n.Cond)
		}
		c.result.SystemTasks = append(c.result.SystemTasks, info)
	case *thir.BinOp:
		c.walk(n.Lhs)
		c.walk(n.Rhs)
	case *thir.UnOp:
		c.walk(n.Base)
	case *thir.Cast:
		c.walk(n.Base)
	case *thir.Field:
		c.walk(n.Base)
	case *thir.Index:
		c.walk(n.Base)
		c.walk(n.Index)
	case *thir.Tuple:
		for _, el := range n.Elems {
			c.walk(el)
		}
	case *thir.StructCtor:
		for _, f := range n.Fields {
			c.walk(f.Val)
		}
	case *thir.EnumCtor:
		for _, f := range n.Fields {
			c.walk(f.Val)
		}
	case *thir.ArrayLit:
		for _, el := range n.Elems {
			c.walk(el)
		}
	case *thir.Call:
		for _, a := range n.Args {
			c.walk(a)
		}
	}
}

// errf formats a fatal lowering error with its site's span attached.
func errf(span thir.Span, format string, args ...interface{}) error {
	return fmt.Errorf("lower: %s:%d:%d: %s", span.File, span.Line, span.Col, fmt.Sprintf(format, args...))
}
