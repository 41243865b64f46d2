package ir

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies a validation failure raised while checking an
// Expr tree or InterfaceTyp against the type lattice's invariants.
type ErrorKind uint8

const (
	ErrWidthMismatch ErrorKind = iota
	ErrShapeMismatch
	ErrEmptyCase
	ErrBadPath
	ErrSignednessMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case ErrWidthMismatch:
		return "width mismatch"
	case ErrShapeMismatch:
		return "shape mismatch"
	case ErrEmptyCase:
		return "case with no arms and no default"
	case ErrBadPath:
		return "invalid interface path"
	case ErrSignednessMismatch:
		return "signedness mismatch"
	default:
		return "unknown error"
	}
}

// Error is a single validation fault located at an ExprId, carrying the
// offending Span for diagnostics.
type Error struct {
	Kind ErrorKind
	Expr ExprId
	Span Span
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("ir: %s at expr %d (%s:%d:%d): %s", e.Kind, e.Expr, e.Span.File, e.Span.Line, e.Span.Col, e.Msg)
	}
	return fmt.Sprintf("ir: %s at expr %d (%s:%d:%d)", e.Kind, e.Expr, e.Span.File, e.Span.Line, e.Span.Col)
}

// Validator walks a Store's exprs checking the per-kind width and
// shape invariants, accumulating every fault found rather than
// stopping at the first one.
type Validator struct {
	store  *Store
	faults *multierror.Error
}

// NewValidator constructs a Validator over the given arena.
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// Check validates every expr id in ids, returning a combined error (via
// go-multierror) describing every fault found, or nil if none were
// found.
func (v *Validator) Check(ids []ExprId) error {
	for _, id := range ids {
		v.checkOne(id)
	}
	return v.faults.ErrorOrNil()
}

func (v *Validator) checkOne(id ExprId) {
	e := v.store.Get(id)
	defer func() {
		if r := recover(); r != nil {
			v.faults = multierror.Append(v.faults, &Error{
				Kind: ErrWidthMismatch,
				Expr: id,
				Span: e.Span,
				Msg:  fmt.Sprintf("%v", r),
			})
		}
	}()
	switch k := e.Kind.(type) {
	case ExprCase:
		if len(k.Items) == 0 && k.Default == nil {
			v.faults = multierror.Append(v.faults, &Error{Kind: ErrEmptyCase, Expr: id, Span: e.Span})
			return
		}
		v.checkCaseWidths(id, k)
	case ExprCond:
		v.checkCondWidths(id, k)
	}
	// Force the per-kind width/port_decls computation so that any
	// asserted invariant (e.g. Add operand widths, comparison operand
	// widths) surfaces as a recovered panic above instead of escaping
	// to the caller.
	_ = e.PortDecls(v.store.TypeOf)
}

func (v *Validator) checkCaseWidths(id ExprId, k ExprCase) {
	var want int
	haveWant := false
	check := func(val ExprId) {
		w := v.store.TypeOf(val).Width()
		if !haveWant {
			want = w
			haveWant = true
			return
		}
		if w != want {
			v.faults = multierror.Append(v.faults, &Error{
				Kind: ErrWidthMismatch, Expr: id, Span: v.store.Get(id).Span,
				Msg: fmt.Sprintf("case arm width %d differs from %d", w, want),
			})
		}
	}
	for _, item := range k.Items {
		check(item.Val)
	}
	if k.Default != nil {
		check(*k.Default)
	}
}

func (v *Validator) checkCondWidths(id ExprId, k ExprCond) {
	want := v.store.TypeOf(k.Default).Width()
	for _, arm := range k.Arms {
		if v.store.TypeOf(arm.Cond).Width() != 1 {
			v.faults = multierror.Append(v.faults, &Error{
				Kind: ErrWidthMismatch, Expr: id, Span: v.store.Get(id).Span,
				Msg: "cond guard must be 1 bit wide",
			})
		}
		if v.store.TypeOf(arm.Val).Width() != want {
			v.faults = multierror.Append(v.faults, &Error{
				Kind: ErrWidthMismatch, Expr: id, Span: v.store.Get(id).Span,
				Msg: fmt.Sprintf("cond arm width %d differs from default width %d", v.store.TypeOf(arm.Val).Width(), want),
			})
		}
	}
}
