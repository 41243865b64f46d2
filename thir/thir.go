// Package thir defines the typed function-IR contract that package lower
// consumes: the shape of a type-checked function body as handed down by
// a host frontend. hfc does not parse or type-check source itself; thir
// is the boundary a frontend adapter must produce.
package thir

// Span marks a source location for diagnostics.
type Span struct {
	File      string
	Line, Col int
}

// Ty is a frontend type handle. hfc only needs two projections of it: the
// bit-level payload layout and the interface-level channel/struct shape.
// Keeping Ty a narrow interface lets thir stay ignorant of ir's concrete
// layout rules.
type Ty interface {
	// ToPortDecls reports the bit-level layout, or ok=false if this type
	// has no fixed width (e.g. it is itself an interface type).
	ToPortDecls() (decl interface{}, ok bool)
	// ToInterfaceTyp reports the interface-level layout, or ok=false if
	// this type is a plain bit-level value.
	ToInterfaceTyp() (typ interface{}, ok bool)
	// EnumVariants reports every declared variant of a sum type, in
	// discriminant order, or ok=false if this type is not an enum. Unlike
	// EnumCtor (which only carries the payload of the variant actually
	// being constructed), this exposes every sibling variant's field
	// types so lowering can size the inactive slots of the ADT layout.
	EnumVariants() (variants []EnumVariantTy, ok bool)
	String() string
}

// EnumFieldTy is one payload field of an EnumVariantTy.
type EnumFieldTy struct {
	Name string
	Typ  Ty
}

// EnumVariantTy is one declared variant of an enum Ty, as reported by
// Ty.EnumVariants.
type EnumVariantTy struct {
	Name   string
	Fields []EnumFieldTy
}

// Node is the base interface implemented by every thir AST node.
type Node interface {
	Pos() Span
}

// Expr is the tagged union of typed-IR expression kinds lowered by
// package lower.
type Expr interface {
	Node
	exprNode()
	Type() Ty
}

// ExprBase is embedded by every concrete Expr node; exported so a
// frontend adapter can construct node literals directly.
type ExprBase struct {
	Span Span
	Typ  Ty
}

func (e ExprBase) Pos() Span { return e.Span }
func (e ExprBase) Type() Ty  { return e.Typ }

// Lit is a literal value of a scalar or enum-discriminant type.
type Lit struct {
	ExprBase
	// Bits is the little-endian bit pattern of the literal.
	Bits []bool
}

func (*Lit) exprNode() {}

// Tuple constructs a positional-field aggregate.
type Tuple struct {
	ExprBase
	Elems []Expr
}

func (*Tuple) exprNode() {}

// StructCtor constructs a named-field aggregate.
type StructCtor struct {
	ExprBase
	Fields []StructCtorField
}

// StructCtorField is one field of a StructCtor.
type StructCtorField struct {
	Name string
	Val  Expr
}

func (*StructCtor) exprNode() {}

// EnumCtor constructs one variant of a sum type: the discriminant plus
// that variant's payload fields. Lowering fills inactive variants' slots
// with X.
type EnumCtor struct {
	ExprBase
	VariantName  string
	VariantIndex int
	NumVariants  int
	Fields       []StructCtorField
}

func (*EnumCtor) exprNode() {}

// Field projects a named field out of a struct-typed value. Index is
// the field's resolved position in the struct's declaration order, set
// by the frontend that produced this thir; Name is kept for
// diagnostics.
type Field struct {
	ExprBase
	Base  Expr
	Name  string
	Index int
}

func (*Field) exprNode() {}

// Index projects a positional element out of an array-typed value by a
// runtime-valued index expression.
type Index struct {
	ExprBase
	Base  Expr
	Index Expr
}

func (*Index) exprNode() {}

// If is a conditional with an optional else branch (absent only when
// the surrounding context guarantees exhaustiveness some other way;
// lowering always treats this as Cond{[(cond,then)], default=else}).
type If struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

func (*If) exprNode() {}

// Match dispatches on a scrutinee across a sequence of pattern arms.
type Match struct {
	ExprBase
	Scrutinee Expr
	Arms      []Arm
}

// Arm is one arm of a Match: a pattern, an optional boolean guard, and
// the arm body.
type Arm struct {
	Pat   Pat
	Guard Expr
	Body  Expr
}

func (*Match) exprNode() {}

// Var references a local binding introduced by a pattern or a function
// parameter.
type Var struct {
	ExprBase
	Name string
}

func (*Var) exprNode() {}

// Upvar references a variable captured from an enclosing function by a
// Closure.
type Upvar struct {
	ExprBase
	Name string
}

func (*Upvar) exprNode() {}

// BinOpKind enumerates the typed-IR binary operators lowered to
// ir.BinaryOp.
type BinOpKind uint8

const (
	BinAdd BinOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLogicalAnd
	BinLogicalOr
)

// BinOp is a typed binary operation.
type BinOp struct {
	ExprBase
	Op       BinOpKind
	Lhs, Rhs Expr
}

func (*BinOp) exprNode() {}

// UnOpKind enumerates the typed-IR unary operators.
type UnOpKind uint8

const (
	UnNot UnOpKind = iota
	UnNeg
)

// UnOp is a typed unary operation.
type UnOp struct {
	ExprBase
	Op   UnOpKind
	Base Expr
}

func (*UnOp) exprNode() {}

// Cast reinterprets Base's value as To.
type Cast struct {
	ExprBase
	Base Expr
	To   Ty
}

func (*Cast) exprNode() {}

// Closure is a first-class function value capturing Upvars by name from
// the enclosing scope.
type Closure struct {
	ExprBase
	Params  []Param
	Body    Expr
	Upvars  []string
}

func (*Closure) exprNode() {}

// Param is one function parameter.
type Param struct {
	Name string
	Typ  Ty
}

// CalleeKind distinguishes how a Call's callee should be resolved.
type CalleeKind uint8

const (
	CalleeClosure CalleeKind = iota
	CalleeLocalFunction
	CalleeMagic
	CalleeForeign
)

// Call invokes a callee with a tuple of arguments. Kind and MagicName
// disambiguate the four lowering cases of component C.
type Call struct {
	ExprBase
	Kind       CalleeKind
	Callee     Expr
	FuncName   string
	MagicName  string
	Args       []Expr
}

func (*Call) exprNode() {}

// ArrayLit is a fixed-length array literal.
type ArrayLit struct {
	ExprBase
	Elems []Expr
}

func (*ArrayLit) exprNode() {}

// Let binds Pat to Init's value within Body. If Pat can fail to match
// (e.g. a single enum-variant pattern) Else supplies the fallback body;
// Else is nil when the pattern is irrefutable.
type Let struct {
	ExprBase
	Pat  Pat
	Init Expr
	Body Expr
	Else Expr
}

func (*Let) exprNode() {}

// Return is an explicit early return; component C records its
// accumulated path condition during the preprocess pass.
type Return struct {
	ExprBase
	Value Expr
}

func (*Return) exprNode() {}

// SystemTaskKind distinguishes the two system-task primitives.
type SystemTaskKind uint8

const (
	SystemTaskDisplay SystemTaskKind = iota
	SystemTaskAssert
)

// SystemTask is a display/assert call; Cond is populated only for
// Assert.
type SystemTask struct {
	ExprBase
	Kind    SystemTaskKind
	Fstring string
	Args    []Expr
	Cond    Expr
}

func (*SystemTask) exprNode() {}

// Pat is the tagged union of pattern kinds matched in Match arms and Let
// bindings.
type Pat interface {
	patNode()
}

// Wild matches any value and binds nothing.
type Wild struct{}

func (Wild) patNode() {}

// Bind matches any value and binds it to Name.
type Bind struct{ Name string }

func (Bind) patNode() {}

// EnumVariant matches a specific variant discriminant and recursively
// matches its payload fields.
type EnumVariant struct {
	VariantName  string
	VariantIndex int
	Fields       []Pat
}

func (EnumVariant) patNode() {}

// TuplePat matches every positional element of a tuple value.
type TuplePat struct{ Elems []Pat }

func (TuplePat) patNode() {}

// Or matches if any alternative matches; all alternatives must bind the
// same set of names.
type Or struct{ Alts []Pat }

func (Or) patNode() {}

// FunctionIR is one function's typed body plus its signature.
type FunctionIR struct {
	Name   string
	Params []Param
	RetTy  Ty
	Body   Expr
	Attrs  []Attr
}

// AttrKind enumerates the function-level classification tags of
// component D/F and the external-interface contract.
type AttrKind uint8

const (
	AttrInterfaceFsm AttrKind = iota
	AttrFfi
	AttrModuleSplit
	AttrFromFn
	AttrSeq
	AttrSubmodule
	AttrPure
	AttrArrayMagic
	AttrIntMagic
	AttrAdtMagic
	AttrXMagic
	AttrSystemTask
	AttrSynthesize
	AttrCompositeInterface
)

// Attr is one classification tag attached to a FunctionIR, carrying the
// kind-specific payload fields that are non-empty for that kind.
type Attr struct {
	Kind AttrKind

	// AttrFfi
	ModuleName string
	Params     []string

	// AttrFromFn
	N int

	// AttrArrayMagic / AttrIntMagic / AttrAdtMagic
	MagicName string

	// AttrSystemTask
	TaskKind SystemTaskKind
}

// HasAttr reports whether fn carries an attribute of the given kind.
func (fn *FunctionIR) HasAttr(kind AttrKind) bool {
	_, ok := fn.FindAttr(kind)
	return ok
}

// FindAttr returns the first attribute of the given kind, if any.
func (fn *FunctionIR) FindAttr(kind AttrKind) (Attr, bool) {
	for _, a := range fn.Attrs {
		if a.Kind == kind {
			return a, true
		}
	}
	return Attr{}, false
}
