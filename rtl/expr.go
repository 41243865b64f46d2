package rtl

// Expr is the tagged union of printable RTL expression kinds.
type Expr interface {
	exprNode()
}

// Ident is a bare or bit-sliced identifier reference. Slice=false means
// "no slice, print the bare name"; otherwise it prints
// `name[base +: width]`.
type Ident struct {
	Name  string
	Base  int
	Width int
	Slice bool
}

func (Ident) exprNode() {}

// Lit is a sized numeric literal, printed `<width>'b...` for Binary or
// `<width>'d...` for Decimal.
type Lit struct {
	Width  int
	Value  uint64
	Binary bool
}

func (Lit) exprNode() {}

// UnaryOp is a prefix unary operator applied to Operand (`~`, `-`, `&`,
// `|`, `^`, `!`).
type UnaryOp struct {
	Op      string
	Operand Expr
}

func (UnaryOp) exprNode() {}

// BinaryOp is an infix binary operator.
type BinaryOp struct {
	Op       string
	Lhs, Rhs Expr
}

func (BinaryOp) exprNode() {}

// Ternary is `Cond ? Then : Else`.
type Ternary struct {
	Cond, Then, Else Expr
}

func (Ternary) exprNode() {}

// Concat is a multi-concatenation `{e0, e1, ...}`.
type Concat struct {
	Elems []Expr
}

func (Concat) exprNode() {}

// Repl is a replication `{count{e}}`.
type Repl struct {
	Count int
	Elem  Expr
}

func (Repl) exprNode() {}

// Sliced builds an Ident with an explicit `[base +: width]` bit-range.
func Sliced(name string, base, width int) Ident {
	return Ident{Name: name, Base: base, Width: width, Slice: true}
}

// Bare builds an Ident with no bit-range.
func Bare(name string) Ident {
	return Ident{Name: name}
}
