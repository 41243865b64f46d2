package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintRendersPortsDeclsAssignsAndInstance(t *testing.T) {
	m := &Module{
		Name: "adder",
		Ports: []Port{
			{Dir: Input, Name: "clk", Width: 1},
			{Dir: Input, Name: "a", Width: 8},
			{Dir: Output, Name: "sum", Width: 8},
		},
		Decls: []Decl{
			{Kind: DeclWire, Name: "tmp", Width: 8},
			{Kind: DeclReg, Name: "acc", Width: 8},
		},
		Instances: []Instance{
			{Module: "child", InstName: "u0", Connections: []Connection{{Port: "a", Expr: Bare("a")}}},
		},
		Assigns: []Assign{
			{Lhs: Bare("sum"), Rhs: Sliced("tmp", 0, 8)},
		},
	}

	out := Print(m)
	assert.Contains(t, out, "module adder(clk, a, sum);")
	assert.Contains(t, out, "input clk;")
	assert.Contains(t, out, "input [7:0] a;")
	assert.Contains(t, out, "output [7:0] sum;")
	assert.Contains(t, out, "wire [7:0] tmp;")
	assert.Contains(t, out, "reg [7:0] acc;")
	assert.Contains(t, out, "child u0(.a(a));")
	assert.Contains(t, out, "assign sum = tmp[0 +: 8];")
	assert.Contains(t, out, "endmodule")
}

func TestPrintAlwaysBlocksPosedgeAndStar(t *testing.T) {
	m := &Module{
		Name: "fsm",
		Always: []Always{
			{Body: []Stmt{BlockingAssign{Lhs: Bare("x"), Rhs: Lit{Width: 1, Value: 1, Binary: true}}}},
			{Posedge: true, Clock: "clk", Body: []Stmt{
				If{
					Cond: Bare("rst"),
					Then: []Stmt{NonBlockingAssign{Lhs: Bare("q"), Rhs: Lit{Width: 1, Value: 0, Binary: true}}},
					Else: []Stmt{NonBlockingAssign{Lhs: Bare("q"), Rhs: Bare("x")}},
				},
			}},
		},
	}

	out := Print(m)
	assert.Contains(t, out, "always @* begin")
	assert.Contains(t, out, "always @(posedge clk) begin")
	assert.Contains(t, out, "if (rst) begin")
	assert.Contains(t, out, "q <= 1'b0;")
	assert.Contains(t, out, "end else begin")
}

func TestExprPrintingBinaryLiteralsAndSlices(t *testing.T) {
	p := NewPrinter()
	assert.Equal(t, "8'b101", p.expr(Lit{Width: 8, Value: 5, Binary: true}))
	assert.Equal(t, "name[3 +: 4]", p.expr(Sliced("name", 3, 4)))
	assert.Equal(t, "(~a)", p.expr(UnaryOp{Op: "~", Operand: Bare("a")}))
	assert.Equal(t, "{a, b}", p.expr(Concat{Elems: []Expr{Bare("a"), Bare("b")}}))
}
