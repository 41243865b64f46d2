package rtl

import (
	"fmt"
	"strconv"
	"strings"
)

// Printer renders a Module to Verilog text, accumulating indented lines
// in a strings.Builder.
type Printer struct {
	out    strings.Builder
	indent int
}

// NewPrinter constructs an empty Printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// String returns the text accumulated so far.
func (p *Printer) String() string {
	return p.out.String()
}

// Print renders m and returns the resulting Verilog source.
func Print(m *Module) string {
	p := NewPrinter()
	p.writeModule(m)
	return p.String()
}

func (p *Printer) line(format string, args ...interface{}) {
	p.out.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.out, format, args...)
	p.out.WriteString("\n")
}

func (p *Printer) writeModule(m *Module) {
	portNames := make([]string, len(m.Ports))
	for i, port := range m.Ports {
		portNames[i] = port.Name
	}
	p.line("module %s(%s);", m.Name, strings.Join(portNames, ", "))
	p.indent++

	for _, port := range m.Ports {
		dir := "input"
		if port.Dir == Output {
			dir = "output"
		}
		if port.Width == 1 {
			p.line("%s %s;", dir, port.Name)
		} else {
			p.line("%s [%d:0] %s;", dir, port.Width-1, port.Name)
		}
	}

	for _, d := range m.Decls {
		p.writeDecl(d)
	}

	for _, inst := range m.Instances {
		p.writeInstance(inst)
	}

	for _, a := range m.Assigns {
		p.line("assign %s = %s;", p.expr(a.Lhs), p.expr(a.Rhs))
	}

	for _, blk := range m.Always {
		p.writeAlways(blk)
	}

	p.indent--
	p.line("endmodule")
}

func (p *Printer) writeDecl(d Decl) {
	kw := "wire"
	switch d.Kind {
	case DeclReg:
		kw = "reg"
	case DeclInteger:
		p.line("integer %s;", d.Name)
		return
	}
	widthPart := ""
	if d.Width != 1 {
		widthPart = fmt.Sprintf("[%d:0] ", d.Width-1)
	}
	dimsPart := ""
	for _, n := range d.Dims {
		dimsPart += fmt.Sprintf("[0:%d]", n-1)
	}
	p.line("%s %s%s%s;", kw, widthPart, d.Name, dimsPart)
}

func (p *Printer) writeInstance(inst Instance) {
	var params string
	if len(inst.Params) > 0 {
		parts := make([]string, len(inst.Params))
		for i, c := range inst.Params {
			parts[i] = fmt.Sprintf(".%s(%s)", c.Port, p.expr(c.Expr))
		}
		params = fmt.Sprintf(" #(%s)", strings.Join(parts, ", "))
	}
	conns := make([]string, len(inst.Connections))
	for i, c := range inst.Connections {
		conns[i] = fmt.Sprintf(".%s(%s)", c.Port, p.expr(c.Expr))
	}
	p.line("%s%s %s(%s);", inst.Module, params, inst.InstName, strings.Join(conns, ", "))
}

func (p *Printer) writeAlways(a Always) {
	if a.Posedge {
		p.line("always @(posedge %s) begin", a.Clock)
	} else {
		p.line("always @* begin")
	}
	p.indent++
	p.writeStmts(a.Body)
	p.indent--
	p.line("end")
}

func (p *Printer) writeStmts(stmts []Stmt) {
	for _, s := range stmts {
		p.writeStmt(s)
	}
}

func (p *Printer) writeStmt(s Stmt) {
	switch n := s.(type) {
	case BlockingAssign:
		p.line("%s = %s;", p.expr(n.Lhs), p.expr(n.Rhs))
	case NonBlockingAssign:
		p.line("%s <= %s;", p.expr(n.Lhs), p.expr(n.Rhs))
	case If:
		p.line("if (%s) begin", p.expr(n.Cond))
		p.indent++
		p.writeStmts(n.Then)
		p.indent--
		if len(n.Else) > 0 {
			p.line("end else begin")
			p.indent++
			p.writeStmts(n.Else)
			p.indent--
		}
		p.line("end")
	case Case:
		p.line("case (%s)", p.expr(n.Sel))
		p.indent++
		for _, item := range n.Items {
			label := "default"
			if !item.Default {
				label = p.expr(item.Match)
			}
			p.line("%s: begin", label)
			p.indent++
			p.writeStmts(item.Body)
			p.indent--
			p.line("end")
		}
		p.indent--
		p.line("endcase")
	case Display:
		args := make([]string, 0, len(n.Args)+1)
		args = append(args, strconv.Quote(n.Fstring))
		for _, a := range n.Args {
			args = append(args, p.expr(a))
		}
		p.line("$display(%s);", strings.Join(args, ", "))
	case Fatal:
		p.line("$fatal;")
	default:
		p.line("// unknown statement %T", s)
	}
}

// expr renders an expression; bit-slices always use the `[base +:
// width]` form.
func (p *Printer) expr(e Expr) string {
	switch n := e.(type) {
	case Ident:
		if !n.Slice {
			return n.Name
		}
		return fmt.Sprintf("%s[%d +: %d]", n.Name, n.Base, n.Width)
	case Lit:
		if n.Binary {
			return fmt.Sprintf("%d'b%s", n.Width, strconv.FormatUint(n.Value, 2))
		}
		return fmt.Sprintf("%d'd%d", n.Width, n.Value)
	case UnaryOp:
		return fmt.Sprintf("(%s%s)", n.Op, p.expr(n.Operand))
	case BinaryOp:
		return fmt.Sprintf("(%s %s %s)", p.expr(n.Lhs), n.Op, p.expr(n.Rhs))
	case Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", p.expr(n.Cond), p.expr(n.Then), p.expr(n.Else))
	case Concat:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			parts[i] = p.expr(el)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Repl:
		return fmt.Sprintf("{%d{%s}}", n.Count, p.expr(n.Elem))
	default:
		return fmt.Sprintf("/* unknown expr %T */", e)
	}
}
