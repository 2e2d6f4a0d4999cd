// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// Program is the root of the AST: the list of top-level items of one source file.
type Program struct {
	File  string
	Items []Item
}

// Item is a top-level declaration: *FuncDecl or *StructDecl.
type Item interface {
	Position() Pos
	itemNode()
}

// FuncDecl is a function definition. Only "main" without parameters can be lowered.
type FuncDecl struct {
	Pos    Pos
	Name   string
	Params []string
	Body   *Block
}

// StructDecl is a struct definition. It is parsed but has no lowering rule.
type StructDecl struct {
	Pos    Pos
	Name   string
	Fields []Field
}

// Field of a StructDecl.
type Field struct {
	Pos        Pos
	Name, Type string
}

func (d *FuncDecl) Position() Pos   { return d.Pos }
func (d *StructDecl) Position() Pos { return d.Pos }
func (*FuncDecl) itemNode()         {}
func (*StructDecl) itemNode()       {}

// Block is a braced list of statements. It opens a new scope.
type Block struct {
	Pos   Pos
	Stmts []Stmt
}

// Stmt is one of the statement nodes below.
type Stmt interface {
	Position() Pos
	stmtNode()
}

type (
	// LearnStmt declares a trainable variable: `learn x = 5.0;`
	LearnStmt struct {
		Pos   Pos
		Name  string
		Value Expr
	}

	// LetStmt declares a plain variable: `let y = x * x;`
	LetStmt struct {
		Pos   Pos
		Name  string
		Value Expr
	}

	// AssignStmt rebinds an already declared variable: `y = y + 1;`
	AssignStmt struct {
		Pos   Pos
		Name  string
		Value Expr
	}

	// MinimizeStmt designates the objective of the enclosing optimize block.
	MinimizeStmt struct {
		Pos   Pos
		Value Expr
	}

	// OptimizeStmt is the convergence loop:
	//
	//	optimize(lr = 0.01, max_iter = 1000) until loss < 0.0001 { ... }
	//
	// Until is nil if no convergence predicate was given.
	OptimizeStmt struct {
		Pos     Pos
		Options []Option
		Until   Expr
		Body    *Block
	}

	// ReturnStmt ends main. Value may be nil.
	ReturnStmt struct {
		Pos   Pos
		Value Expr
	}

	// ExprStmt is an expression used as a statement. It is parsed but has no lowering rule.
	ExprStmt struct {
		Pos Pos
		X   Expr
	}
)

// Option is a `name = number` setting of an optimize statement.
type Option struct {
	Pos   Pos
	Name  string
	Value float64
}

func (s *LearnStmt) Position() Pos    { return s.Pos }
func (s *LetStmt) Position() Pos      { return s.Pos }
func (s *AssignStmt) Position() Pos   { return s.Pos }
func (s *MinimizeStmt) Position() Pos { return s.Pos }
func (s *OptimizeStmt) Position() Pos { return s.Pos }
func (s *ReturnStmt) Position() Pos   { return s.Pos }
func (s *ExprStmt) Position() Pos     { return s.Pos }
func (*LearnStmt) stmtNode()          {}
func (*LetStmt) stmtNode()            {}
func (*AssignStmt) stmtNode()         {}
func (*MinimizeStmt) stmtNode()       {}
func (*OptimizeStmt) stmtNode()       {}
func (*ReturnStmt) stmtNode()         {}
func (*ExprStmt) stmtNode()           {}

// Expr is one of the expression nodes below.
type Expr interface {
	Position() Pos
	exprNode()
}

// BinaryOp is the operator of a BinaryExpr.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEqual
	OpNotEqual
)

var binaryOpSymbols = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpLess: "<", OpGreater: ">", OpLessEq: "<=", OpGreaterEq: ">=", OpEqual: "==", OpNotEqual: "!=",
}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOpSymbols) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOpSymbols[op]
}

// IsComparison returns whether op is one of the comparison operators.
func (op BinaryOp) IsComparison() bool { return op >= OpLess && op <= OpNotEqual }

type (
	// NumberLit is a float literal.
	NumberLit struct {
		Pos   Pos
		Value float64
	}

	// Ident is a reference to a variable.
	Ident struct {
		Pos  Pos
		Name string
	}

	// BinaryExpr is `X Op Y`.
	BinaryExpr struct {
		Pos  Pos
		Op   BinaryOp
		X, Y Expr
	}

	// NegExpr is the unary negation `-X`.
	NegExpr struct {
		Pos Pos
		X   Expr
	}

	// CallExpr is a call to a builtin function, e.g. `exp(x)`.
	CallExpr struct {
		Pos  Pos
		Func string
		Args []Expr
	}
)

func (e *NumberLit) Position() Pos  { return e.Pos }
func (e *Ident) Position() Pos      { return e.Pos }
func (e *BinaryExpr) Position() Pos { return e.Pos }
func (e *NegExpr) Position() Pos    { return e.Pos }
func (e *CallExpr) Position() Pos   { return e.Pos }
func (*NumberLit) exprNode()        {}
func (*Ident) exprNode()            {}
func (*BinaryExpr) exprNode()       {}
func (*NegExpr) exprNode()          {}
func (*CallExpr) exprNode()         {}

// FormatExpr renders an expression back to source form, fully parenthesizing
// binary operations.
func FormatExpr(e Expr) string {
	var sb strings.Builder
	formatExpr(&sb, e)
	return sb.String()
}

func formatExpr(sb *strings.Builder, e Expr) {
	switch e := e.(type) {
	case *NumberLit:
		sb.WriteString(strconv.FormatFloat(e.Value, 'g', -1, 64))
	case *Ident:
		sb.WriteString(e.Name)
	case *BinaryExpr:
		sb.WriteByte('(')
		formatExpr(sb, e.X)
		fmt.Fprintf(sb, " %s ", e.Op)
		formatExpr(sb, e.Y)
		sb.WriteByte(')')
	case *NegExpr:
		sb.WriteByte('-')
		formatExpr(sb, e.X)
	case *CallExpr:
		sb.WriteString(e.Func)
		sb.WriteByte('(')
		for ii, arg := range e.Args {
			if ii > 0 {
				sb.WriteString(", ")
			}
			formatExpr(sb, arg)
		}
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

// String renders the program back to (canonical) source form. Used by `noma build -ast`.
func (p *Program) String() string {
	var sb strings.Builder
	for ii, item := range p.Items {
		if ii > 0 {
			sb.WriteByte('\n')
		}
		switch item := item.(type) {
		case *FuncDecl:
			fmt.Fprintf(&sb, "fn %s(%s) ", item.Name, strings.Join(item.Params, ", "))
			formatBlock(&sb, item.Body, 0)
			sb.WriteByte('\n')
		case *StructDecl:
			fmt.Fprintf(&sb, "struct %s {\n", item.Name)
			for _, field := range item.Fields {
				fmt.Fprintf(&sb, "    %s: %s,\n", field.Name, field.Type)
			}
			sb.WriteString("}\n")
		}
	}
	return sb.String()
}

func formatBlock(sb *strings.Builder, b *Block, depth int) {
	sb.WriteString("{\n")
	indent := strings.Repeat("    ", depth+1)
	for _, stmt := range b.Stmts {
		sb.WriteString(indent)
		switch s := stmt.(type) {
		case *LearnStmt:
			fmt.Fprintf(sb, "learn %s = %s;", s.Name, FormatExpr(s.Value))
		case *LetStmt:
			fmt.Fprintf(sb, "let %s = %s;", s.Name, FormatExpr(s.Value))
		case *AssignStmt:
			fmt.Fprintf(sb, "%s = %s;", s.Name, FormatExpr(s.Value))
		case *MinimizeStmt:
			fmt.Fprintf(sb, "minimize %s;", FormatExpr(s.Value))
		case *ReturnStmt:
			if s.Value == nil {
				sb.WriteString("return;")
			} else {
				fmt.Fprintf(sb, "return %s;", FormatExpr(s.Value))
			}
		case *ExprStmt:
			fmt.Fprintf(sb, "%s;", FormatExpr(s.X))
		case *OptimizeStmt:
			sb.WriteString("optimize")
			if len(s.Options) > 0 {
				sb.WriteByte('(')
				for ii, opt := range s.Options {
					if ii > 0 {
						sb.WriteString(", ")
					}
					fmt.Fprintf(sb, "%s = %s", opt.Name, strconv.FormatFloat(opt.Value, 'g', -1, 64))
				}
				sb.WriteByte(')')
			}
			if s.Until != nil {
				fmt.Fprintf(sb, " until %s", FormatExpr(s.Until))
			}
			sb.WriteByte(' ')
			formatBlock(sb, s.Body, depth+1)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("    ", depth))
	sb.WriteString("}")
}
