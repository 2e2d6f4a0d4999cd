// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/noma/lang"
)

// Resolver returns the node bound to an identifier, or an error (typically a *lang.Error with
// Kind lang.UnresolvedVariable) if the identifier is not visible.
type Resolver func(ident *lang.Ident) (*Node, error)

// Tracer converts expressions of the language into nodes of a Graph.
//
// Identifiers are resolved with the Resolver: resolving a name always to the same node is
// what guarantees that each expression bound to a name is evaluated once per forward pass.
type Tracer struct {
	g       *Graph
	resolve Resolver
}

// NewTracer creates a Tracer that appends nodes to g.
func NewTracer(g *Graph, resolve Resolver) *Tracer {
	return &Tracer{g: g, resolve: resolve}
}

// Graph being built by the tracer.
func (t *Tracer) Graph() *Graph { return t.g }

// Expr traces an arithmetic expression and returns its output node.
// Comparisons are rejected with lang.UnsupportedConstruct: they are only valid as predicates.
func (t *Tracer) Expr(x lang.Expr) (node *Node, err error) {
	if panicErr := exceptions.TryCatch[error](func() { node, err = t.expr(x) }); panicErr != nil {
		return nil, panicErr
	}
	return
}

// Predicate traces a comparison, used as a loop termination condition. Its output node
// evaluates to 1 when the comparison holds and to 0 otherwise.
func (t *Tracer) Predicate(x lang.Expr) (node *Node, err error) {
	bin, ok := x.(*lang.BinaryExpr)
	if !ok || !bin.Op.IsComparison() {
		return nil, lang.Errorf(lang.UnsupportedConstruct, x.Position(), lang.FormatExpr(x),
			"a loop condition must be a comparison, like \"loss < 0.001\"")
	}
	panicErr := exceptions.TryCatch[error](func() {
		var lhs, rhs *Node
		if lhs, err = t.expr(bin.X); err != nil {
			return
		}
		if rhs, err = t.expr(bin.Y); err != nil {
			return
		}
		node = Compare(comparisonNodeTypes[bin.Op], lhs, rhs).SetPos(bin.Pos)
	})
	if panicErr != nil {
		return nil, panicErr
	}
	return
}

var arithmeticNodeTypes = map[lang.BinaryOp]NodeType{
	lang.OpAdd: NodeTypeAdd,
	lang.OpSub: NodeTypeSub,
	lang.OpMul: NodeTypeMul,
	lang.OpDiv: NodeTypeDiv,
}

var comparisonNodeTypes = map[lang.BinaryOp]NodeType{
	lang.OpLess:      NodeTypeLess,
	lang.OpGreater:   NodeTypeGreater,
	lang.OpLessEq:    NodeTypeLessEq,
	lang.OpGreaterEq: NodeTypeGreaterEq,
	lang.OpEqual:     NodeTypeEqual,
	lang.OpNotEqual:  NodeTypeNotEqual,
}

func (t *Tracer) expr(x lang.Expr) (*Node, error) {
	switch x := x.(type) {
	case *lang.NumberLit:
		return Const(t.g, x.Value).SetPos(x.Pos), nil

	case *lang.Ident:
		node, err := t.resolve(x)
		if err != nil {
			return nil, err
		}
		if node.graph != t.g {
			exceptions.Panicf("identifier %q resolved to a node of graph %q, while tracing graph %q", x.Name, node.graph.name, t.g.name)
		}
		return node, nil

	case *lang.NegExpr:
		operand, err := t.expr(x.X)
		if err != nil {
			return nil, err
		}
		return Neg(operand).SetPos(x.Pos), nil

	case *lang.BinaryExpr:
		if x.Op.IsComparison() {
			return nil, lang.Errorf(lang.UnsupportedConstruct, x.Pos, x.Op.String(),
				"comparisons can only be used as the condition of an optimize loop")
		}
		nodeType, found := arithmeticNodeTypes[x.Op]
		if !found {
			return nil, lang.Errorf(lang.UnsupportedConstruct, x.Pos, x.Op.String(),
				"operator %q is not supported", x.Op)
		}
		lhs, err := t.expr(x.X)
		if err != nil {
			return nil, err
		}
		rhs, err := t.expr(x.Y)
		if err != nil {
			return nil, err
		}
		return newOpNode(nodeType, lhs, rhs).SetPos(x.Pos), nil

	case *lang.CallExpr:
		nodeType, found := LookupBuiltin(x.Func)
		if !found {
			return nil, lang.Errorf(lang.UnsupportedConstruct, x.Pos, x.Func,
				"unknown function %q, the builtin functions are %s", x.Func, strings.Join(BuiltinNames(), ", "))
		}
		if len(x.Args) != 1 {
			return nil, lang.Errorf(lang.UnsupportedConstruct, x.Pos, x.Func,
				"%s takes exactly one argument, got %d", x.Func, len(x.Args))
		}
		operand, err := t.expr(x.Args[0])
		if err != nil {
			return nil, err
		}
		return Call(nodeType, operand).SetPos(x.Pos), nil
	}
	exceptions.Panicf("unknown expression type %T", x)
	return nil, nil
}
