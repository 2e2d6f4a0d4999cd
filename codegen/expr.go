// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/noma/graph"
)

// exprKind classifies generated Go expressions, to decide when parentheses or a local are needed.
type exprKind int

const (
	// exprLiteral is an untyped numeric constant, e.g. `1` or `-1`.
	exprLiteral exprKind = iota

	// exprName is a local variable.
	exprName

	// exprAtom is a call or a parenthesized conversion, usable as an operand as is.
	exprAtom

	// exprComposite is a binary expression: it needs parentheses when used as an operand.
	exprComposite
)

// expr is a Go expression of type float64 (or an untyped constant, if kind is exprLiteral).
type expr struct {
	code string
	kind exprKind

	// constant is true if the expression has only untyped constants, e.g. `1 + 1`.
	constant bool
}

func (e expr) String() string { return e.code }

// operand returns the code of e to be used as the operand of a binary operator.
func (e expr) operand() string {
	if e.kind == exprComposite {
		return "(" + e.code + ")"
	}
	return e.code
}

func literal(c float64) expr {
	return expr{code: formatLiteral(c), kind: exprLiteral, constant: true}
}

func local(s string) expr {
	return expr{code: s, kind: exprName}
}

// formatLiteral formats c as a Go constant that converts back to exactly c.
func formatLiteral(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// exprAlgebra implements graph.Algebra over Go expressions: graph.Backward driven with it writes
// the backward pass as Go statements instead of computing it.
//
// Products are always wrapped in an explicit float64 conversion, which forces the rounding of the
// product: the Go compiler is then not allowed to fuse it with an addition into a multiply-add, and
// the generated program computes bit-for-bit the same values as graph.Gradient.
type exprAlgebra struct {
	e *emitter
}

var _ graph.Algebra[expr] = exprAlgebra{}

func (exprAlgebra) Zero() expr           { return literal(0) }
func (exprAlgebra) One() expr            { return literal(1) }
func (exprAlgebra) Const(c float64) expr { return literal(c) }
func (exprAlgebra) Add(a, b expr) expr   { return binary(a, "+", b) }
func (exprAlgebra) Sub(a, b expr) expr   { return binary(a, "-", b) }
func (exprAlgebra) Div(a, b expr) expr   { return binary(a, "/", b) }

func (exprAlgebra) Mul(a, b expr) expr {
	// 1*x == x exactly, for any float64 x.
	if isOne(a) {
		return b
	}
	if isOne(b) {
		return a
	}
	return expr{code: fmt.Sprintf("float64(%s * %s)", a.operand(), b.operand()), kind: exprAtom}
}

func (exprAlgebra) Positive(a expr) expr {
	return expr{code: fmt.Sprintf("positive(%s)", a), kind: exprAtom}
}

func (exprAlgebra) Neg(a expr) expr {
	if strings.HasPrefix(a.code, "-") || a.kind == exprComposite {
		return expr{code: "-(" + a.code + ")", kind: exprAtom, constant: a.constant}
	}
	if a.kind == exprLiteral {
		return expr{code: "-" + a.code, kind: exprLiteral, constant: true}
	}
	return expr{code: "-" + a.code, kind: exprAtom}
}

// Materialize binds composite adjoints to a local, so they are computed once.
func (alg exprAlgebra) Materialize(id graph.NodeId, adjoint expr) expr {
	if adjoint.kind == exprName || adjoint.kind == exprLiteral {
		return adjoint
	}
	return alg.e.bindAdjoint(id, adjoint)
}

func isOne(e expr) bool { return e.kind == exprLiteral && e.code == "1" }

func binary(a expr, op string, b expr) expr {
	return expr{
		code:     fmt.Sprintf("%s %s %s", a.operand(), op, b.operand()),
		kind:     exprComposite,
		constant: a.constant && b.constant,
	}
}
