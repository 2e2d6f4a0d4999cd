// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// Algebra defines the operations used by the backward pass to combine adjoints and forward values.
//
// Backward is written once against this interface: Float64Algebra computes the gradient values
// directly, while the code generator provides an algebra over Go expressions, so that the very
// same chain-rule composition is emitted as code.
type Algebra[T any] interface {
	// Zero is the adjoint of a node with no path to the output.
	Zero() T

	// One is the seed adjoint of the output.
	One() T

	// Const returns the given constant.
	Const(c float64) T

	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Neg(a T) T

	// Positive returns 1 if a > 0, and 0 otherwise.
	Positive(a T) T

	// Materialize is called with the completed adjoint of a node, before it is distributed to its
	// operands, and returns the value to use in its place. Algebras that build expressions use it
	// to bind the adjoint to a name, so it is not duplicated in every operand's expression.
	Materialize(id NodeId, adjoint T) T
}

// Float64Algebra is the numeric Algebra over float64 values.
type Float64Algebra struct{}

var _ Algebra[float64] = Float64Algebra{}

func (Float64Algebra) Zero() float64            { return 0 }
func (Float64Algebra) One() float64             { return 1 }
func (Float64Algebra) Const(c float64) float64  { return c }
func (Float64Algebra) Add(a, b float64) float64 { return a + b }
func (Float64Algebra) Sub(a, b float64) float64 { return a - b }
func (Float64Algebra) Mul(a, b float64) float64 { return a * b }
func (Float64Algebra) Div(a, b float64) float64 { return a / b }
func (Float64Algebra) Neg(a float64) float64    { return -a }

// Materialize returns the adjoint unchanged.
func (Float64Algebra) Materialize(_ NodeId, adjoint float64) float64 { return adjoint }

func (Float64Algebra) Positive(a float64) float64 {
	if a > 0 {
		return 1
	}
	return 0
}
