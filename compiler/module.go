// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package compiler lowers a parsed program into a Module: a sequence of steps, each one holding the
// computation graph of a straight-line statement or of the body of an optimize loop.
//
// A Module is the input of both the reference runner (Run) and the code generator (package codegen):
// they share the same graphs, and the same gradient plan, so they compute the same values.
package compiler

import (
	"fmt"
	"strings"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
)

// Variable declared in the top-level scope of main.
type Variable struct {
	Name      string
	Trainable bool
	Pos       lang.Pos
}

// Step of a Module: one of *AssignStep or *LoopStep.
type Step interface {
	Position() lang.Pos
	fmt.Stringer
	isStep()
}

// AssignStep evaluates a straight-line expression and stores it in a variable: it is the lowering of
// `learn`, `let` and assignment statements outside loops.
type AssignStep struct {
	Pos lang.Pos

	// Target variable.
	Target string

	// Declare is true if the step declares Target (`learn` or `let`), false for assignments.
	Declare bool

	// Graph of the expression. Its variables are the inputs of the step.
	Graph  *graph.Graph
	Output graph.NodeId
}

// Binding of a name to a node, for `let` statements inside a loop body.
type Binding struct {
	Name string
	Node graph.NodeId
	Pos  lang.Pos
}

// LoopStep is the lowering of an optimize statement.
//
// Its Graph holds the forward pass of one iteration: the body bindings, the loss and the convergence predicate.
// Trainable variables of the graph are updated at the end of each iteration that didn't converge.
type LoopStep struct {
	Pos  lang.Pos
	Name string

	Graph     *graph.Graph
	Loss      graph.NodeId
	Predicate graph.NodeId // graph.InvalidNodeId if the loop has no convergence predicate.

	// Trainables are the names of the trainable variables updated by the loop: every `learn` variable
	// visible at the loop, in declaration order. Each one has a node in Graph.
	Trainables []string

	// Inputs are the names of the non-trainable variables read by the loop body.
	Inputs []string

	// Bindings of the loop body, in order of declaration.
	Bindings []Binding

	LearningRate  float64
	MaxIterations int
}

// ReturnStep is the lowering of `return expr;`: its value is the result of the program.
type ReturnStep struct {
	Pos    lang.Pos
	Graph  *graph.Graph
	Output graph.NodeId
}

// Module is a lowered program.
type Module struct {
	// Name is the source file name.
	Name string

	// Variables of main, in declaration order.
	Variables []Variable

	// Steps in execution order.
	Steps []Step

	// Return is the result of the program, or nil if main doesn't return a value: in which case the
	// results are the final values of the trainable variables.
	Return *ReturnStep
}

// Learned returns the names of the trainable variables, in declaration order.
func (m *Module) Learned() []string {
	var names []string
	for _, v := range m.Variables {
		if v.Trainable {
			names = append(names, v.Name)
		}
	}
	return names
}

// Loops returns the loop steps of the module.
func (m *Module) Loops() []*LoopStep {
	var loops []*LoopStep
	for _, step := range m.Steps {
		if loop, ok := step.(*LoopStep); ok {
			loops = append(loops, loop)
		}
	}
	return loops
}

// String implements fmt.Stringer, listing the steps with their graphs.
func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Module %q: %d variables, %d steps\n", m.Name, len(m.Variables), len(m.Steps))
	for _, step := range m.Steps {
		sb.WriteString(step.String())
		sb.WriteString("\n")
	}
	if m.Return != nil {
		fmt.Fprintf(&sb, "return #%d\n%s\n", m.Return.Output, m.Return.Graph)
	}
	return sb.String()
}

func (s *AssignStep) Position() lang.Pos { return s.Pos }
func (s *LoopStep) Position() lang.Pos   { return s.Pos }
func (*AssignStep) isStep()              {}
func (*LoopStep) isStep()                {}

// String implements fmt.Stringer.
func (s *AssignStep) String() string {
	return fmt.Sprintf("%s: %s = #%d\n%s", s.Pos, s.Target, s.Output, s.Graph)
}

// String implements fmt.Stringer.
func (s *LoopStep) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s(lr=%g, max_iter=%d) minimize #%d", s.Pos, s.Name, s.LearningRate, s.MaxIterations, s.Loss)
	if s.Predicate != graph.InvalidNodeId {
		fmt.Fprintf(&sb, " until #%d", s.Predicate)
	}
	fmt.Fprintf(&sb, ", trainables %v\n%s", s.Trainables, s.Graph)
	return sb.String()
}
