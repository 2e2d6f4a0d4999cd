// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
)

// binaryOperators maps arithmetic node types to their Go operator.
var binaryOperators = map[graph.NodeType]string{
	graph.NodeTypeAdd: "+",
	graph.NodeTypeSub: "-",
	graph.NodeTypeMul: "*",
	graph.NodeTypeDiv: "/",
}

var comparisonOperators = map[graph.NodeType]string{
	graph.NodeTypeLess:      "<",
	graph.NodeTypeGreater:   ">",
	graph.NodeTypeLessEq:    "<=",
	graph.NodeTypeGreaterEq: ">=",
	graph.NodeTypeEqual:     "==",
	graph.NodeTypeNotEqual:  "!=",
}

// builtinFuncs maps builtin node types to the Go function implementing them in the generated program.
var builtinFuncs = map[graph.NodeType]string{
	graph.NodeTypeExp:     "math.Exp",
	graph.NodeTypeLog:     "math.Log",
	graph.NodeTypeSqrt:    "math.Sqrt",
	graph.NodeTypeTanh:    "math.Tanh",
	graph.NodeTypeSigmoid: "sigmoid",
	graph.NodeTypeRelu:    "relu",
}

// VariableName returns the name of the Go variable holding the program variable name.
func VariableName(name string) string { return "v_" + name }

func nodeLocal(id graph.NodeId) string    { return fmt.Sprintf("n%d", id) }
func adjointLocal(id graph.NodeId) string { return fmt.Sprintf("d%d", id) }

// emitter writes the Go statements evaluating one graph: the forward pass, one local per node, and
// optionally the backward pass of a loop.
//
// Statements are collected first and rendered at the end, when it is known which locals are read:
// Go rejects locals that are declared and never used.
type emitter struct {
	g *graph.Graph

	// fallback position for diagnostics of nodes without one.
	fallback lang.Pos

	forward  []string // forward expression of each node.
	checked  []bool   // whether the forward expression is wrapped in checked().
	used     []bool   // whether the node's local is read.
	backward []string // statements of the backward pass.
}

func newEmitter(g *graph.Graph, fallback lang.Pos) *emitter {
	e := &emitter{
		g:        g,
		fallback: fallback,
		forward:  make([]string, g.NumNodes()),
		checked:  make([]bool, g.NumNodes()),
		used:     make([]bool, g.NumNodes()),
	}
	for _, node := range g.Nodes() {
		e.forward[node.Id()], e.checked[node.Id()] = e.forwardExpr(node)
	}
	return e
}

// value returns the local holding the forward value of the node, and marks it as used.
func (e *emitter) value(id graph.NodeId) expr {
	e.used[id] = true
	return local(nodeLocal(id))
}

// diagnostic returns the message printed, followed by the offending value, when the value is not finite.
// It is the same message reported by the in-process runner.
func (e *emitter) diagnostic(pos lang.Pos, construct, format string, args ...any) string {
	if !pos.IsValid() {
		pos = e.fallback
	}
	return strconv.Quote(lang.Errorf(lang.NumericDivergence, pos, construct, format, args...).Error())
}

func (e *emitter) forwardExpr(node *graph.Node) (code string, checked bool) {
	nodeType := node.Type()
	switch {
	case nodeType == graph.NodeTypeConstant:
		return fmt.Sprintf("float64(%s)", formatLiteral(node.ConstValue())), false
	case nodeType == graph.NodeTypeVariable:
		return VariableName(node.VariableName()), false
	case nodeType.IsComparison():
		return fmt.Sprintf("indicator(%s %s %s)", e.value(node.Inputs()[0]), comparisonOperators[nodeType],
			e.value(node.Inputs()[1])), false
	case nodeType == graph.NodeTypeNeg:
		code = "-" + e.value(node.Inputs()[0]).code
	case nodeType.IsBuiltin():
		code = fmt.Sprintf("%s(%s)", builtinFuncs[nodeType], e.value(node.Inputs()[0]))
	case nodeType == graph.NodeTypeMul:
		code = fmt.Sprintf("float64(%s * %s)", e.value(node.Inputs()[0]), e.value(node.Inputs()[1]))
	default:
		op, found := binaryOperators[nodeType]
		if !found {
			Panicf("code generation of %s not supported", node)
		}
		code = fmt.Sprintf("%s %s %s", e.value(node.Inputs()[0]), op, e.value(node.Inputs()[1]))
	}
	construct := node.Construct()
	return fmt.Sprintf("checked(%s, %s)", code, e.diagnostic(node.Pos(), construct, "%s evaluated to ", construct)), true
}

// bindAdjoint binds the adjoint of a node to a local of the backward pass.
func (e *emitter) bindAdjoint(id graph.NodeId, adjoint expr) expr {
	code := adjoint.code
	if adjoint.constant {
		code = fmt.Sprintf("float64(%s)", code)
	}
	name := adjointLocal(id)
	e.backward = append(e.backward, fmt.Sprintf("%s := %s", name, code))
	return local(name)
}

// gradients emits the backward pass of output with respect to the variable nodes in wrt, and returns
// the expression of each gradient.
func (e *emitter) gradients(output graph.NodeId, wrt []graph.NodeId) []expr {
	return graph.Backward[expr](exprAlgebra{e: e}, e.g, output, wrt, e.value)
}

// render writes the forward statements, followed by the given statements, indented by indent tabs.
func (e *emitter) render(sb *strings.Builder, indent int, statements ...string) {
	prefix := strings.Repeat("\t", indent)
	for id, code := range e.forward {
		switch {
		case e.used[id]:
			fmt.Fprintf(sb, "%s%s := %s\n", prefix, nodeLocal(graph.NodeId(id)), code)
		case e.checked[id]:
			// Evaluated for its divergence check only.
			fmt.Fprintf(sb, "%s%s\n", prefix, code)
		case e.g.NodeById(graph.NodeId(id)).Type().IsComparison():
			fmt.Fprintf(sb, "%s_ = %s\n", prefix, code)
		}
	}
	for _, stmt := range statements {
		for _, line := range strings.Split(stmt, "\n") {
			fmt.Fprintf(sb, "%s%s\n", prefix, line)
		}
	}
}

// emitAssign writes the statements of a straight-line step.
func emitAssign(sb *strings.Builder, step *compiler.AssignStep) {
	e := newEmitter(step.Graph, lang.Pos{})
	fmt.Fprintf(sb, "\t// %s: %s\n\t{\n", step.Pos, step.Graph.Name())
	e.render(sb, 2, fmt.Sprintf("%s = %s", VariableName(step.Target), e.value(step.Output)))
	sb.WriteString("\t}\n")
}

// emitReturn writes the evaluation and printing of the returned value.
func emitReturn(sb *strings.Builder, step *compiler.ReturnStep) {
	e := newEmitter(step.Graph, lang.Pos{})
	fmt.Fprintf(sb, "\t// %s: return\n\t{\n", step.Pos)
	e.render(sb, 2, fmt.Sprintf("fmt.Println(format(%s))", e.value(step.Output)))
	sb.WriteString("\t}\n")
}

// emitLoop writes an optimize loop: per iteration the forward pass, the convergence check, the backward
// pass and the simultaneous update of all trainable variables.
func emitLoop(sb *strings.Builder, step *compiler.LoopStep) {
	e := newEmitter(step.Graph, step.Pos)
	var statements []string
	if step.Predicate != graph.InvalidNodeId {
		statements = append(statements, fmt.Sprintf("if %s != 0 {\n\tbreak\n}", e.value(step.Predicate)))
	}

	wrt := make([]graph.NodeId, len(step.Trainables))
	for ii, name := range step.Trainables {
		wrt[ii] = step.Graph.VariableByName(name).Id()
	}
	grads := e.gradients(step.Loss, wrt)
	statements = append(statements, e.backward...)
	for ii, name := range step.Trainables {
		node := step.Graph.NodeById(wrt[ii])
		statements = append(statements, fmt.Sprintf("grad_%s := checked(%s, %s)", name, grads[ii],
			e.diagnostic(node.Pos(), name, "gradient with respect to %q evaluated to ", name)))
	}

	// Updates are checked in name order, and only assigned once all of them are computed.
	names := slices.Clone(step.Trainables)
	slices.Sort(names)
	lr := formatLiteral(step.LearningRate)
	for _, name := range names {
		statements = append(statements, fmt.Sprintf("next_%s := checked(%s - float64(%s*grad_%s), %s)",
			name, VariableName(name), lr, name,
			e.diagnostic(lang.Pos{}, name, "update of %q diverged to ", name)))
	}
	for _, name := range names {
		statements = append(statements, fmt.Sprintf("%s = next_%s", VariableName(name), name))
	}

	fmt.Fprintf(sb, "\t// %s: %s(lr=%s, max_iter=%d)\n", step.Pos, step.Name, lr, step.MaxIterations)
	fmt.Fprintf(sb, "\tfor iteration := 0; iteration < %d; iteration++ {\n", step.MaxIterations)
	e.render(sb, 2, statements...)
	sb.WriteString("\t}\n")
}
