// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"strconv"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/noma/lang"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// This file implements reverse-mode automatic differentiation, accumulating the VJP (Vector Jacobian
// Product, or adjoint) of each node. Since the values are scalars, the "V" is a scalar too.
//
// Conventions used in this file:
//
// * output node: the value being differentiated, e.g. the loss. Its adjoint is seeded with 1.
// * selected nodes: the nodes with respect to which we want the gradient of the output, typically
//      the trainable variables.
// * included: nodes the output depends on. Nodes not included are irrelevant for the output.
// * useful: nodes that depend on one of the selected nodes. Adjoints are only propagated through
//      nodes that are both included and useful.

// GradientMap maps the name of each selected variable to the partial derivative of the output with respect to it.
type GradientMap map[string]float64

// Backward computes the adjoints of the output node with respect to each node in wrt, using the given Algebra.
//
// value returns the forward value of a node, expressed in the algebra. The local derivative rules of exp,
// sigmoid, tanh and sqrt reuse the forward value of the node itself, so the same builtin implementation
// serves both passes.
//
// Nodes are processed from output down to id 0: since operands always have smaller ids than their consumers,
// by the time a node is reached the adjoints of all its consumers have been accumulated into it.
// An operand consumed more than once receives the sum of the adjoints from each use.
//
// A selected node with no path to the output gets alg.Zero(). It panics if any of the ids is invalid.
func Backward[T any](alg Algebra[T], g *Graph, output NodeId, wrt []NodeId, value func(id NodeId) T) []T {
	numNodes := g.NumNodes()
	if output < 0 || int(output) >= numNodes {
		Panicf("Backward(): output #%d is not a node of graph %q (%d nodes)", output, g.name, numNodes)
	}
	for _, id := range wrt {
		if id < 0 || int(id) >= numNodes {
			Panicf("Backward(): selected node #%d is not a node of graph %q (%d nodes)", id, g.name, numNodes)
		}
	}
	if g.nodes[output].nodeType.IsComparison() {
		Panicf("Backward(): output %s is a comparison, which has no gradient", g.nodes[output])
	}

	// Mark nodes with a path from the output as included.
	included := make([]bool, numNodes)
	included[output] = true
	for id := output; id >= 0; id-- {
		if !included[id] {
			continue
		}
		for _, input := range g.nodes[id].inputs {
			included[input] = true
		}
	}

	// Mark selected nodes, and forward propagate to their consumers, as useful.
	useful := make([]bool, numNodes)
	for _, id := range wrt {
		useful[id] = true
	}
	for id := NodeId(0); id <= output; id++ {
		if useful[id] {
			continue
		}
		for _, input := range g.nodes[id].inputs {
			if useful[input] {
				useful[id] = true
				break
			}
		}
	}
	needGradient := func(id NodeId) bool { return included[id] && useful[id] }

	adjoints := make([]T, numNodes)
	hasAdjoint := make([]bool, numNodes)
	adjoints[output], hasAdjoint[output] = alg.One(), true
	for id := output; id >= 0; id-- {
		node := g.nodes[id]
		if !needGradient(id) || !hasAdjoint[id] || len(node.inputs) == 0 || node.nodeType.IsComparison() {
			continue
		}
		needInputs := false
		for _, input := range node.inputs {
			if needGradient(input) {
				needInputs = true
				break
			}
		}
		if !needInputs {
			continue
		}
		v := alg.Materialize(id, adjoints[id])
		inputsVJPs := vjp(alg, node, v, value)
		if len(inputsVJPs) != len(node.inputs) {
			Panicf("VJP of %s returned %d adjoints, but it has %d inputs", node, len(inputsVJPs), len(node.inputs))
		}
		for ii, input := range node.inputs {
			if !needGradient(input) {
				continue
			}
			if hasAdjoint[input] {
				adjoints[input] = alg.Add(adjoints[input], inputsVJPs[ii])
			} else {
				adjoints[input], hasAdjoint[input] = inputsVJPs[ii], true
			}
		}
	}

	gradients := make([]T, len(wrt))
	for ii, id := range wrt {
		if hasAdjoint[id] {
			gradients[ii] = adjoints[id]
		} else {
			gradients[ii] = alg.Zero()
		}
	}
	return gradients
}

// vjp returns the adjoint contributed by node to each of its inputs, given the node's adjoint v.
func vjp[T any](alg Algebra[T], node *Node, v T, value func(id NodeId) T) []T {
	self := func() T { return value(node.id) }
	x := func() T { return value(node.inputs[0]) }
	y := func() T { return value(node.inputs[1]) }
	switch node.nodeType {
	case NodeTypeAdd:
		return []T{v, v}
	case NodeTypeSub:
		return []T{v, alg.Neg(v)}
	case NodeTypeMul:
		return []T{alg.Mul(v, y()), alg.Mul(v, x())}
	case NodeTypeDiv:
		// d(x/y)/dx = 1/y; d(x/y)/dy = -x/y².
		return []T{
			alg.Div(v, y()),
			alg.Neg(alg.Mul(v, alg.Div(x(), alg.Mul(y(), y())))),
		}
	case NodeTypeNeg:
		return []T{alg.Neg(v)}
	case NodeTypeExp:
		return []T{alg.Mul(v, self())}
	case NodeTypeLog:
		return []T{alg.Div(v, x())}
	case NodeTypeSqrt:
		return []T{alg.Div(v, alg.Mul(alg.Const(2), self()))}
	case NodeTypeTanh:
		return []T{alg.Mul(v, alg.Sub(alg.One(), alg.Mul(self(), self())))}
	case NodeTypeSigmoid:
		return []T{alg.Mul(v, alg.Mul(self(), alg.Sub(alg.One(), self())))}
	case NodeTypeRelu:
		return []T{alg.Mul(v, alg.Positive(x()))}
	}
	Panicf("no gradient defined for node %s", node)
	return nil
}

// Gradient computes the partial derivatives of output with respect to each of the variable nodes
// in wrt, at the values of the forward pass recorded in trace.
//
// The returned GradientMap is freshly allocated, keyed by variable name. Variables that don't reach
// the output through any path get 0.
// A non-finite derivative is reported as a *lang.Error with Kind lang.NumericDivergence.
func Gradient(trace *Trace, output *Node, wrt ...*Node) (gradients GradientMap, err error) {
	err = TryCatch[error](func() {
		g := validateGraphFromInputs(append([]*Node{output}, wrt...)...)
		if trace.Graph != g {
			Panicf("Gradient(): trace of graph %q used with nodes of graph %q", trace.Graph.name, g.name)
		}
		ids := make([]NodeId, len(wrt))
		for ii, node := range wrt {
			if node.nodeType != NodeTypeVariable {
				Panicf("Gradient(): can only differentiate with respect to variables, got %s", node)
			}
			ids[ii] = node.id
		}
		values := Backward[float64](Float64Algebra{}, g, output.id, ids, func(id NodeId) float64 { return trace.Values[id] })
		gradients = make(GradientMap, len(wrt))
		for ii, node := range wrt {
			gradients[node.name] = values[ii]
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to compute gradient of %s", output)
	}
	for _, node := range wrt {
		if grad := gradients[node.name]; math.IsNaN(grad) || math.IsInf(grad, 0) {
			return nil, lang.Errorf(lang.NumericDivergence, node.pos, node.name,
				"gradient with respect to %q evaluated to %s", node.name, strconv.FormatFloat(grad, 'g', -1, 64))
		}
	}
	if klog.V(3).Enabled() {
		klog.Infof("gradient of %s: %v", output, gradients)
	}
	return gradients, nil
}
