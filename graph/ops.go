// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	. "github.com/gomlx/exceptions"
)

// validateGraphFromInputs checks that all inputs are non-nil and from the same graph, and returns the graph.
func validateGraphFromInputs(inputs ...*Node) *Graph {
	if len(inputs) == 0 {
		Panicf("no input nodes given, can't find graph")
	}
	var g *Graph
	for ii, input := range inputs {
		if input == nil {
			Panicf("input node #%d is nil", ii)
		}
		if g == nil {
			g = input.graph
		} else if input.graph != g {
			Panicf("combining nodes from different graphs (%q and %q) not allowed", g.name, input.graph.name)
		}
	}
	return g
}

func newOpNode(nodeType NodeType, inputs ...*Node) *Node {
	g := validateGraphFromInputs(inputs...)
	ids := make([]NodeId, len(inputs))
	for ii, input := range inputs {
		ids[ii] = input.id
	}
	return g.registerNode(&Node{nodeType: nodeType, inputs: ids})
}

// Const returns a new constant node with the given value.
func Const(g *Graph, value float64) *Node {
	return g.registerNode(&Node{nodeType: NodeTypeConstant, value: value})
}

// Variable returns the node of the named variable, creating it on first use.
// A variable has exactly one node per graph: its value is an input of the forward pass.
//
// It panics if the variable already exists with a different trainable status.
func Variable(g *Graph, name string, trainable bool) *Node {
	if id, found := g.variables[name]; found {
		node := g.nodes[id]
		if node.trainable != trainable {
			Panicf("variable %q in graph %q used with trainable=%v and trainable=%v", name, g.name, node.trainable, trainable)
		}
		return node
	}
	node := g.registerNode(&Node{nodeType: NodeTypeVariable, name: name, trainable: trainable})
	g.variables[name] = node.id
	g.variableOrder = append(g.variableOrder, node.id)
	return node
}

// Add returns x + y.
func Add(x, y *Node) *Node { return newOpNode(NodeTypeAdd, x, y) }

// Sub returns x - y.
func Sub(x, y *Node) *Node { return newOpNode(NodeTypeSub, x, y) }

// Mul returns x * y.
func Mul(x, y *Node) *Node { return newOpNode(NodeTypeMul, x, y) }

// Div returns x / y.
func Div(x, y *Node) *Node { return newOpNode(NodeTypeDiv, x, y) }

// Neg returns -x.
func Neg(x *Node) *Node { return newOpNode(NodeTypeNeg, x) }

// Call applies the builtin function of the given node type to x.
func Call(nodeType NodeType, x *Node) *Node {
	if !nodeType.IsBuiltin() {
		Panicf("Call(%s): not a builtin function", nodeType)
	}
	return newOpNode(nodeType, x)
}

// Compare returns the comparison of x and y: 1 if it holds, 0 otherwise.
func Compare(nodeType NodeType, x, y *Node) *Node {
	if !nodeType.IsComparison() {
		Panicf("Compare(%s): not a comparison", nodeType)
	}
	return newOpNode(nodeType, x, y)
}
