// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph is the core of the NOMA compiler: it holds the computation graph of a forward
// pass, evaluates it and differentiates it.
//
// The main elements in the package are:
//
//   - Graph: an arena of Nodes. Each Node references its operands by NodeId, and operands
//     are always created before the nodes that consume them, so the order of the ids is a
//     topological order of the DAG. The graph is acyclic by construction.
//
//   - Node: the result of one operation: a constant, a variable, an arithmetic operation,
//     a builtin function call (exp, log, ...) or a comparison.
//
//   - Tracer: converts NOMA expressions (lang.Expr) into nodes, resolving identifiers
//     through a caller provided function. A name bound to a node is evaluated only once
//     per forward pass, no matter how many times it is referenced.
//
//   - Trace: the values of every node of a Graph after one forward evaluation
//     (see Execute). It is reused in place across the iterations of a loop.
//
//   - Backward: reverse-mode automatic differentiation, generic over an Algebra. With
//     Float64Algebra it computes gradient values (see Gradient); the code generator
//     instantiates it with an algebra of Go expressions to emit the backward pass.
//
// ## Error handling
//
// Building nodes with invalid arguments (nil nodes, nodes from different graphs, ...) is a bug
// in the caller and panics with a stack trace (see github.com/gomlx/exceptions). Problems
// in the user's program are reported as errors of type *lang.Error, with a source position.
package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// NodeId is a unique id of a Node within a Graph, and its index in the graph's arena.
type NodeId int

// InvalidNodeId indicates the absence of a node.
const InvalidNodeId = NodeId(-1)

// Graph with the operations and dependencies of one forward pass.
//
// It is not safe for concurrent modification, but each compilation owns its graphs, so
// there is no need to share them.
type Graph struct {
	name  string
	nodes []*Node

	// variables maps a variable name to its (unique) node.
	variables     map[string]NodeId
	variableOrder []NodeId
}

// New creates an empty Graph. The name is used only for debugging and code generation comments.
func New(name string) *Graph {
	return &Graph{
		name:      name,
		variables: make(map[string]NodeId),
	}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns all nodes of the graph, ordered by id. The returned slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeById returns the node with the given id. It panics if the id is out of range.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("graph %q has no node #%d (it has %d nodes)", g.name, id, len(g.nodes))
	}
	return g.nodes[id]
}

// Variables returns the variable nodes of the graph, in order of creation.
func (g *Graph) Variables() []*Node {
	nodes := make([]*Node, len(g.variableOrder))
	for ii, id := range g.variableOrder {
		nodes[ii] = g.nodes[id]
	}
	return nodes
}

// VariableByName returns the node of the variable with the given name, or nil if the graph
// doesn't reference it.
func (g *Graph) VariableByName(name string) *Node {
	id, found := g.variables[name]
	if !found {
		return nil
	}
	return g.nodes[id]
}

// TrainableVariables returns the trainable variable nodes, in order of creation.
func (g *Graph) TrainableVariables() []*Node {
	var nodes []*Node
	for _, id := range g.variableOrder {
		if g.nodes[id].trainable {
			nodes = append(nodes, g.nodes[id])
		}
	}
	return nodes
}

func (g *Graph) registerNode(node *Node) *Node {
	node.graph = g
	node.id = NodeId(len(g.nodes))
	for _, input := range node.inputs {
		if input >= node.id {
			exceptions.Panicf("node %s of graph %q consumes #%d, which was not created before it", node.nodeType, g.name, input)
		}
	}
	g.nodes = append(g.nodes, node)
	return node
}

// String implements fmt.Stringer, listing all nodes.
func (g *Graph) String() string {
	parts := []string{fmt.Sprintf("Graph %q: %d nodes, %d variables", g.name, len(g.nodes), len(g.variableOrder))}
	for _, node := range g.nodes {
		parts = append(parts, "\t"+node.String())
	}
	return strings.Join(parts, "\n")
}
