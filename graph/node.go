// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/noma/lang"
)

// NodeType identifies the operation performed by a node.
type NodeType int

//go:generate go tool enumer -type=NodeType -trimprefix=NodeType -output=gen_nodetype_enumer.go node.go

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeConstant
	NodeTypeVariable

	NodeTypeAdd
	NodeTypeSub
	NodeTypeMul
	NodeTypeDiv
	NodeTypeNeg

	NodeTypeExp
	NodeTypeLog
	NodeTypeSqrt
	NodeTypeTanh
	NodeTypeSigmoid
	NodeTypeRelu

	NodeTypeLess
	NodeTypeGreater
	NodeTypeLessEq
	NodeTypeGreaterEq
	NodeTypeEqual
	NodeTypeNotEqual
)

// IsComparison returns whether the node type is one of the comparison operations.
// Comparisons evaluate to 1 (true) or 0 (false) and have no gradient.
func (t NodeType) IsComparison() bool { return t >= NodeTypeLess && t <= NodeTypeNotEqual }

// IsBuiltin returns whether the node type is one of the builtin functions.
func (t NodeType) IsBuiltin() bool { return t >= NodeTypeExp && t <= NodeTypeRelu }

// Node is the result of one operation in a Graph.
type Node struct {
	graph    *Graph
	id       NodeId
	nodeType NodeType
	inputs   []NodeId

	// value of a constant.
	value float64

	// name and trainable are set for variables.
	name      string
	trainable bool

	// pos is the source position of the expression that created the node, if known.
	pos lang.Pos
}

// Graph that holds the node.
func (n *Node) Graph() *Graph { return n.graph }

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId { return n.id }

// Type of the operation.
func (n *Node) Type() NodeType { return n.nodeType }

// Inputs returns the ids of the operands. The returned slice must not be modified.
func (n *Node) Inputs() []NodeId { return n.inputs }

// Input returns the ii-th operand node.
func (n *Node) Input(ii int) *Node { return n.graph.nodes[n.inputs[ii]] }

// ConstValue returns the value of a constant node.
func (n *Node) ConstValue() float64 { return n.value }

// VariableName returns the name of a variable node.
func (n *Node) VariableName() string { return n.name }

// IsTrainable returns whether the node is a trainable variable.
func (n *Node) IsTrainable() bool { return n.nodeType == NodeTypeVariable && n.trainable }

// Pos returns the source position of the expression that created the node.
func (n *Node) Pos() lang.Pos { return n.pos }

// SetPos sets the source position of the node, used in diagnostics. It returns the node itself.
func (n *Node) SetPos(pos lang.Pos) *Node {
	n.pos = pos
	return n
}

// Construct names the source construct that created the node, as used in diagnostics: the variable
// name, the builtin function name, or the operation (e.g. "Div").
func (n *Node) Construct() string {
	switch {
	case n.nodeType == NodeTypeVariable:
		return n.name
	case n.nodeType.IsBuiltin():
		return BuiltinName(n.nodeType)
	}
	return n.nodeType.String()
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	switch n.nodeType {
	case NodeTypeConstant:
		return fmt.Sprintf("#%d Constant(%s)", n.id, strconv.FormatFloat(n.value, 'g', -1, 64))
	case NodeTypeVariable:
		if n.trainable {
			return fmt.Sprintf("#%d Variable(%s) [trainable]", n.id, n.name)
		}
		return fmt.Sprintf("#%d Variable(%s)", n.id, n.name)
	}
	inputs := make([]string, len(n.inputs))
	for ii, input := range n.inputs {
		inputs[ii] = fmt.Sprintf("#%d", input)
	}
	return fmt.Sprintf("#%d %s(%s)", n.id, n.nodeType, strings.Join(inputs, ", "))
}
