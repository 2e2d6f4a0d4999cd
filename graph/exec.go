// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"strconv"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/noma/lang"
	"github.com/pkg/errors"
)

// Trace holds the forward value of every node of a Graph, indexed by NodeId.
//
// It is all the backward pass needs: intermediate values are never recomputed.
// A Trace can be reused across forward passes of the same graph (see Execute).
type Trace struct {
	Graph  *Graph
	Values []float64
}

// NewTrace allocates a Trace for g.
func NewTrace(g *Graph) *Trace {
	return &Trace{Graph: g, Values: make([]float64, g.NumNodes())}
}

// Value returns the forward value of the node.
func (t *Trace) Value(node *Node) float64 {
	if node.graph != t.Graph {
		Panicf("node %s is from graph %q, but the trace is of graph %q", node, node.graph.name, t.Graph.name)
	}
	return t.Values[node.id]
}

// Reset zeroes all values, resizing the trace if nodes were added to the graph since it was created.
func (t *Trace) Reset() {
	if len(t.Values) != t.Graph.NumNodes() {
		t.Values = make([]float64, t.Graph.NumNodes())
		return
	}
	clear(t.Values)
}

// Execute performs one forward pass of g: it evaluates every node exactly once, in id order
// (which is a topological order), and stores the results in trace.
//
// The inputs map holds the current value of each variable referenced in the graph.
// If trace is nil a new one is allocated, otherwise it is reset and reused. The filled trace is returned.
//
// A non-finite value produced by any node is reported as a *lang.Error with Kind lang.NumericDivergence,
// located at the expression that produced it.
func Execute(g *Graph, inputs map[string]float64, trace *Trace) (*Trace, error) {
	if trace == nil {
		trace = NewTrace(g)
	} else {
		if trace.Graph != g {
			return nil, errors.Errorf("trace of graph %q used to execute graph %q", trace.Graph.name, g.name)
		}
		trace.Reset()
	}
	values := trace.Values
	for _, node := range g.nodes {
		var value float64
		switch {
		case node.nodeType == NodeTypeConstant:
			value = node.value
		case node.nodeType == NodeTypeVariable:
			var found bool
			value, found = inputs[node.name]
			if !found {
				return nil, errors.Errorf("no value given for variable %q of graph %q", node.name, g.name)
			}
		case node.nodeType == NodeTypeNeg:
			value = -values[node.inputs[0]]
		case node.nodeType.IsBuiltin():
			value = EvalBuiltin(node.nodeType, values[node.inputs[0]])
		default:
			value = evalBinary(node.nodeType, values[node.inputs[0]], values[node.inputs[1]])
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, divergenceError(node, value)
		}
		values[node.id] = value
	}
	return trace, nil
}

func divergenceError(node *Node, value float64) *lang.Error {
	construct := node.Construct()
	return lang.Errorf(lang.NumericDivergence, node.pos, construct,
		"%s evaluated to %s", construct, strconv.FormatFloat(value, 'g', -1, 64))
}
