// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"slices"

	. "github.com/gomlx/exceptions"
	"golang.org/x/exp/maps"
)

// builtins maps the name of each builtin function of the language to its node type.
var builtins = map[string]NodeType{
	"exp":     NodeTypeExp,
	"log":     NodeTypeLog,
	"sqrt":    NodeTypeSqrt,
	"tanh":    NodeTypeTanh,
	"sigmoid": NodeTypeSigmoid,
	"relu":    NodeTypeRelu,
}

// LookupBuiltin returns the node type of the builtin function with the given name.
func LookupBuiltin(name string) (NodeType, bool) {
	nodeType, found := builtins[name]
	return nodeType, found
}

// BuiltinNames returns the sorted names of the builtin functions.
func BuiltinNames() []string {
	names := maps.Keys(builtins)
	slices.Sort(names)
	return names
}

// BuiltinName returns the source name of the builtin function of the node type.
func BuiltinName(nodeType NodeType) string {
	for name, t := range builtins {
		if t == nodeType {
			return name
		}
	}
	Panicf("%s is not a builtin function", nodeType)
	return ""
}

// EvalBuiltin evaluates the builtin function of the given node type.
// It is the single numeric implementation of the builtins, used by the forward pass.
func EvalBuiltin(nodeType NodeType, x float64) float64 {
	switch nodeType {
	case NodeTypeExp:
		return math.Exp(x)
	case NodeTypeLog:
		return math.Log(x)
	case NodeTypeSqrt:
		return math.Sqrt(x)
	case NodeTypeTanh:
		return math.Tanh(x)
	case NodeTypeSigmoid:
		return Sigmoid(x)
	case NodeTypeRelu:
		if x > 0 {
			return x
		}
		return 0
	}
	Panicf("EvalBuiltin(%s): not a builtin function", nodeType)
	return 0
}

// Sigmoid returns 1/(1+exp(-x)), computed without overflowing for large negative x.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// evalBinary evaluates the arithmetic or comparison operation of the given node type.
func evalBinary(nodeType NodeType, x, y float64) float64 {
	switch nodeType {
	case NodeTypeAdd:
		return x + y
	case NodeTypeSub:
		return x - y
	case NodeTypeMul:
		return x * y
	case NodeTypeDiv:
		return x / y
	case NodeTypeLess:
		return boolToFloat(x < y)
	case NodeTypeGreater:
		return boolToFloat(x > y)
	case NodeTypeLessEq:
		return boolToFloat(x <= y)
	case NodeTypeGreaterEq:
		return boolToFloat(x >= y)
	case NodeTypeEqual:
		return boolToFloat(x == y)
	case NodeTypeNotEqual:
		return boolToFloat(x != y)
	}
	Panicf("evalBinary(%s): not a binary operation", nodeType)
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
