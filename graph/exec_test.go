// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"testing"

	"github.com/gomlx/noma/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	for _, tc := range []struct {
		src     string
		x, want float64
	}{
		{"x * x", 5, 25},
		{"1 / (1 + exp(-(x*3.0 + 1.0)))", 2, 0.9990889488055994},
		{"sigmoid(x*3.0 + 1.0)", 2, 0.9990889488055994},
		{"-x + 2", 5, -3},
		{"log(exp(x))", 5, 5},
		{"sqrt(x * 5)", 5, 5},
		{"relu(-x) + relu(x)", 5, 5},
		{"tanh(0 * x)", 5, 0},
	} {
		g, output := traceExpr(t, tc.src)
		trace, err := Execute(g, map[string]float64{"x": tc.x}, nil)
		require.NoErrorf(t, err, "source %q", tc.src)
		assert.InDeltaf(t, tc.want, trace.Value(output), 1e-12, "source %q", tc.src)
	}
}

func TestExecuteReusesTrace(t *testing.T) {
	g, output := traceExpr(t, "x * x")
	trace, err := Execute(g, map[string]float64{"x": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 9.0, trace.Value(output))
	reused, err := Execute(g, map[string]float64{"x": 4}, trace)
	require.NoError(t, err)
	assert.Same(t, trace, reused)
	assert.Equal(t, 16.0, trace.Value(output))

	_, err = Execute(g, map[string]float64{}, trace)
	require.Error(t, err)
	_, err = Execute(New("other"), nil, trace)
	require.Error(t, err)
}

func TestExecuteEvaluatesSharedNodesOnce(t *testing.T) {
	// A name bound to an expression resolves to the same node on every reference.
	g := New("shared")
	x := Variable(g, "x", true)
	var bound *Node
	tracer := NewTracer(g, func(ident *lang.Ident) (*Node, error) {
		if ident.Name == "x" {
			return x, nil
		}
		return bound, nil
	})
	var err error
	bound, err = tracer.Expr(parseExpr(t, "exp(x) + 1"))
	require.NoError(t, err)
	numNodes := g.NumNodes()
	output, err := tracer.Expr(parseExpr(t, "e * e * e"))
	require.NoError(t, err)
	// Only the two multiplications are added.
	assert.Equal(t, numNodes+2, g.NumNodes())

	trace, err := Execute(g, map[string]float64{"x": 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, trace.Value(output))
}

func TestExecuteNumericDivergence(t *testing.T) {
	for src, construct := range map[string]string{
		"log(x - 1)":  "log",
		"exp(x)":      "exp",
		"x / (x - 1)": "Div",
		"sqrt(-x)":    "sqrt",
	} {
		g, _ := traceExpr(t, src)
		inputs := map[string]float64{"x": 1}
		if src == "exp(x)" {
			inputs["x"] = 1000
		}
		_, err := Execute(g, inputs, nil)
		require.Errorf(t, err, "source %q", src)
		e, ok := lang.AsError(err)
		require.Truef(t, ok, "source %q: %v", src, err)
		assert.Equalf(t, lang.NumericDivergence, e.Kind, "source %q", src)
		assert.Equalf(t, construct, e.Construct, "source %q", src)
		assert.Equalf(t, 1, e.Pos.Line, "source %q", src)
	}
	assert.True(t, math.IsInf(math.Exp(1000), 1))
}
