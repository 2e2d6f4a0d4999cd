// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"go/format"
	"os"
	"testing"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileLinearSolve(t *testing.T) {
	m, err := CompileSource("linear.noma", linearSolveSource)
	require.NoError(t, err)
	assert.Equal(t, []Variable{
		{Name: "w", Trainable: true, Pos: lang.Pos{File: "linear.noma", Line: 3, Column: 5}},
		{Name: "input", Pos: lang.Pos{File: "linear.noma", Line: 4, Column: 5}},
		{Name: "target", Pos: lang.Pos{File: "linear.noma", Line: 5, Column: 5}},
	}, m.Variables)
	assert.Equal(t, []string{"w"}, m.Learned())
	require.Len(t, m.Steps, 4)

	loops := m.Loops()
	require.Len(t, loops, 1)
	loop := loops[0]
	assert.Equal(t, 0.01, loop.LearningRate)
	assert.Equal(t, 1000, loop.MaxIterations)
	assert.Equal(t, []string{"w"}, loop.Trainables)
	assert.Equal(t, []string{"input", "target"}, loop.Inputs)
	require.Len(t, loop.Bindings, 2)
	assert.Equal(t, "error", loop.Bindings[0].Name)
	assert.Equal(t, loop.Bindings[1].Node, loop.Loss)
	require.NotEqual(t, graph.InvalidNodeId, loop.Predicate)
	assert.Equal(t, graph.NodeTypeLess, loop.Graph.NodeById(loop.Predicate).Type())

	require.NotNil(t, m.Return)
	assert.Equal(t, graph.NodeTypeVariable, m.Return.Graph.NodeById(m.Return.Output).Type())
	assert.Contains(t, m.String(), "optimize@6:5(lr=0.01, max_iter=1000)")
}

func TestCompileLoopOptions(t *testing.T) {
	for _, tc := range []struct {
		src      string
		lr       float64
		maxIters int
	}{
		{"optimize", 0.01, 1000},
		{"optimize(lr = 0.5)", 0.5, 1000},
		{"optimize(max_iter = 7)", 0.01, 7},
		{"optimize(learning_rate = 1e-3, max_iterations = 20)", 0.001, 20},
	} {
		m, err := CompileSource("", "fn main() { learn x = 1; "+tc.src+" { minimize x * x; } }")
		require.NoErrorf(t, err, "source %q", tc.src)
		loop := m.Loops()[0]
		assert.Equalf(t, tc.lr, loop.LearningRate, "source %q", tc.src)
		assert.Equalf(t, tc.maxIters, loop.MaxIterations, "source %q", tc.src)
		assert.Equalf(t, graph.InvalidNodeId, loop.Predicate, "source %q", tc.src)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, tc := range []struct {
		src       string
		kind      lang.ErrorKind
		construct string
		line, col int
	}{
		{"fn main() {\n  let y = x * x;\n}", lang.UnresolvedVariable, "x", 2, 11},
		{"fn main() { learn x = 1; let x = 2; }", lang.Redeclared, "x", 1, 26},
		{"fn main() { y = 1; }", lang.UnresolvedVariable, "y", 1, 13},
		{"fn main() { learn x = 1; x; }", lang.UnsupportedConstruct, "x", 1, 26},
		{"fn main() { learn x = 1; minimize x; }", lang.UnsupportedConstruct, "minimize", 1, 26},
		{"fn main() { return 1; let x = 2; }", lang.UnsupportedConstruct, "return", 1, 23},
		{"fn main() { return 5 % 2; }", lang.UnsupportedConstruct, "%", 1, 22},
		{"fn main() { return cosh(1); }", lang.UnsupportedConstruct, "cosh", 1, 20},
		{"fn main() { let a = 1 < 2; }", lang.UnsupportedConstruct, "<", 1, 23},
		{"fn helper() { return 1; }\nfn main() {}", lang.UnsupportedConstruct, "helper", 1, 1},
		{"fn main(a) { }", lang.UnsupportedConstruct, "main", 1, 1},
		{"struct P { x: f64 }\nfn main() {}", lang.UnsupportedConstruct, "struct", 1, 1},
		{"fn main() {}\nfn main() {}", lang.Redeclared, "main", 2, 1},
		{"fn main() { learn x = 1; optimize { let l = x * x; } }", lang.UnsupportedConstruct, "optimize", 1, 26},
		{"fn main() { learn x = 1; optimize { minimize x; minimize x; } }", lang.UnsupportedConstruct, "minimize", 1, 49},
		{"fn main() { learn x = 1; optimize { x = x - 1; minimize x; } }", lang.UnsupportedConstruct, "x", 1, 37},
		{"fn main() { learn x = 1; optimize { learn y = 1; minimize x; } }", lang.UnsupportedConstruct, "learn", 1, 37},
		{"fn main() { learn x = 1; optimize { optimize { minimize x; } } }", lang.UnsupportedConstruct, "optimize", 1, 37},
		{"fn main() { learn x = 1; optimize { minimize x; return x; } }", lang.UnsupportedConstruct, "return", 1, 49},
		{"fn main() { learn x = 1; optimize { let x = 2; minimize x; } }", lang.Redeclared, "x", 1, 37},
		{"fn main() { learn x = 1; optimize until x + 1 { minimize x; } }", lang.UnsupportedConstruct, "(x + 1)", 1, 43},
		{"fn main() { learn x = 1; optimize until lossy < 1 { minimize x; } }", lang.UnresolvedVariable, "lossy", 1, 41},
		{"fn main() { learn x = 1; optimize(lr = 0) { minimize x; } }", lang.UnsupportedConstruct, "lr", 1, 35},
		{"fn main() { learn x = 1; optimize(max_iter = 2.5) { minimize x; } }", lang.UnsupportedConstruct, "max_iter", 1, 35},
		{"fn main() { learn x = 1; optimize(max_iter = 0) { minimize x; } }", lang.UnsupportedConstruct, "max_iter", 1, 35},
		{"fn main() { learn x = 1; optimize(lr = 1, learning_rate = 2) { minimize x; } }", lang.UnsupportedConstruct, "learning_rate", 1, 43},
		{"fn main() { learn x = 1; optimize(momentum = 0.9) { minimize x; } }", lang.UnsupportedConstruct, "momentum", 1, 35},
		{"fn main() { learn x = 1; optimize { minimize x; let y = undeclared; } }", lang.UnresolvedVariable, "undeclared", 1, 57},
	} {
		_, err := CompileSource("", tc.src)
		require.Errorf(t, err, "source %q", tc.src)
		e, ok := lang.AsError(err)
		require.Truef(t, ok, "source %q: error %v is not located", tc.src, err)
		assert.Equalf(t, tc.kind, e.Kind, "source %q: %v", tc.src, err)
		assert.Equalf(t, tc.construct, e.Construct, "source %q: %v", tc.src, err)
		assert.Equalf(t, lang.Pos{Line: tc.line, Column: tc.col}, e.Pos, "source %q: %v", tc.src, err)
	}
}

func TestCompileNoMain(t *testing.T) {
	_, err := CompileSource("empty.noma", "")
	require.True(t, lang.IsKind(err, lang.UnsupportedConstruct), "got %v", err)
	assert.Contains(t, err.Error(), "empty.noma")
}

func TestCompileLoopRebinding(t *testing.T) {
	m, err := CompileSource("", `
fn main() {
    learn x = 2;
    learn unused = 7;
    let scale = 3;
    optimize(max_iter = 10) {
        let a = x * scale;
        a = a * a;
        minimize a;
    }
}`)
	require.NoError(t, err)
	loop := m.Loops()[0]
	assert.Equal(t, []string{"x", "unused"}, loop.Trainables)
	assert.Equal(t, []string{"scale"}, loop.Inputs)
	require.Len(t, loop.Bindings, 2)
	assert.Equal(t, loop.Bindings[1].Node, loop.Loss)
	assert.Equal(t, graph.NodeTypeMul, loop.Graph.NodeById(loop.Loss).Type())
	assert.Nil(t, m.Return)
}

func TestCompileTestsFormatted(t *testing.T) {
	requireFormatted(t, "compile_test.go")
}

// requireFormatted checks the files are in gofmt layout.
func requireFormatted(t *testing.T, files ...string) {
	for _, file := range files {
		src, err := os.ReadFile(file)
		require.NoError(t, err)
		formatted, err := format.Source(src)
		require.NoError(t, err)
		assert.Equal(t, string(formatted), string(src), "%s is not formatted", file)
	}
}
