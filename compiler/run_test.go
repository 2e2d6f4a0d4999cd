// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"math"
	"testing"

	"github.com/gomlx/noma/lang"
	"github.com/gomlx/noma/ml/train"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearSolveSource = `
fn main() {
    learn w = 0.1;
    let input = 5.0;
    let target = 25.0;
    optimize until loss < 0.001 {
        let error = input * w - target;
        let loss = error * error;
        minimize loss;
    }
    return w;
}
`

func mustRun(t *testing.T, src string) *Result {
	m, err := CompileSource("test.noma", src)
	require.NoError(t, err)
	result, err := Run(m, nil)
	require.NoError(t, err)
	return result
}

func TestRunScenarios(t *testing.T) {
	for _, tc := range []struct {
		name       string
		src        string
		want       float64
		delta      float64
		iterations int
	}{
		{
			name: "hello",
			src:  "fn main() { let x = 5.0; let y = x * x; return y; }",
			want: 25,
		},
		{
			name:  "sigmoid",
			src:   "fn main() { let x = 2.0; let z = x * 3.0 + 1.0; let y = 1 / (1 + exp(-z)); return y; }",
			want:  0.9990889488055994,
			delta: 1e-12,
		},
		{
			name: "gradient descent",
			src: `fn main() {
				learn x = 5.0;
				optimize(lr = 0.01, max_iter = 1000) until loss < 0.0001 {
					let loss = x * x;
					minimize loss;
				}
				return x;
			}`,
			want:       0.009922047861277514,
			delta:      1e-9,
			iterations: 308,
		},
		{
			name:       "linear solve",
			src:        linearSolveSource,
			want:       4.9952148437499995,
			delta:      1e-9,
			iterations: 10,
		},
		{
			name: "quadratic minimum",
			src: `fn main() {
				learn x = 10.0;
				let target = 3.0;
				optimize until loss < 1.0001 {
					let delta = x - target;
					let loss = delta * delta + 1.0;
					minimize loss;
				}
				return x;
			}`,
			want:       3.0098530943183253,
			delta:      1e-9,
			iterations: 325,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := mustRun(t, tc.src)
			require.True(t, result.HasReturn)
			assert.InDelta(t, tc.want, result.ReturnValue, tc.delta)
			if tc.iterations == 0 {
				assert.Empty(t, result.Loops)
				assert.Equal(t, []string{FormatValue(result.ReturnValue)}, result.Output())
				return
			}
			require.Len(t, result.Loops, 1)
			loop := result.Loops[0]
			// Converged by the threshold, well before the iteration cap.
			assert.Equal(t, train.StateConverged, loop.State)
			assert.InDelta(t, tc.iterations, loop.Iterations, 1)
		})
	}
}

func TestRunHelloOutput(t *testing.T) {
	result := mustRun(t, "fn main() { let x = 5.0; let y = x * x; return y; }")
	assert.Equal(t, []string{"25"}, result.Output())
	assert.Equal(t, map[string]float64{"x": 5, "y": 25}, result.Values)
}

func TestRunUnresolvedVariable(t *testing.T) {
	_, err := CompileSource("bad.noma", "fn main() {\n    let y = x * x;\n    return y;\n}")
	require.Error(t, err)
	e, ok := lang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, lang.UnresolvedVariable, e.Kind)
	assert.Equal(t, "x", e.Construct)
	assert.Equal(t, lang.Pos{File: "bad.noma", Line: 2, Column: 13}, e.Pos)
	assert.Contains(t, err.Error(), "bad.noma:2:13")
}

func TestRunIterationCap(t *testing.T) {
	result := mustRun(t, `fn main() {
		learn x = 5;
		optimize(max_iter = 5) until loss < 0 {
			let loss = x * x;
			minimize loss;
		}
	}`)
	require.Len(t, result.Loops, 1)
	assert.Equal(t, train.StateMaxIterationsReached, result.Loops[0].State)
	assert.Equal(t, 5, result.Loops[0].Iterations)
	assert.InDelta(t, 5*math.Pow(0.98, 5), result.Values["x"], 1e-12)
	assert.False(t, result.HasReturn)
	assert.Equal(t, []string{"x = " + FormatValue(result.Values["x"])}, result.Output())
}

func TestRunNoUpdateOnConvergingIteration(t *testing.T) {
	result := mustRun(t, `fn main() {
		learn x = 5;
		optimize until loss < 100 {
			let loss = x * x;
			minimize loss;
		}
		return x;
	}`)
	require.Len(t, result.Loops, 1)
	assert.Equal(t, train.StateConverged, result.Loops[0].State)
	assert.Equal(t, 0, result.Loops[0].Iterations)
	assert.Equal(t, 25.0, result.Loops[0].Loss)
	assert.Equal(t, 5.0, result.ReturnValue)
}

func TestUpdatesVisibleAtIterationBoundary(t *testing.T) {
	t.Run("let values are snapshots", func(t *testing.T) {
		result := mustRun(t, `fn main() {
			learn x = 5;
			let before = x * 2;
			optimize(max_iter = 3) {
				minimize x * x;
			}
			let after = x * 2;
		}`)
		x := 5 * math.Pow(0.98, 3)
		assert.InDelta(t, x, result.Values["x"], 1e-12)
		assert.Equal(t, 10.0, result.Values["before"])
		assert.InDelta(t, 2*x, result.Values["after"], 1e-12)
		// Only trainable variables are printed.
		assert.Len(t, result.Output(), 1)
	})

	t.Run("updates are simultaneous", func(t *testing.T) {
		result := mustRun(t, `fn main() {
			learn a = 1;
			learn b = 2;
			optimize(lr = 0.1, max_iter = 1) {
				minimize a * b;
			}
		}`)
		// Both gradients are computed before any update: b uses the old value of a.
		assert.InDelta(t, 0.8, result.Values["a"], 1e-12)
		assert.InDelta(t, 1.9, result.Values["b"], 1e-12)
		assert.Equal(t, []string{"a = " + FormatValue(result.Values["a"]), "b = " + FormatValue(result.Values["b"])},
			result.Output())
	})

	t.Run("unused trainable is not changed", func(t *testing.T) {
		result := mustRun(t, `fn main() {
			learn x = 5;
			learn unused = 7;
			optimize(max_iter = 10) {
				minimize x * x;
			}
		}`)
		assert.Equal(t, 7.0, result.Values["unused"])
	})

	t.Run("consecutive loops", func(t *testing.T) {
		result := mustRun(t, `fn main() {
			learn x = 5;
			optimize(max_iter = 1) {
				minimize x * x;
			}
			x = x + 1;
			optimize(max_iter = 1) {
				minimize x * x;
			}
			return x;
		}`)
		require.Len(t, result.Loops, 2)
		assert.InDelta(t, (5*0.98+1)*0.98, result.ReturnValue, 1e-12)
	})
}

func TestRunNumericDivergence(t *testing.T) {
	m, err := CompileSource("", "fn main() { learn x = 1; let y = log(x - 1); }")
	require.NoError(t, err)
	_, err = Run(m, nil)
	e, ok := lang.AsError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, lang.NumericDivergence, e.Kind)
	assert.Equal(t, "log", e.Construct)
	assert.Equal(t, lang.Pos{Line: 1, Column: 34}, e.Pos)

	m, err = CompileSource("", `fn main() {
		learn x = 1;
		optimize(lr = 1e300, max_iter = 10) {
			minimize x * x * x * x;
		}
	}`)
	require.NoError(t, err)
	_, err = Run(m, nil)
	e, ok = lang.AsError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, lang.NumericDivergence, e.Kind)
	assert.True(t, e.Pos.IsValid())
}

func TestRunLoopHook(t *testing.T) {
	m, err := CompileSource("", linearSolveSource)
	require.NoError(t, err)
	var names []string
	var losses []float64
	opts := NewOptions().WithTraceEvery(2).WithLoopHook(func(step *LoopStep, loop *train.Loop) {
		names = append(names, step.Name)
		loop.OnStep("history", 0, func(_ *train.Loop, loss float64) error {
			losses = append(losses, loss)
			return nil
		})
	})
	result, err := Run(m, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"optimize@6:5"}, names)
	require.Len(t, result.Loops, 1)
	// One loss per forward pass: every update plus the converging one.
	assert.Len(t, losses, result.Loops[0].Iterations+1)
	assert.Less(t, losses[len(losses)-1], 0.001)
	assert.Equal(t, result.Loops[0].Loss, losses[len(losses)-1])
}
