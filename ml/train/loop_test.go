// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"go/format"
	"os"
	"testing"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/ml/train/optimizers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadraticTrainer minimizes (x - target)² + offset, converging when the loss is below threshold.
type quadraticTrainer struct {
	target, offset, threshold float64
	x                         float64
	numForward, numBackward   int
}

func (q *quadraticTrainer) Forward(values map[string]float64) (float64, bool, error) {
	q.numForward++
	q.x = values["x"]
	delta := q.x - q.target
	loss := delta*delta + q.offset
	return loss, loss < q.threshold, nil
}

func (q *quadraticTrainer) Backward() (graph.GradientMap, error) {
	q.numBackward++
	return graph.GradientMap{"x": 2 * (q.x - q.target)}, nil
}

// referenceMinimize is the same loop, written directly.
func referenceMinimize(x, target, offset, threshold, lr float64, maxIter int) (float64, int, bool) {
	for ii := range maxIter {
		delta := x - target
		loss := delta*delta + offset
		if loss < threshold {
			return x, ii, true
		}
		x = x - float64(lr*(2*delta))
	}
	return x, maxIter, false
}

func TestLoopConverges(t *testing.T) {
	for _, tc := range []struct {
		x, target, offset, threshold float64
		wantX                        float64
	}{
		{x: 5, target: 0, offset: 0, threshold: 0.0001, wantX: 0},
		{x: 10, target: 3, offset: 1, threshold: 1.0001, wantX: 3},
	} {
		trainer := &quadraticTrainer{target: tc.target, offset: tc.offset, threshold: tc.threshold}
		values := map[string]float64{"x": tc.x}
		loop := NewLoop("quadratic", trainer, optimizers.StochasticGradientDescent(0.01), 1000, values)
		state, err := loop.Run()
		require.NoError(t, err)
		assert.Equal(t, StateConverged, state)
		assert.Equal(t, StateConverged, loop.State)
		assert.InDelta(t, tc.wantX, values["x"], 0.01)
		assert.Less(t, loop.Loss, tc.threshold)

		wantX, wantIterations, converged := referenceMinimize(tc.x, tc.target, tc.offset, tc.threshold, 0.01, 1000)
		require.True(t, converged)
		assert.Equal(t, wantX, values["x"])
		assert.Equal(t, wantIterations, loop.Iteration)
		assert.Equal(t, wantIterations+1, trainer.numForward)
		assert.Equal(t, wantIterations, trainer.numBackward)
		assert.Len(t, loop.StepDurations, wantIterations+1)
	}
}

func TestLoopMaxIterations(t *testing.T) {
	trainer := &quadraticTrainer{target: 3, offset: 1, threshold: 0.5} // Loss is never below 1.
	values := map[string]float64{"x": 10}
	loop := NewLoop("capped", trainer, optimizers.StochasticGradientDescent(0.01), 25, values)
	state, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, StateMaxIterationsReached, state)
	assert.True(t, state.IsTerminal())
	assert.Equal(t, 25, loop.Iteration)
	assert.Equal(t, 25, trainer.numForward)
	assert.Equal(t, 25, trainer.numBackward)
	wantX, _, _ := referenceMinimize(10, 3, 1, 0.5, 0.01, 25)
	assert.Equal(t, wantX, values["x"])
}

func TestLoopNoUpdateOnConvergingIteration(t *testing.T) {
	trainer := &quadraticTrainer{target: 3, offset: 0, threshold: 1}
	values := map[string]float64{"x": 3.5}
	loop := NewLoop("already", trainer, optimizers.StochasticGradientDescent(0.01), 1000, values)
	state, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, StateConverged, state)
	assert.Equal(t, 3.5, values["x"])
	assert.Equal(t, 0, loop.Iteration)
	assert.Equal(t, 1, trainer.numForward)
	assert.Equal(t, 0, trainer.numBackward)
	assert.Equal(t, 0.25, loop.Loss)
}

func TestLoopInvalidMaxIterations(t *testing.T) {
	loop := NewLoop("invalid", &quadraticTrainer{}, optimizers.StochasticGradientDescent(0.01), 0, map[string]float64{"x": 1})
	_, err := loop.Run()
	require.Error(t, err)
}

func TestLoopHooks(t *testing.T) {
	trainer := &quadraticTrainer{target: 0, threshold: 0.0001}
	values := map[string]float64{"x": 5}
	loop := NewLoop("hooks", trainer, optimizers.StochasticGradientDescent(0.01), 1000, values)
	var calls []string
	loop.OnStart("start", 0, func(loop *Loop) error {
		calls = append(calls, "start")
		return nil
	})
	var numSteps, numLast int
	var losses []float64
	loop.OnStep("late", 10, func(loop *Loop, loss float64) error {
		numSteps++
		return nil
	})
	loop.OnStep("early", -1, func(loop *Loop, loss float64) error {
		losses = append(losses, loss)
		if loop.State == StateConverged {
			numLast++
		}
		return nil
	})
	loop.OnEnd("end", 0, func(loop *Loop) error {
		calls = append(calls, "end:"+loop.State.String())
		return nil
	})
	var numTimes int
	NTimesDuringLoop(loop, 10, "n_times", 0, func(loop *Loop, loss float64) error {
		numTimes++
		return nil
	})
	var numEvery int
	EveryNSteps(loop, 100, "every", 0, func(loop *Loop, loss float64) error {
		numEvery++
		return nil
	})

	_, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "end:Converged"}, calls)
	assert.Equal(t, trainer.numForward, numSteps)
	assert.Len(t, losses, trainer.numForward)
	assert.Equal(t, 1, numLast)
	assert.LessOrEqual(t, numTimes, 10+1)
	assert.Greater(t, numTimes, 1)
	assert.Equal(t, trainer.numForward/100, numEvery)
	for ii := 1; ii < len(losses); ii++ {
		assert.Less(t, losses[ii], losses[ii-1], "loss must decrease monotonically")
	}
}

func TestLoopHookError(t *testing.T) {
	trainer := &quadraticTrainer{target: 0, threshold: 0.0001}
	loop := NewLoop("failing", trainer, optimizers.StochasticGradientDescent(0.01), 1000, map[string]float64{"x": 5})
	loop.OnStep("fail", 0, func(loop *Loop, loss float64) error {
		if loop.Iteration == 3 {
			return errors.New("stop here")
		}
		return nil
	})
	var endState State
	loop.OnEnd("end", 0, func(loop *Loop) error {
		endState = loop.State
		return nil
	})
	state, err := loop.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop here")
	assert.Contains(t, err.Error(), `OnStep(hook "fail")`)
	assert.Equal(t, 3, trainer.numForward)
	// End hooks run on failure too.
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, StateFailed, endState)
	assert.True(t, state.IsTerminal())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "Failed", StateFailed.String())
	state, err := StateString("maxiterationsreached")
	require.NoError(t, err)
	assert.Equal(t, StateMaxIterationsReached, state)
	assert.Len(t, StateValues(), 4)
	requireFormatted(t, "gen_state_enumer.go", "state.go")
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
