// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package train implements the execution of optimize loops: repeated forward pass, convergence check,
// backward pass and update of the trainable variables.
package train

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Trainer computes the quantities needed by one iteration of a Loop.
type Trainer interface {
	// Forward runs the forward pass at the given variable values, returning the loss and whether
	// the convergence predicate holds.
	Forward(values map[string]float64) (loss float64, converged bool, err error)

	// Backward returns the gradient of the loss of the last Forward call with respect to each trainable variable.
	Backward() (graph.GradientMap, error)
}

// Priority for hooks, the lowest values are run first. Defaults to 0, but negative
// values are ok.
type Priority int

// OnStartFn is the type of OnStart hooks.
type OnStartFn func(loop *Loop) error

// OnStepFn is the type of OnStep hooks. It is called after each iteration, with the loss of its forward pass.
type OnStepFn func(loop *Loop, loss float64) error

// OnEndFn is the type of OnEnd hooks.
type OnEndFn func(loop *Loop) error

// Loop runs an optimize loop, invoking the Trainer and the optimizer every iteration,
// and calling the appropriate hooks.
//
// Each iteration:
//
//  1. Runs the forward pass (Trainer.Forward).
//  2. If the convergence predicate holds, the loop stops in StateConverged: the update of this iteration
//     is not executed.
//  3. Runs the backward pass (Trainer.Backward).
//  4. Updates every trainable variable, simultaneously, with the optimizer.
//
// After MaxIterations updates without converging, the loop stops in StateMaxIterationsReached.
// If an iteration fails, the loop stops in StateFailed. The OnEnd hooks are called in every case.
//
// The public attributes are meant for reading only, don't change them -- behavior
// can be undefined.
type Loop struct {
	// Name of the loop, used in hooks and error messages.
	Name string

	Trainer   Trainer
	Optimizer optimizers.Interface

	// MaxIterations is the maximum number of updates executed.
	MaxIterations int

	// Iteration is the number of updates executed so far.
	Iteration int

	// Loss of the last forward pass.
	Loss float64

	// State of the loop: StateRunning until Run returns.
	State State

	// Values holds the current value of every variable, updated in place at the end of each iteration.
	Values map[string]float64

	// SharedData allows for cross-tools to publish and consume information. Keys (strings)
	// and semantics/type of their values are not specified by loop.
	SharedData map[string]any

	// StepDurations collected during the run.
	StepDurations []time.Duration

	// Registered hooks.
	onStart *priorityHooks[*hookWithName[OnStartFn]]
	onStep  *priorityHooks[*hookWithName[OnStepFn]]
	onEnd   *priorityHooks[*hookWithName[OnEndFn]]
}

// NewLoop creates a new optimize loop over the given variable values, which are updated in place.
func NewLoop(name string, trainer Trainer, optimizer optimizers.Interface, maxIterations int, values map[string]float64) *Loop {
	return &Loop{
		Name:          name,
		Trainer:       trainer,
		Optimizer:     optimizer,
		MaxIterations: maxIterations,
		Values:        values,
		SharedData:    make(map[string]any),
		onStart:       newPriorityHooks[*hookWithName[OnStartFn]](),
		onStep:        newPriorityHooks[*hookWithName[OnStepFn]](),
		onEnd:         newPriorityHooks[*hookWithName[OnEndFn]](),
	}
}

// start of loop: it calls the appropriate hooks.
func (loop *Loop) start() (err error) {
	loop.onStart.Enumerate(func(hook *hookWithName[OnStartFn]) {
		if err != nil {
			// After the first error stop.
			return
		}
		err = hook.fn(loop)
		if err != nil {
			err = errors.WithMessagef(err, "OnStart(hook %q)", hook.name)
		}
	})
	return
}

// step runs one iteration and calls the OnStep hooks.
func (loop *Loop) step() (err error) {
	startTime := time.Now()
	defer func() {
		loop.StepDurations = append(loop.StepDurations, time.Since(startTime))
	}()

	loss, converged, err := loop.Trainer.Forward(loop.Values)
	if err != nil {
		return err
	}
	if math.IsNaN(loss) {
		return errors.Errorf("loss is NaN, loop interrupted")
	}
	if math.IsInf(loss, 0) {
		return errors.Errorf("loss is infinity (%f), loop interrupted", loss)
	}
	loop.Loss = loss
	if converged {
		loop.State = StateConverged
	} else {
		gradients, err := loop.Trainer.Backward()
		if err != nil {
			return err
		}
		if err = loop.Optimizer.Update(loop.Values, gradients); err != nil {
			return err
		}
		loop.Iteration++
	}

	loop.onStep.Enumerate(func(hook *hookWithName[OnStepFn]) {
		if err != nil {
			// After the first error stop.
			return
		}
		err = hook.fn(loop, loss)
		if err != nil {
			err = errors.WithMessagef(err, "OnStep(hook %q)", hook.name)
		}
	})
	return err
}

// end of loop: it calls the appropriate hooks.
func (loop *Loop) end() (err error) {
	loop.onEnd.Enumerate(func(hook *hookWithName[OnEndFn]) {
		if err != nil {
			// After the first error stop.
			return
		}
		err = hook.fn(loop)
		if err != nil {
			err = errors.WithMessagef(err, "OnEnd(hook %q)", hook.name)
		}
	})
	return
}

// Run executes the loop until it converges or reaches MaxIterations, and returns the final state.
// The final variable values are left in Loop.Values.
func (loop *Loop) Run() (State, error) {
	if loop.MaxIterations <= 0 {
		return loop.State, errors.Errorf("Loop(%q).Run(): MaxIterations must be positive, got %d", loop.Name, loop.MaxIterations)
	}
	loop.State = StateRunning
	loop.Iteration = 0
	loop.StepDurations = make([]time.Duration, 0, min(loop.MaxIterations, 1024))
	if err := loop.start(); err != nil {
		return loop.State, errors.WithMessagef(err, "Loop(%q).Run()", loop.Name)
	}
	for loop.State == StateRunning {
		if loop.Iteration >= loop.MaxIterations {
			loop.State = StateMaxIterationsReached
			break
		}
		if err := loop.step(); err != nil {
			loop.State = StateFailed
			err = errors.WithMessagef(err, "Loop(%q).Run(): failed iteration %d", loop.Name, loop.Iteration)
			if endErr := loop.end(); endErr != nil {
				klog.Errorf("Loop(%q).Run(): failed end after a failed iteration: %v", loop.Name, endErr)
			}
			return loop.State, err
		}
	}
	klog.V(1).Infof("loop %q: %s after %d iterations, loss=%g", loop.Name, loop.State, loop.Iteration, loop.Loss)
	if err := loop.end(); err != nil {
		return loop.State, errors.WithMessagef(err, "Loop(%q).Run(): failed end (Iteration=%d)", loop.Name, loop.Iteration)
	}
	return loop.State, nil
}

// MedianStepDuration returns the median duration of each iteration. It returns 1 millisecond
// if no iteration was recorded (to avoid potential division by 0).
func (loop *Loop) MedianStepDuration() time.Duration {
	if len(loop.StepDurations) == 0 {
		// Return something different than 0 to avoid division by 0.
		return time.Millisecond
	}
	times := slices.Clone(loop.StepDurations)
	slices.Sort(times)
	return times[len(times)/2]
}

// OnStart adds a hook with given priority and name (for error reporting) to the start of a loop.
func (loop *Loop) OnStart(name string, priority Priority, fn OnStartFn) {
	loop.onStart.Add(priority, &hookWithName[OnStartFn]{
		name: name,
		fn:   fn,
	})
}

// OnStep adds a hook with given priority and name (for error reporting) to each iteration of a loop,
// including the last one, where the loop converges.
func (loop *Loop) OnStep(name string, priority Priority, fn OnStepFn) {
	loop.onStep.Add(priority, &hookWithName[OnStepFn]{
		name: name,
		fn:   fn,
	})
}

// OnEnd adds a hook with given priority and name (for error reporting) to the end of a loop,
// after the final State is set. It is also called when the loop fails, with State set to StateFailed.
func (loop *Loop) OnEnd(name string, priority Priority, fn OnEndFn) {
	loop.onEnd.Add(priority, &hookWithName[OnEndFn]{
		name: name,
		fn:   fn,
	})
}

// hookWithName stores a hook name and function.
type hookWithName[F any] struct {
	name string
	fn   F
}

// priorityHooks organizes hooks for type F per priority.
type priorityHooks[H any] struct {
	hooks map[Priority][]H
}

func newPriorityHooks[H any]() *priorityHooks[H] {
	return &priorityHooks[H]{
		hooks: make(map[Priority][]H),
	}
}

// Add hook at the given priority.
func (h *priorityHooks[H]) Add(priority Priority, hook H) {
	h.hooks[priority] = append(h.hooks[priority], hook)
}

// Enumerate will call fn for all registered hooks in priority order.
func (h *priorityHooks[H]) Enumerate(fn func(hook H)) {
	keys := make([]Priority, 0, len(h.hooks))
	for key := range h.hooks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	for _, key := range keys {
		for _, hook := range h.hooks[key] {
			fn(hook)
		}
	}
}
