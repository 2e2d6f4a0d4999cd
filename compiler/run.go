// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"strconv"

	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
	"github.com/gomlx/noma/ml/train"
	"github.com/gomlx/noma/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoopHook is called for every loop before it runs, and can be used to attach hooks to it, like a
// progress bar or the collection of the loss history.
type LoopHook func(step *LoopStep, loop *train.Loop)

// Options for Run.
type Options struct {
	loopHooks  []LoopHook
	traceEvery int
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{}
}

// WithLoopHook adds a hook called for every loop before it runs.
// It returns the updated Options, so calls can be cascaded.
func (o *Options) WithLoopHook(hook LoopHook) *Options {
	o.loopHooks = append(o.loopHooks, hook)
	return o
}

// WithTraceEvery logs (with klog.V(1)) the loss and the trainable variables every n iterations of each loop.
// If n <= 0 (the default), nothing is logged.
func (o *Options) WithTraceEvery(n int) *Options {
	o.traceEvery = n
	return o
}

// LoopResult holds how a loop finished.
type LoopResult struct {
	Name       string
	State      train.State
	Iterations int
	Loss       float64
}

// Result of running a Module.
type Result struct {
	// Values of the variables at the end of the program.
	Values map[string]float64

	// HasReturn indicates the program returned a value, in ReturnValue.
	HasReturn   bool
	ReturnValue float64

	// Loops holds the result of each loop, in execution order.
	Loops []LoopResult

	learned []string
}

// FormatValue formats a value the way programs print their results: the shortest representation
// that parses back to the same float64.
func FormatValue(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// Output returns the lines printed by the program: the returned value if there is one, otherwise
// `name = value` for each trainable variable, in declaration order.
func (r *Result) Output() []string {
	if r.HasReturn {
		return []string{FormatValue(r.ReturnValue)}
	}
	lines := make([]string, 0, len(r.learned))
	for _, name := range r.learned {
		lines = append(lines, fmt.Sprintf("%s = %s", name, FormatValue(r.Values[name])))
	}
	return lines
}

// Run executes the Module in-process. It is the reference semantics for the executables produced
// by the code generator.
//
// Any non-finite value aborts the run with a *lang.Error of Kind lang.NumericDivergence.
func Run(m *Module, opts *Options) (*Result, error) {
	if opts == nil {
		opts = NewOptions()
	}
	result := &Result{
		Values:  make(map[string]float64, len(m.Variables)),
		learned: m.Learned(),
	}
	for _, step := range m.Steps {
		switch step := step.(type) {
		case *AssignStep:
			value, err := evaluate(step.Graph, step.Output, result.Values)
			if err != nil {
				return nil, err
			}
			result.Values[step.Target] = value
			klog.V(2).Infof("%s: %s = %s", step.Pos, step.Target, FormatValue(value))

		case *LoopStep:
			loopResult, err := runLoop(step, result.Values, opts)
			if err != nil {
				return nil, err
			}
			result.Loops = append(result.Loops, loopResult)
		}
	}
	if m.Return != nil {
		value, err := evaluate(m.Return.Graph, m.Return.Output, result.Values)
		if err != nil {
			return nil, err
		}
		result.HasReturn, result.ReturnValue = true, value
	}
	return result, nil
}

func evaluate(g *graph.Graph, output graph.NodeId, values map[string]float64) (float64, error) {
	trace, err := graph.Execute(g, values, nil)
	if err != nil {
		return 0, err
	}
	return trace.Values[output], nil
}

// loopTrainer implements train.Trainer for a LoopStep, reusing one Trace across iterations.
type loopTrainer struct {
	step       *LoopStep
	trace      *graph.Trace
	loss       *graph.Node
	trainables []*graph.Node
}

func newLoopTrainer(step *LoopStep) *loopTrainer {
	t := &loopTrainer{
		step:  step,
		trace: graph.NewTrace(step.Graph),
		loss:  step.Graph.NodeById(step.Loss),
	}
	for _, name := range step.Trainables {
		t.trainables = append(t.trainables, step.Graph.VariableByName(name))
	}
	return t
}

// Forward implements train.Trainer.
func (t *loopTrainer) Forward(values map[string]float64) (loss float64, converged bool, err error) {
	if _, err = graph.Execute(t.step.Graph, values, t.trace); err != nil {
		return 0, false, err
	}
	loss = t.trace.Values[t.step.Loss]
	if t.step.Predicate != graph.InvalidNodeId {
		converged = t.trace.Values[t.step.Predicate] != 0
	}
	return loss, converged, nil
}

// Backward implements train.Trainer.
func (t *loopTrainer) Backward() (graph.GradientMap, error) {
	return graph.Gradient(t.trace, t.loss, t.trainables...)
}

func runLoop(step *LoopStep, values map[string]float64, opts *Options) (LoopResult, error) {
	loop := train.NewLoop(step.Name, newLoopTrainer(step), optimizers.StochasticGradientDescent(step.LearningRate),
		step.MaxIterations, values)
	if opts.traceEvery > 0 {
		train.EveryNSteps(loop, opts.traceEvery, "trace", 0, func(loop *train.Loop, loss float64) error {
			klog.V(1).Infof("%s: iteration %d, loss=%s, %v", step.Name, loop.Iteration, FormatValue(loss), traceValues(step, loop.Values))
			return nil
		})
	}
	for _, hook := range opts.loopHooks {
		hook(step, loop)
	}
	state, err := loop.Run()
	if err != nil {
		if located, ok := lang.AsError(err); ok {
			// Located diagnostics are reported as is.
			if !located.Pos.IsValid() {
				located.Pos = step.Pos
			}
			return LoopResult{}, located
		}
		return LoopResult{}, errors.WithMessagef(err, "%s", step.Pos)
	}
	return LoopResult{Name: step.Name, State: state, Iterations: loop.Iteration, Loss: loop.Loss}, nil
}

func traceValues(step *LoopStep, values map[string]float64) map[string]string {
	traced := make(map[string]string, len(step.Trainables))
	for _, name := range step.Trainables {
		traced[name] = FormatValue(values[name])
	}
	return traced
}
