// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements the update rule applied to trainable variables at the end of each
// iteration of an optimize loop.
package optimizers

import (
	"math"
	"slices"
	"strconv"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Interface implemented by optimizer implementations.
type Interface interface {
	// Update applies one update step to values, given the gradients of the loss with respect to
	// each trainable variable (the keys of gradients).
	//
	// All variables are updated simultaneously: gradients were computed before any update.
	Update(values map[string]float64, gradients graph.GradientMap) error
}

// DefaultLearningRate used when an optimize loop doesn't set one.
const DefaultLearningRate = 0.01

// sgd implements Interface for plain gradient descent.
type sgd struct {
	learningRate float64
}

// StochasticGradientDescent creates an optimizer that performs the update `v ← v − learningRate·grad[v]`.
// The learning rate is constant. It panics if learningRate is not positive and finite.
func StochasticGradientDescent(learningRate float64) Interface {
	if !(learningRate > 0) || math.IsInf(learningRate, 0) {
		Panicf("StochasticGradientDescent requires a positive learning rate, got %g", learningRate)
	}
	return &sgd{learningRate: learningRate}
}

// Update implements Interface.
func (o *sgd) Update(values map[string]float64, gradients graph.GradientMap) error {
	// Sorted for deterministic error reporting.
	names := maps.Keys(gradients)
	slices.Sort(names)
	updated := make(map[string]float64, len(names))
	for _, name := range names {
		value, found := values[name]
		if !found {
			return errors.Errorf("optimizer: gradient given for unknown variable %q", name)
		}
		// The explicit conversion rounds the product: the update is never fused into a multiply-add.
		newValue := value - float64(o.learningRate*gradients[name])
		if math.IsNaN(newValue) || math.IsInf(newValue, 0) {
			return lang.Errorf(lang.NumericDivergence, lang.Pos{}, name,
				"update of %q diverged to %s", name, strconv.FormatFloat(newValue, 'g', -1, 64))
		}
		updated[name] = newValue
	}
	for name, value := range updated {
		values[name] = value
	}
	return nil
}
