// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

// State of a Loop.
type State int

//go:generate go tool enumer -type=State -trimprefix=State -output=gen_state_enumer.go state.go

const (
	// StateRunning is the initial state, while iterations are being executed.
	StateRunning State = iota

	// StateConverged is terminal: the convergence predicate held at the start of an iteration,
	// and the loop stopped before that iteration's update.
	StateConverged

	// StateMaxIterationsReached is terminal: the maximum number of updates was executed without
	// the convergence predicate holding.
	StateMaxIterationsReached

	// StateFailed is terminal: an iteration or one of its hooks returned an error, which Loop.Run returns.
	StateFailed
)

// IsTerminal returns whether the loop has finished in this state.
func (s State) IsTerminal() bool { return s != StateRunning }
