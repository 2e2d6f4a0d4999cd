// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/ml/train"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Plain text rendering, so tests can match the output.
	lipgloss.SetColorProfile(termenv.Ascii)
}

const badSource = "fn main() {\n    let y = x * x;\n    return y;\n}"

func TestFormatDiagnostic(t *testing.T) {
	_, err := compiler.CompileSource("bad.noma", badSource)
	require.Error(t, err)
	got := FormatDiagnostic(err, badSource)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "bad.noma:2:13: UnresolvedVariable: "), lines[0])
	assert.Equal(t, "   2 |     let y = x * x;", lines[1])
	assert.Equal(t, strings.Repeat(" ", len("   2 | ")+12)+"^", lines[2])
}

func TestFormatDiagnosticTabs(t *testing.T) {
	src := "fn main() {\n\tlet y = x;\n}"
	_, err := compiler.CompileSource("tabs.noma", src)
	require.Error(t, err)
	lines := strings.Split(FormatDiagnostic(err, src), "\n")
	require.Len(t, lines, 3)
	// The caret line keeps the tab, so it aligns with the source line whatever the tab width.
	assert.Equal(t, strings.Repeat(" ", len("   2 | "))+"\t"+strings.Repeat(" ", 8)+"^", lines[2])
}

func TestFormatDiagnosticWithoutSource(t *testing.T) {
	_, err := compiler.CompileSource("bad.noma", badSource)
	require.Error(t, err)
	// A source that doesn't have the line: only the header is rendered.
	got := FormatDiagnostic(err, "")
	assert.NotContains(t, got, "\n")
	assert.Contains(t, got, "bad.noma:2:13")

	// Wrapped diagnostics keep the context of the wrapping.
	wrapped := errors.WithMessage(err, "while checking")
	assert.Contains(t, FormatDiagnostic(wrapped, badSource), "while checking")

	// Errors that are not diagnostics.
	assert.Equal(t, "error: disk full", FormatDiagnostic(fmt.Errorf("disk full"), ""))
}

func TestCaretPadding(t *testing.T) {
	assert.Equal(t, "", caretPadding("abc", 1))
	assert.Equal(t, "  ", caretPadding("abc", 3))
	assert.Equal(t, "\t ", caretPadding("\tabc", 3))
	// Columns count runes.
	assert.Equal(t, "  ", caretPadding("héllo", 3))
	// Columns past the end of the line.
	assert.Equal(t, "   ", caretPadding("abc", 10))
}

const tableSource = `fn main() {
    learn x = 5.0;
    let scale = 2;
    optimize(max_iter = 20) until loss < 0.0001 {
        let loss = x * x;
        minimize loss;
    }
}`

func TestTables(t *testing.T) {
	m, err := compiler.CompileSource("table.noma", tableSource)
	require.NoError(t, err)
	result, err := compiler.Run(m, nil)
	require.NoError(t, err)

	results := ResultTable(result)
	assert.Contains(t, results, "optimize@4:5")
	assert.Contains(t, results, "MaxIterationsReached")
	assert.Contains(t, results, "20")

	values := ValuesTable(m, result)
	assert.Contains(t, values, "learn")
	assert.Contains(t, values, "scale")
	assert.Less(t, strings.Index(values, " x "), strings.Index(values, "scale"))

	module := ModuleTable(m)
	assert.Contains(t, module, "table.noma:4:5")
	assert.Contains(t, module, "lr=0.01, max_iter=20, trainables=x")

	graphTable := GraphTable(m.Loops()[0].Graph)
	assert.Contains(t, graphTable, "Variable x (learn)")
	assert.Contains(t, graphTable, "Mul")
	assert.Contains(t, graphTable, "#0, #0")
	assert.Contains(t, graphTable, "Constant 0.0001")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "1.23ms", FormatDuration(1234567*time.Nanosecond))
	assert.Equal(t, "12.35µs", FormatDuration(12345*time.Nanosecond))
	assert.Equal(t, "500ns", FormatDuration(500*time.Nanosecond))
}

func TestProgressBar(t *testing.T) {
	m, err := compiler.CompileSource("progress.noma", tableSource)
	require.NoError(t, err)
	var out bytes.Buffer
	var extraCalls int
	opts := compiler.NewOptions().WithLoopHook(func(step *compiler.LoopStep, loop *train.Loop) {
		attachProgressBar(loop, &out, step.Trainables, func() (string, string) {
			extraCalls++
			return "extra", "value"
		})
	})
	result, err := compiler.Run(m, opts)
	require.NoError(t, err)
	require.Len(t, result.Loops, 1)

	got := out.String()
	assert.Contains(t, got, "Iteration")
	assert.Contains(t, got, "20 of 20")
	assert.Contains(t, got, "Median iteration duration")
	assert.Contains(t, got, "extra")
	assert.Contains(t, got, "optimize@4:5: MaxIterationsReached after 20 iterations\n")
	assert.Positive(t, extraCalls)
}

func TestProgressBarFailedLoop(t *testing.T) {
	m, err := compiler.CompileSource("progress.noma", tableSource)
	require.NoError(t, err)
	var out bytes.Buffer
	opts := compiler.NewOptions().WithLoopHook(func(step *compiler.LoopStep, loop *train.Loop) {
		attachProgressBar(loop, &out, step.Trainables)
		loop.OnStep("interrupt", 0, func(loop *train.Loop, _ float64) error {
			if loop.Iteration == 5 {
				return errors.New("interrupted")
			}
			return nil
		})
	})
	_, err = compiler.Run(m, opts)
	require.ErrorContains(t, err, "interrupted")
	// The bar is closed, and its drawing goroutine finished, before Run returns.
	assert.Contains(t, out.String(), "optimize@4:5: Failed after 5 iterations\n")
}

func TestProgressBarUpdateCadence(t *testing.T) {
	m, err := compiler.CompileSource("cadence.noma", "fn main() {\n    learn x = 5.0;\n    optimize(max_iter = 1000) { minimize x * x; }\n}")
	require.NoError(t, err)
	var out bytes.Buffer
	var pBar *progressBar
	opts := compiler.NewOptions().WithLoopHook(func(step *compiler.LoopStep, loop *train.Loop) {
		pBar = attachProgressBar(loop, &out, step.Trainables)
	})
	start := time.Now()
	_, err = compiler.Run(m, opts)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1,000 of 1,000")
	// The first iteration, at most one per maxUpdateFrequency, and the final one.
	assert.LessOrEqual(t, pBar.numUpdates, 2+int(elapsed/maxUpdateFrequency))
	assert.GreaterOrEqual(t, pBar.numUpdates, 2)
}
