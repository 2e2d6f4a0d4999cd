// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/noma/compiler"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoLoops = `fn main() {
    learn x = 5.0;
    optimize(max_iter = 20) {
        minimize x * x;
    }
    learn y = 1.0;
    optimize until loss < 0.5 {
        let loss = y * y;
        minimize loss;
    }
}`

func runWithHistory(t *testing.T, src string, h *History) *compiler.Result {
	m, err := compiler.CompileSource("plots.noma", src)
	require.NoError(t, err)
	result, err := compiler.Run(m, compiler.NewOptions().WithLoopHook(h.Hook()))
	require.NoError(t, err)
	return result
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	result := runWithHistory(t, twoLoops, h)
	require.Len(t, result.Loops, 2)
	assert.Equal(t, []string{"optimize@3:5", "optimize@7:5"}, h.Loops())

	first := h.LoopPoints("optimize@3:5")
	require.Len(t, first, 20)
	assert.Equal(t, 0, first[0].Iteration)
	assert.Equal(t, 25.0, first[0].Loss)
	assert.Equal(t, 19, first[19].Iteration)

	// The converging iteration is recorded, at the number of updates executed before it.
	second := h.LoopPoints("optimize@7:5")
	last := second[len(second)-1]
	assert.Equal(t, result.Loops[1].Iterations, last.Iteration)
	assert.Equal(t, result.Loops[1].Loss, last.Loss)
	assert.Less(t, last.Loss, 0.5)
	assert.Len(t, second, result.Loops[1].Iterations+1)
}

func TestHistoryMaxPoints(t *testing.T) {
	h := &History{MaxPointsPerLoop: 5}
	runWithHistory(t, `fn main() {
		learn x = 5.0;
		optimize(max_iter = 100) { minimize x * x; }
	}`, h)
	assert.LessOrEqual(t, len(h.Points), 6)
	// The last iteration is always collected.
	assert.Equal(t, 99, h.Points[len(h.Points)-1].Iteration)
}

func TestSample(t *testing.T) {
	points := make([]Point, 10)
	for ii := range points {
		points[ii].Iteration = ii
	}
	iterations := func(points []Point) (its []int) {
		for _, p := range points {
			its = append(its, p.Iteration)
		}
		return
	}
	assert.Equal(t, []int{0, 5, 9}, iterations(sample(points, 3)))
	assert.Equal(t, []int{0, 9}, iterations(sample(points, 2)))
	assert.Equal(t, []int{9}, iterations(sample(points, 1)))
	assert.Len(t, sample(points, 0), 10)
	assert.Len(t, sample(points, 20), 10)
}

func TestSaveLossCurve(t *testing.T) {
	h := NewHistory()
	runWithHistory(t, twoLoops, h)
	dir := t.TempDir()
	for _, name := range []string{"loss.png", "loss.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, h.SaveLossCurve(path, "Loss"))
		info := must.M1(os.Stat(path))
		assert.Positive(t, info.Size())
	}
	svg := string(must.M1(os.ReadFile(filepath.Join(dir, "loss.svg"))))
	assert.Contains(t, svg, "<svg")

	// Nothing to plot.
	require.Error(t, NewHistory().SaveLossCurve(filepath.Join(dir, "empty.png"), "Empty"))
}

func TestSaveAndLoadPoints(t *testing.T) {
	h := NewHistory()
	runWithHistory(t, twoLoops, h)
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, h.SavePoints(path))
	lines := strings.Count(string(must.M1(os.ReadFile(path))), "\n")
	assert.Equal(t, len(h.Points), lines)

	loaded, err := LoadPoints(path)
	require.NoError(t, err)
	assert.Equal(t, h.Points, loaded.Points)

	_, err = LoadPoints(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestTable(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	h := NewHistory()
	runWithHistory(t, twoLoops, h)
	table := h.Table(3)
	assert.Contains(t, table, "Iteration")
	assert.Contains(t, table, "optimize@3:5")
	assert.Contains(t, table, "optimize@7:5")
	// 3 rows per loop.
	assert.Equal(t, 6, strings.Count(table, "optimize@"))
	assert.Contains(t, table, " 25 ")

	// Only the last iteration of each loop.
	var last string
	require.NotPanics(t, func() { last = h.Table(1) })
	assert.Equal(t, 2, strings.Count(last, "optimize@"))
}
