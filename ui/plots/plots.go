// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots collects the loss history of optimize loops, and plots it, saves it or renders it as a table.
package plots

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/ml/train"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// Point represents the loss of one iteration of a loop. It is used to save/load the history.
type Point struct {
	// Loop name.
	Loop string

	// Iteration is the number of updates executed before the forward pass that measured Loss.
	Iteration int

	Loss float64
}

// DefaultMaxPointsPerLoop is the default number of points collected per loop.
const DefaultMaxPointsPerLoop = 1000

// History of the loss of the loops of a run.
type History struct {
	Points []Point

	// MaxPointsPerLoop is the maximum number of points collected for each loop, evenly split
	// across its iterations. The loss of the last iteration is always collected.
	MaxPointsPerLoop int
}

// NewHistory returns an empty History, collecting at most DefaultMaxPointsPerLoop points per loop.
func NewHistory() *History {
	return &History{MaxPointsPerLoop: DefaultMaxPointsPerLoop}
}

// HistoryHookName is the name of the hooks registered by Attach.
const HistoryHookName = "noma.ui.plots.History"

// Attach collects the loss of the loop in the history.
func (h *History) Attach(loop *train.Loop) {
	if h.MaxPointsPerLoop <= 0 {
		h.MaxPointsPerLoop = DefaultMaxPointsPerLoop
	}
	train.NTimesDuringLoop(loop, h.MaxPointsPerLoop, HistoryHookName, 0, func(loop *train.Loop, loss float64) error {
		iteration := loop.Iteration
		if loop.State == train.StateRunning {
			// The iteration updated the variables after measuring the loss.
			iteration--
		}
		h.Points = append(h.Points, Point{Loop: loop.Name, Iteration: iteration, Loss: loss})
		return nil
	})
}

// Hook returns a compiler.LoopHook that attaches the history to every loop of a run.
func (h *History) Hook() compiler.LoopHook {
	return func(_ *compiler.LoopStep, loop *train.Loop) {
		h.Attach(loop)
	}
}

// Loops returns the names of the loops in the history, in the order they first appear.
func (h *History) Loops() []string {
	var names []string
	for _, p := range h.Points {
		if !slices.Contains(names, p.Loop) {
			names = append(names, p.Loop)
		}
	}
	return names
}

// LoopPoints returns the points of the given loop.
func (h *History) LoopPoints(loop string) []Point {
	var points []Point
	for _, p := range h.Points {
		if p.Loop == loop {
			points = append(points, p)
		}
	}
	return points
}

// Plot returns a plot of the loss curves, one line per loop. If all losses are positive, the loss axis
// uses a logarithmic scale.
func (h *History) Plot(title string) (*plot.Plot, error) {
	if len(h.Points) == 0 {
		return nil, errors.New("no loss points to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Loss"
	p.Legend.Top = true

	allPositive := true
	var lines []any
	for _, loop := range h.Loops() {
		points := h.LoopPoints(loop)
		xys := make(plotter.XYs, len(points))
		for ii, pt := range points {
			xys[ii].X = float64(pt.Iteration)
			xys[ii].Y = pt.Loss
			allPositive = allPositive && pt.Loss > 0
		}
		lines = append(lines, loop, xys)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Wrap(err, "failed to create loss lines")
	}
	if allPositive {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	return p, nil
}

// SaveLossCurve plots the loss curves and saves them to path. The image format is taken from the file
// extension: e.g. ".png", ".svg" or ".pdf".
func (h *History) SaveLossCurve(path, title string) error {
	p, err := h.Plot(title)
	if err != nil {
		return err
	}
	if err = p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save loss curve to %q", path)
	}
	klog.V(1).Infof("saved loss curve of %d loops to %q", len(h.Loops()), path)
	return nil
}

// Table returns a table with the loss history, with at most maxRowsPerLoop rows per loop (the last
// iteration of each loop is always included). If maxRowsPerLoop <= 0 all points are included.
func (h *History) Table(maxRowsPerLoop int) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			if col == 1 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})
	table.Headers("Loop", "Iteration", "Loss")
	for _, loop := range h.Loops() {
		for _, pt := range sample(h.LoopPoints(loop), maxRowsPerLoop) {
			table.Row(pt.Loop, fmt.Sprintf("%d", pt.Iteration), compiler.FormatValue(pt.Loss))
		}
	}
	return table.String()
}

// sample returns at most n points evenly spaced, always including the last one.
func sample(points []Point, n int) []Point {
	if n <= 0 || len(points) <= n {
		return points
	}
	if n == 1 {
		return points[len(points)-1:]
	}
	sampled := make([]Point, 0, n)
	step := float64(len(points)-1) / float64(n-1)
	for ii := range n {
		sampled = append(sampled, points[int(float64(ii)*step+0.5)])
	}
	return sampled
}

// SavePoints writes the points to filePath, one JSON object per line.
func (h *History) SavePoints(filePath string) (err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create loss history file %q", filePath)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "failed to close loss history file %q", filePath)
		}
	}()
	enc := json.NewEncoder(f)
	for _, point := range h.Points {
		if err = enc.Encode(point); err != nil {
			return errors.Wrapf(err, "failed to encode point %v", point)
		}
	}
	return nil
}

// LoadPoints parses all points saved in the given file (see History.SavePoints).
func LoadPoints(filePath string) (*History, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read loss history file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	h := NewHistory()
	dec := json.NewDecoder(f)
	for {
		var point Point
		err := dec.Decode(&point)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error while decoding loss history file %q", filePath)
		}
		h.Points = append(h.Points, point)
	}
	return h, nil
}
