// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/ml/train"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ExtraValueFn is any function that will give extra values to display along the progress bar.
// It is called at each update of the progress bar, and it should return a name and the current value.
type ExtraValueFn func() (name, value string)

// RefreshPeriod is the maximum time between terminal updates.
var RefreshPeriod = time.Second

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressBarName is the name of the hooks registered by AttachProgressBar.
const ProgressBarName = "noma.ui.commandline.progressBar"

// maxUpdateFrequency is the minimum time between redraws of the statistics table.
const maxUpdateFrequency = time.Millisecond * 200

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
)

// progressBar holds a progress bar being displayed, and the table of statistics above it.
type progressBar struct {
	out            io.Writer
	trainables     []string
	extraValueFns  []ExtraValueFn
	lastIteration  int
	lastUpdate     time.Time
	finalDrawn     bool
	numUpdates     int
	bar            *progressbar.ProgressBar
	termenv        *termenv.Output
	statsStyle     lipgloss.Style
	statsTable     *lgtable.Table
	linesToRewrite int

	updates          chan progressBarUpdate
	asyncUpdatesDone sync.WaitGroup
}

// progressBarUpdate is a snapshot of the loop, taken in the loop goroutine and drawn asynchronously.
type progressBarUpdate struct {
	amount int
	rows   [][2]string
}

// AttachProgressBar creates a progress bar, written to the standard error, and attaches it to the loop.
// Above the bar, a table shows the iteration, the loss, the median iteration duration and the current
// value of the given trainable variables.
//
// Optionally, one can provide extraValues: functions that are called at every update of the progress bar
// and should return a name and a value to be included in the table.
func AttachProgressBar(loop *train.Loop, trainables []string, extraValues ...ExtraValueFn) {
	attachProgressBar(loop, os.Stderr, trainables, extraValues...)
}

// ProgressBarHook returns a compiler.LoopHook that attaches a progress bar to every loop of a run.
func ProgressBarHook() compiler.LoopHook {
	return func(step *compiler.LoopStep, loop *train.Loop) {
		AttachProgressBar(loop, step.Trainables)
	}
}

func attachProgressBar(loop *train.Loop, out io.Writer, trainables []string, extraValues ...ExtraValueFn) *progressBar {
	pBar := &progressBar{
		out:           out,
		trainables:    trainables,
		extraValueFns: extraValues,
		termenv:       termenv.NewOutput(out),
		statsStyle:    lipgloss.NewStyle().PaddingLeft(8),
		statsTable: lgtable.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if col == 0 {
					return rightAlignedStyle
				}
				return normalStyle
			}),
	}
	loop.OnStart(ProgressBarName, 0, pBar.onStart)
	// Update at least 1000 times during the loop or at least every RefreshPeriod.
	train.NTimesDuringLoop(loop, 1000, ProgressBarName, 0, pBar.onStep)
	train.PeriodicCallback(loop, RefreshPeriod, false, ProgressBarName, 0, pBar.onStep)
	loop.OnEnd(ProgressBarName, 0, pBar.onEnd)
	return pBar
}

func (pBar *progressBar) onStart(loop *train.Loop) error {
	pBar.lastIteration = loop.Iteration
	pBar.lastUpdate = time.Time{}
	pBar.finalDrawn = false
	pBar.linesToRewrite = 0
	pBar.bar = progressbar.NewOptions(loop.MaxIterations,
		progressbar.OptionSetDescription(fmt.Sprintf("      [bold]%s[reset] ", loop.Name)),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("iterations"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar.out),
	)
	pBar.updates = make(chan progressBarUpdate, 100) // Large buffer so the loop is not blocked by the terminal.
	pBar.asyncUpdatesDone.Add(1)
	go pBar.drawUpdates()
	return nil
}

func (pBar *progressBar) onStep(loop *train.Loop, loss float64) error {
	amount := loop.Iteration - pBar.lastIteration
	if amount <= 0 && loop.State == train.StateRunning {
		// Nothing to update.
		return nil
	}
	if loop.State == train.StateRunning && time.Since(pBar.lastUpdate) < maxUpdateFrequency {
		// The skipped iterations are included in the next update.
		return nil
	}
	select {
	case pBar.updates <- pBar.snapshot(loop, amount, loss):
		pBar.numUpdates++
		pBar.lastIteration = loop.Iteration
		pBar.lastUpdate = time.Now()
		pBar.finalDrawn = loop.State != train.StateRunning
	default:
		// Drawing is behind: never block the loop.
	}
	return nil
}

func (pBar *progressBar) snapshot(loop *train.Loop, amount int, loss float64) progressBarUpdate {
	update := progressBarUpdate{amount: amount}
	update.rows = append(update.rows,
		[2]string{"Iteration", fmt.Sprintf("%s of %s", humanize.Comma(int64(loop.Iteration)), humanize.Comma(int64(loop.MaxIterations)))},
		[2]string{"Loss", compiler.FormatValue(loss)},
		[2]string{"Median iteration duration", FormatDuration(loop.MedianStepDuration())})
	for _, name := range pBar.trainables {
		update.rows = append(update.rows, [2]string{name, compiler.FormatValue(loop.Values[name])})
	}
	for _, fn := range pBar.extraValueFns {
		name, value := fn()
		update.rows = append(update.rows, [2]string{name, value})
	}
	return update
}

// drawUpdates draws the updates as they arrive, at most every maxUpdateFrequency, until the channel is closed.
func (pBar *progressBar) drawUpdates() {
	defer pBar.asyncUpdatesDone.Done()
	for update := range pBar.updates {
		// Exhaust the updates in the buffer: only the last one is drawn.
		amount := update.amount
	exhaust:
		for {
			select {
			case newUpdate, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				amount += newUpdate.amount
				update = newUpdate
			default:
				break exhaust
			}
		}

		pBar.statsTable.Data(lgtable.NewStringData())
		for _, row := range update.rows {
			pBar.statsTable.Row(row[0], row[1])
		}
		rendered := pBar.statsStyle.Render(pBar.statsTable.String())

		pBar.termenv.HideCursor()
		if pBar.linesToRewrite > 0 {
			pBar.termenv.CursorPrevLine(pBar.linesToRewrite)
		}
		_, _ = fmt.Fprintln(pBar.out, rendered)
		_ = pBar.bar.Add(amount) // Prints progress bar line.
		_, _ = fmt.Fprintln(pBar.out)
		pBar.linesToRewrite = strings.Count(rendered, "\n") + 2
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}

func (pBar *progressBar) onEnd(loop *train.Loop) error {
	if !pBar.finalDrawn || loop.Iteration > pBar.lastIteration {
		pBar.updates <- pBar.snapshot(loop, loop.Iteration-pBar.lastIteration, loop.Loss)
		pBar.numUpdates++
		pBar.lastIteration = loop.Iteration
	}
	close(pBar.updates)
	pBar.asyncUpdatesDone.Wait()
	pBar.termenv.ShowCursor()
	_, _ = fmt.Fprintf(pBar.out, "%s: %s after %s iterations\n", loop.Name, loop.State,
		humanize.Comma(int64(loop.Iteration)))
	return nil
}

// FormatDuration pretty prints duration keeping at most 2 decimal places of its largest unit.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	case d >= time.Microsecond:
		return d.Round(10 * time.Nanosecond).String()
	}
	return d.String()
}
