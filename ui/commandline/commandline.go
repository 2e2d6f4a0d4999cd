// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains the terminal rendering used by the noma command: diagnostics with the
// offending source line, tables of results and graphs, and a progress bar for optimize loops.
package commandline

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/graph"
	"github.com/gomlx/noma/lang"
)

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).Bold(true)
	positionStyle = lipgloss.NewStyle().Bold(true)
	gutterStyle   = lipgloss.NewStyle().Faint(true)
	caretStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"})

	TitleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	tableBorderColor = "99"
)

// NewTable returns a table with rounded borders and alternating row styles. The first column is right aligned.
func NewTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		Headers(headers...).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			}
			return
		})
}

// FormatDiagnostic renders err for the terminal. If err is a *lang.Error located in src, the offending
// source line is included, with a caret under the offending column.
func FormatDiagnostic(err error, src string) string {
	e, ok := lang.AsError(err)
	if !ok {
		return errorStyle.Render("error:") + " " + err.Error()
	}
	var sb strings.Builder
	sb.WriteString(positionStyle.Render(e.Pos.String() + ":"))
	sb.WriteString(" ")
	sb.WriteString(errorStyle.Render(e.Kind.String() + ":"))
	sb.WriteString(" ")
	sb.WriteString(e.Msg)
	if wrapped := err.Error(); wrapped != e.Error() {
		// Context added by wrapping, e.g. the loop that failed.
		fmt.Fprintf(&sb, "\n  (%s)", wrapped)
	}
	line, found := sourceLine(src, e.Pos.Line)
	if !e.Pos.IsValid() || !found {
		return sb.String()
	}
	gutter := fmt.Sprintf("%4d |", e.Pos.Line)
	sb.WriteString("\n")
	sb.WriteString(gutterStyle.Render(gutter))
	sb.WriteString(" ")
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", len(gutter)+1))
	sb.WriteString(caretPadding(line, e.Pos.Column))
	sb.WriteString(caretStyle.Render("^"))
	return sb.String()
}

// sourceLine returns the given 1-based line of src, without the line break.
func sourceLine(src string, line int) (string, bool) {
	if line <= 0 {
		return "", false
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[line-1], "\r"), true
}

// caretPadding returns the whitespace that aligns a caret under the given 1-based column (counted in runes)
// of line, keeping tabs so the alignment holds regardless of the tab width.
func caretPadding(line string, column int) string {
	var sb strings.Builder
	col := 1
	for _, r := range line {
		if col >= column {
			break
		}
		if r == '\t' {
			sb.WriteRune('\t')
		} else {
			sb.WriteRune(' ')
		}
		col++
	}
	return sb.String()
}

// ResultTable renders the outcome of each loop of a run.
func ResultTable(result *compiler.Result) string {
	table := NewTable("Loop", "State", "Iterations", "Final loss")
	for _, loop := range result.Loops {
		table.Row(loop.Name, loop.State.String(), humanize.Comma(int64(loop.Iterations)), compiler.FormatValue(loop.Loss))
	}
	return table.String()
}

// ValuesTable renders the final value of the variables of the module, in declaration order.
func ValuesTable(m *compiler.Module, result *compiler.Result) string {
	table := NewTable("Variable", "Kind", "Value")
	for _, v := range m.Variables {
		kind := "let"
		if v.Trainable {
			kind = "learn"
		}
		table.Row(v.Name, kind, compiler.FormatValue(result.Values[v.Name]))
	}
	return table.String()
}

// ModuleTable summarizes the steps of a module.
func ModuleTable(m *compiler.Module) string {
	table := NewTable("Position", "Step", "Nodes", "Details")
	for _, step := range m.Steps {
		switch step := step.(type) {
		case *compiler.AssignStep:
			table.Row(step.Pos.String(), step.Graph.Name(), humanize.Comma(int64(step.Graph.NumNodes())), "")
		case *compiler.LoopStep:
			details := fmt.Sprintf("lr=%s, max_iter=%s, trainables=%s",
				compiler.FormatValue(step.LearningRate), humanize.Comma(int64(step.MaxIterations)),
				strings.Join(step.Trainables, ","))
			if step.Predicate == graph.InvalidNodeId {
				details += ", no convergence predicate"
			}
			table.Row(step.Pos.String(), step.Name, humanize.Comma(int64(step.Graph.NumNodes())), details)
		}
	}
	if m.Return != nil {
		table.Row(m.Return.Pos.String(), "return", humanize.Comma(int64(m.Return.Graph.NumNodes())), "")
	}
	return table.String()
}

// GraphTable renders the nodes of a graph, one per row, in topological (id) order.
func GraphTable(g *graph.Graph) string {
	table := NewTable("#", "Op", "Inputs", "Position")
	for _, node := range g.Nodes() {
		var op string
		switch node.Type() {
		case graph.NodeTypeConstant:
			op = "Constant " + compiler.FormatValue(node.ConstValue())
		case graph.NodeTypeVariable:
			op = "Variable " + node.VariableName()
			if node.IsTrainable() {
				op += " (learn)"
			}
		default:
			op = node.Type().String()
		}
		inputs := make([]string, len(node.Inputs()))
		for ii, input := range node.Inputs() {
			inputs[ii] = fmt.Sprintf("#%d", input)
		}
		pos := ""
		if node.Pos().IsValid() {
			pos = node.Pos().String()
		}
		table.Row(fmt.Sprintf("%d", node.Id()), op, strings.Join(inputs, ", "), pos)
	}
	return table.String()
}
