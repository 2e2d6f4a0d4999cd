// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gomlx/noma/codegen"
	"github.com/gomlx/noma/compiler"
	"github.com/gomlx/noma/internal/workerspool"
	"github.com/gomlx/noma/lang"
	"github.com/gomlx/noma/ui/commandline"
	"github.com/gomlx/noma/ui/plots"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Version of noma, set at link time with -ldflags="-X main.Version=...".
var Version = ""

// newFlagSet creates the flag set of a command, reporting to env.stderr.
func (env *environment) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(env.stderr, "Usage: noma %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses the flags of a command and returns its single source file argument.
func (env *environment) parseArgs(fs *flag.FlagSet, args []string) (string, bool) {
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	switch fs.NArg() {
	case 0:
		_, _ = fmt.Fprintf(env.stderr, "noma %s: missing source file\n", fs.Name())
	case 1:
		return fs.Arg(0), true
	default:
		_, _ = fmt.Fprintf(env.stderr, "noma %s: too many arguments: %q\n", fs.Name(), fs.Args())
	}
	fs.Usage()
	return "", false
}

// fail reports err, with the offending source line if it is a diagnostic, and returns exitFailure.
func (env *environment) fail(err error, src string) int {
	_, _ = fmt.Fprintln(env.stderr, commandline.FormatDiagnostic(err, src))
	return exitFailure
}

// source of a program being compiled.
type source struct {
	path, text string
	program    *lang.Program
	module     *compiler.Module
}

// load reads, parses and lowers the program in path.
func (env *environment) load(path string) (*source, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, env.fail(errors.Wrapf(err, "failed to read source %q", path), "")
	}
	s := &source{path: path, text: string(data)}
	s.program, err = lang.Parse(path, s.text)
	if err != nil {
		return nil, env.fail(err, s.text)
	}
	s.module, err = compiler.Compile(s.program)
	if err != nil {
		return nil, env.fail(err, s.text)
	}
	klog.V(1).Infof("compiled %q: %d variables, %d steps", path, len(s.module.Variables), len(s.module.Steps))
	return s, exitOK
}

func buildCommand(env *environment, args []string) int {
	fs := env.newFlagSet("build", buildUsage)
	outPath := fs.String("o", "", "Path of the executable. Defaults to the source file name without the .noma extension.")
	dumpTokens := fs.Bool("tokens", false, "Print the tokens of the source.")
	dumpAST := fs.Bool("ast", false, "Print the parsed program, in canonical form.")
	dumpGraph := fs.Bool("graph", false, "Print the steps of the lowered program and the nodes of their graphs.")
	keep := fs.Bool("keep", false, "Keep the temporary directory with the generated Go module.")
	timeout := fs.Duration("timeout", 0, "Maximum duration of the Go toolchain build. 0 means no limit.")
	goBinary := fs.String("go", "", fmt.Sprintf("Go toolchain binary. Defaults to $%s or \"go\".", codegen.GoBinaryEnv))
	path, ok := env.parseArgs(fs, args)
	if !ok {
		return exitFailure
	}

	if *dumpTokens {
		data, err := os.ReadFile(path)
		if err != nil {
			return env.fail(errors.Wrapf(err, "failed to read source %q", path), "")
		}
		tokens, err := lang.Tokenize(path, string(data))
		if err != nil {
			return env.fail(err, string(data))
		}
		for _, tok := range tokens {
			_, _ = fmt.Fprintln(env.stdout, tok)
		}
	}
	s, status := env.load(path)
	if status != exitOK {
		return status
	}
	if *dumpAST {
		_, _ = fmt.Fprint(env.stdout, s.program)
	}
	if *dumpGraph {
		printGraphs(env, s.module)
	}

	if *outPath == "" {
		*outPath = strings.TrimSuffix(path, filepath.Ext(path))
		if *outPath == path {
			*outPath = path + ".out"
		}
	}
	opts := codegen.NewOptions().WithKeepWorkDir(*keep).WithTimeout(*timeout).WithGoBinary(*goBinary)
	report, err := codegen.Build(context.Background(), s.module, *outPath, opts)
	if err != nil {
		return env.fail(err, s.text)
	}
	_, _ = fmt.Fprintln(env.stderr, report)
	return exitOK
}

func printGraphs(env *environment, m *compiler.Module) {
	_, _ = fmt.Fprintln(env.stdout, commandline.TitleStyle.Render(fmt.Sprintf("Module %q", m.Name)))
	_, _ = fmt.Fprintln(env.stdout, commandline.ModuleTable(m))
	for _, step := range m.Steps {
		var title string
		switch step := step.(type) {
		case *compiler.AssignStep:
			title = fmt.Sprintf("%s: %s", step.Pos, step.Graph.Name())
			_, _ = fmt.Fprintln(env.stdout, commandline.TitleStyle.Render(title))
			_, _ = fmt.Fprintln(env.stdout, commandline.GraphTable(step.Graph))
		case *compiler.LoopStep:
			title = fmt.Sprintf("%s: %s (loss #%d)", step.Pos, step.Name, step.Loss)
			_, _ = fmt.Fprintln(env.stdout, commandline.TitleStyle.Render(title))
			_, _ = fmt.Fprintln(env.stdout, commandline.GraphTable(step.Graph))
		}
	}
	if m.Return != nil {
		_, _ = fmt.Fprintln(env.stdout, commandline.TitleStyle.Render(fmt.Sprintf("%s: return", m.Return.Pos)))
		_, _ = fmt.Fprintln(env.stdout, commandline.GraphTable(m.Return.Graph))
	}
}

// summaryLossRows is the number of loss history rows per loop printed by "run -summary".
const summaryLossRows = 10

func runCommand(env *environment, args []string) int {
	fs := env.newFlagSet("run", runUsage)
	progress := fs.Bool("progress", false, "Display a progress bar for each optimize loop, on the standard error.")
	plotPath := fs.String("plot", "", "Save the loss curves of the optimize loops to this file (.png, .svg or .pdf).")
	historyPath := fs.String("history", "", "Save the loss history of the optimize loops to this file, one JSON object per line.")
	summary := fs.Bool("summary", false, "Print the outcome of the loops, a sample of their loss history and the final value of every variable, on the standard error.")
	traceEvery := fs.Int("trace_every", 0, "Log the loss and trainable variables every n iterations, with -v=1.")
	path, ok := env.parseArgs(fs, args)
	if !ok {
		return exitFailure
	}
	s, status := env.load(path)
	if status != exitOK {
		return status
	}

	opts := compiler.NewOptions().WithTraceEvery(*traceEvery)
	if *progress {
		opts.WithLoopHook(commandline.ProgressBarHook())
	}
	var history *plots.History
	if *plotPath != "" || *historyPath != "" || *summary {
		history = plots.NewHistory()
		opts.WithLoopHook(history.Hook())
	}
	start := time.Now()
	result, err := compiler.Run(s.module, opts)
	if err != nil {
		return env.fail(err, s.text)
	}
	klog.V(1).Infof("ran %q in %s", path, commandline.FormatDuration(time.Since(start)))
	for _, line := range result.Output() {
		_, _ = fmt.Fprintln(env.stdout, line)
	}

	if *summary {
		if len(result.Loops) > 0 {
			_, _ = fmt.Fprintln(env.stderr, commandline.ResultTable(result))
			_, _ = fmt.Fprintln(env.stderr, history.Table(summaryLossRows))
		}
		_, _ = fmt.Fprintln(env.stderr, commandline.ValuesTable(s.module, result))
	}
	if *plotPath != "" {
		if err = history.SaveLossCurve(*plotPath, fmt.Sprintf("Loss of %s", filepath.Base(path))); err != nil {
			return env.fail(err, "")
		}
	}
	if *historyPath != "" {
		if err = history.SavePoints(*historyPath); err != nil {
			return env.fail(err, "")
		}
	}
	return exitOK
}

func plotCommand(env *environment, args []string) int {
	fs := env.newFlagSet("plot", plotUsage)
	outPath := fs.String("o", "", "Save the loss curves to this file (.png, .svg or .pdf).")
	title := fs.String("title", "", "Title of the plot. Defaults to the name of the history file.")
	rows := fs.Int("rows", summaryLossRows, "Maximum number of rows per loop of the printed table. 0 prints every point.")
	path, ok := env.parseArgs(fs, args)
	if !ok {
		return exitFailure
	}
	history, err := plots.LoadPoints(path)
	if err != nil {
		return env.fail(err, "")
	}
	klog.V(1).Infof("loaded %d points of %d loops from %q", len(history.Points), len(history.Loops()), path)
	if len(history.Points) == 0 {
		return env.fail(errors.Errorf("no loss points in %q", path), "")
	}
	_, _ = fmt.Fprintln(env.stdout, history.Table(*rows))
	if *outPath != "" {
		if *title == "" {
			*title = fmt.Sprintf("Loss of %s", filepath.Base(path))
		}
		if err = history.SaveLossCurve(*outPath, *title); err != nil {
			return env.fail(err, "")
		}
	}
	return exitOK
}

// checkReport holds the output of checking one file, written once all files are checked.
type checkReport struct {
	stdout, stderr bytes.Buffer
	status         int
}

func checkCommand(env *environment, args []string) int {
	fs := env.newFlagSet("check", checkUsage)
	parallelism := fs.Int("parallelism", runtime.NumCPU(), "Maximum number of files checked at the same time.")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() == 0 {
		_, _ = fmt.Fprintln(env.stderr, "noma check: missing source file")
		fs.Usage()
		return exitFailure
	}

	// Compilations share no state, so files are checked concurrently.
	pool := workerspool.New().WithMaxParallelism(*parallelism)
	reports := workerspool.Map(pool, fs.NArg(), func(ii int) *checkReport {
		r := &checkReport{}
		fileEnv := &environment{stdout: &r.stdout, stderr: &r.stderr}
		path := fs.Arg(ii)
		s, status := fileEnv.load(path)
		if status == exitOK {
			_, _ = fmt.Fprintf(&r.stdout, "%s: ok (%d variables, %d steps, %d loops)\n", path,
				len(s.module.Variables), len(s.module.Steps), len(s.module.Loops()))
		}
		r.status = status
		return r
	})
	status := exitOK
	for _, r := range reports {
		_, _ = env.stdout.Write(r.stdout.Bytes())
		_, _ = env.stderr.Write(r.stderr.Bytes())
		status = max(status, r.status)
	}
	return status
}

func emitCommand(env *environment, args []string) int {
	fs := env.newFlagSet("emit", fileUsage)
	path, ok := env.parseArgs(fs, args)
	if !ok {
		return exitFailure
	}
	s, status := env.load(path)
	if status != exitOK {
		return status
	}
	src, err := codegen.Generate(s.module)
	if err != nil {
		return env.fail(err, s.text)
	}
	_, _ = env.stdout.Write(src)
	return exitOK
}

func versionCommand(env *environment, args []string) int {
	fs := env.newFlagSet("version", "")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	version := Version
	if version == "" {
		version = "(devel)"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	_, _ = fmt.Fprintf(env.stdout, "noma %s %s/%s (%s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	return exitOK
}
