// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// noma compiles NOMA programs into native executables, or runs them in-process.
//
// Usage:
//
//	noma [-v=N] <command> [flags] file.noma
//
// Commands:
//
//	build    compile file.noma into a native executable.
//	run      run file.noma in-process and print its results.
//	check    parse and lower one or more files, reporting any diagnostics.
//	emit     print the Go source generated for file.noma.
//	plot     print and plot a loss history saved by "run -history".
//	version  print the version of noma.
//
// The exit status is 0 on success and 1 if there are diagnostics or the command fails.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"k8s.io/klog/v2"
)

// Exit status of the command.
const (
	exitOK      = 0
	exitFailure = 1
)

// command is a subcommand of noma: it parses its own flags from args and returns the exit status.
type command struct {
	name, usage string
	run         func(env *environment, args []string) int
}

const (
	buildUsage = "[-o out] [-tokens] [-ast] [-graph] [-keep] [-timeout=d] file.noma"
	runUsage   = "[-progress] [-plot=loss.png] [-history=loss.jsonl] [-summary] file.noma"
	checkUsage = "[-parallelism=n] file.noma..."
	fileUsage  = "file.noma"
	plotUsage  = "[-o loss.png] [-title=t] [-rows=n] loss.jsonl"
)

var commands = []command{
	{"build", buildUsage, buildCommand},
	{"run", runUsage, runCommand},
	{"check", checkUsage, checkCommand},
	{"emit", fileUsage, emitCommand},
	{"plot", plotUsage, plotCommand},
	{"version", "", versionCommand},
}

// environment of a command invocation: where it writes its output and diagnostics.
type environment struct {
	stdout, stderr io.Writer
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()
	defer klog.Flush()
	os.Exit(execute(&environment{stdout: os.Stdout, stderr: os.Stderr}, flag.Args()))
}

// execute runs the command named by args[0] and returns the exit status.
func execute(env *environment, args []string) int {
	if len(args) == 0 {
		usage(env.stderr)
		return exitFailure
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(env, args[1:])
		}
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "-help" {
		usage(env.stdout)
		return exitOK
	}
	_, _ = fmt.Fprintf(env.stderr, "noma: unknown command %q\n", args[0])
	usage(env.stderr)
	return exitFailure
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Usage: noma [-v=N] <command> [flags] file.noma\n\nCommands:\n")
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.usage)
	}
	_, _ = fmt.Fprintf(w, "\nRun 'noma <command> -h' for the flags of a command.\n")
}
