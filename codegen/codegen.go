// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package codegen translates a compiled Module into a standalone Go program, and builds it into a
// native executable with the Go toolchain.
//
// The generated program has no runtime dependencies beyond the Go standard library: every graph is
// unrolled into one local per node, every optimize loop becomes a Go `for` loop with its backward
// pass written out as statements. It computes the same values, in the same order, as the in-process
// runner (compiler.Run), prints its results the same way and reports the same diagnostics.
//
// Exit status of the generated program: 0 on success, 3 if a value is not finite.
package codegen

import (
	"go/format"
	"strings"
	"text/template"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/noma/compiler"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DivergenceExitCode is the exit status of a generated program when a value is not finite.
const DivergenceExitCode = 3

var programTemplate = template.Must(template.New("program").Parse(
	`// Code generated by noma from {{printf "%q" .Source}}. DO NOT EDIT.
// Build id: {{.BuildID}}

package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
)

{{- if .Variables}}

var (
{{- range .Variables}}
	{{.}} float64
{{- end}}
)
{{- end}}

func main() {
{{.Body -}}
{{- range .Learned}}
	fmt.Println({{printf "%q" .Name}} + " = " + format({{.Local}}))
{{- end}}
}

// checked returns value if it is finite, otherwise it reports the diagnostic and exits.
func checked(value float64, diagnostic string) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		fmt.Fprintln(os.Stderr, diagnostic+format(value))
		os.Exit({{.ExitCode}})
	}
	return value
}

// format returns the shortest representation of value that parses back to the same float64.
func format(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func positive(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
`))

type learnedVariable struct {
	Name, Local string
}

type programData struct {
	Source    string
	BuildID   string
	Variables []string
	Body      string
	Learned   []learnedVariable
	ExitCode  int
}

// Generate returns the gofmt-ed source of a Go program (package main) executing m.
func Generate(m *compiler.Module) ([]byte, error) {
	return generate(m, uuid.NewString())
}

func generate(m *compiler.Module, buildID string) (src []byte, err error) {
	data := programData{
		Source:   m.Name,
		BuildID:  buildID,
		ExitCode: DivergenceExitCode,
	}
	for _, v := range m.Variables {
		data.Variables = append(data.Variables, VariableName(v.Name))
	}
	err = TryCatch[error](func() {
		var body strings.Builder
		for _, step := range m.Steps {
			switch step := step.(type) {
			case *compiler.AssignStep:
				emitAssign(&body, step)
			case *compiler.LoopStep:
				emitLoop(&body, step)
			default:
				Panicf("code generation of step %T not supported", step)
			}
		}
		if m.Return != nil {
			emitReturn(&body, m.Return)
		}
		data.Body = body.String()
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to generate code for %q", m.Name)
	}
	if m.Return == nil {
		for _, name := range m.Learned() {
			data.Learned = append(data.Learned, learnedVariable{Name: name, Local: VariableName(name)})
		}
	}

	var sb strings.Builder
	if err = programTemplate.Execute(&sb, data); err != nil {
		return nil, errors.Wrapf(err, "failed to execute program template for %q", m.Name)
	}
	src, err = format.Source([]byte(sb.String()))
	if err != nil {
		klog.Errorf("generated source for %q:\n%s", m.Name, sb.String())
		return nil, errors.Wrapf(err, "generated invalid Go source for %q", m.Name)
	}
	klog.V(1).Infof("generated %d bytes of Go for %q (build id %s)", len(src), m.Name, buildID)
	return src, nil
}
