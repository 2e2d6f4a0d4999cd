// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package codegen

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/noma/compiler"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GoBinaryEnv is the environment variable that selects the Go toolchain binary used by Build.
const GoBinaryEnv = "NOMA_GO"

// Options for Build.
type Options struct {
	goBinary string
	buildID  string
	keepDir  bool
	timeout  time.Duration
}

// NewOptions returns the default build options: the Go binary is taken from $NOMA_GO, or "go" from the PATH.
func NewOptions() *Options {
	return &Options{}
}

// WithGoBinary sets the Go toolchain binary to use. It takes precedence over $NOMA_GO.
// It returns the updated Options, so calls can be cascaded.
func (o *Options) WithGoBinary(path string) *Options {
	o.goBinary = path
	return o
}

// WithBuildID sets the build id stamped in the generated source. By default a random UUID is used.
func (o *Options) WithBuildID(id string) *Options {
	o.buildID = id
	return o
}

// WithKeepWorkDir keeps the temporary module with the generated source after the build, for inspection.
// Its location is reported in BuildReport.WorkDir.
func (o *Options) WithKeepWorkDir(keep bool) *Options {
	o.keepDir = keep
	return o
}

// WithTimeout bounds the duration of the `go build` invocation. 0 (the default) means no timeout,
// other than the one of the context given to Build.
func (o *Options) WithTimeout(timeout time.Duration) *Options {
	o.timeout = timeout
	return o
}

// GoBinary returns the Go toolchain binary that will be used.
func (o *Options) GoBinary() string {
	if o.goBinary != "" {
		return o.goBinary
	}
	if env := os.Getenv(GoBinaryEnv); env != "" {
		return env
	}
	return "go"
}

// BuildReport describes a successful build.
type BuildReport struct {
	OutPath    string
	BuildID    string
	SourceSize int
	BinarySize int64
	Elapsed    time.Duration

	// WorkDir is the temporary module directory, if it was kept.
	WorkDir string
}

// String implements fmt.Stringer.
func (r *BuildReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "built %s (%s, from %s of Go) in %s", r.OutPath, humanize.Bytes(uint64(r.BinarySize)),
		humanize.Bytes(uint64(r.SourceSize)), r.Elapsed.Round(time.Millisecond))
	if r.WorkDir != "" {
		fmt.Fprintf(&sb, ", sources kept in %s", r.WorkDir)
	}
	return sb.String()
}

// Build generates the Go program for m and compiles it into a native executable at outPath.
//
// The program is written to a temporary module, built with `go build -trimpath`, and the module is
// removed afterwards (see Options.WithKeepWorkDir). Nothing is written to outPath if generation or
// compilation fails. ctx bounds the external `go build` process.
func Build(ctx context.Context, m *compiler.Module, outPath string, opts *Options) (*BuildReport, error) {
	if opts == nil {
		opts = NewOptions()
	}
	start := time.Now()
	report := &BuildReport{BuildID: opts.buildID}
	if report.BuildID == "" {
		report.BuildID = uuid.NewString()
	}
	src, err := generate(m, report.BuildID)
	if err != nil {
		return nil, err
	}
	report.SourceSize = len(src)

	report.OutPath, err = filepath.Abs(outPath)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid output path %q", outPath)
	}
	goBinary, err := exec.LookPath(opts.GoBinary())
	if err != nil {
		return nil, errors.Wrapf(err, "Go toolchain %q not found, set $%s or install Go", opts.GoBinary(), GoBinaryEnv)
	}

	workDir, err := os.MkdirTemp("", "noma-build-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary build directory")
	}
	if opts.keepDir {
		report.WorkDir = workDir
	} else {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				klog.Warningf("failed to remove temporary build directory %q: %v", workDir, err)
			}
		}()
	}
	goMod := fmt.Sprintf("module noma.build/%s\n\ngo 1.21\n", report.BuildID)
	if err = os.WriteFile(filepath.Join(workDir, "go.mod"), []byte(goMod), 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write go.mod")
	}
	if err = os.WriteFile(filepath.Join(workDir, "main.go"), src, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write main.go")
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, goBinary, "build", "-trimpath", "-o", report.OutPath, ".")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "GOWORK=off", "GOFLAGS=", "CGO_ENABLED=0")
	klog.V(1).Infof("running %s in %s", strings.Join(cmd.Args, " "), workDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errors.Wrapf(err, "%s build of %q failed:\n%s", goBinary, m.Name, output)
	}

	info, err := os.Stat(report.OutPath)
	if err != nil {
		return nil, errors.Wrapf(err, "executable %q not found after build", report.OutPath)
	}
	report.BinarySize = info.Size()
	report.Elapsed = time.Since(start)
	klog.V(1).Info(report.String())
	return report, nil
}
