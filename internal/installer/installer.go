// Package installer drives pip to install the Python packages the training
// script needs.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrInstallFailed is returned by Report.Err when a package did not install.
var ErrInstallFailed = errors.New("package installation failed")

// Runner executes a command to completion. A non-nil error means the command
// could not start or exited non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands as subprocesses, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// Result is the outcome for one package.
type Result struct {
	Package string `json:"package"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Report collects the results of an Install call in install order.
type Report struct {
	Results []Result `json:"results"`
	OK      bool     `json:"ok"`
}

// Err returns nil when every package installed.
func (r *Report) Err() error {
	if r.OK {
		return nil
	}
	for _, res := range r.Results {
		if !res.OK {
			return fmt.Errorf("%w: %s: %s", ErrInstallFailed, res.Package, res.Error)
		}
	}
	return ErrInstallFailed
}

type Installer struct {
	python   string
	packages []string
	runner   Runner
	logger   *slog.Logger

	// OnResult, when set, is called as each package finishes.
	OnResult func(Result)
}

// New creates an installer for packages using the given interpreter.
func New(python string, packages []string, runner Runner, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Installer{
		python:   python,
		packages: append([]string(nil), packages...),
		runner:   runner,
		logger:   logger.With("component", "installer"),
	}
}

// Packages returns the install list in order.
func (i *Installer) Packages() []string {
	return append([]string(nil), i.packages...)
}

// Install runs `python -m pip install <pkg>` for each package in order and
// stops at the first failure. No package is retried.
func (i *Installer) Install(ctx context.Context) *Report {
	report := &Report{OK: true}
	for _, pkg := range i.packages {
		i.logger.Info("installing package", "package", pkg)
		res := Result{Package: pkg, OK: true}
		if err := i.runner.Run(ctx, i.python, "-m", "pip", "install", pkg); err != nil {
			res.OK = false
			res.Error = err.Error()
			i.logger.Error("package install failed", "package", pkg, "error", err)
		}
		report.Results = append(report.Results, res)
		if i.OnResult != nil {
			i.OnResult(res)
		}
		if !res.OK {
			report.OK = false
			return report
		}
	}
	return report
}

// CheckImport reports whether module can be imported by the interpreter.
func (i *Installer) CheckImport(ctx context.Context, module string) error {
	if err := i.runner.Run(ctx, i.python, "-c", "import "+module); err != nil {
		i.logger.Warn("import check failed", "module", module, "error", err)
		return fmt.Errorf("import %s: %w", module, err)
	}
	return nil
}

// ManualInstructions is the command a user can run when automatic
// installation is not possible.
func (i *Installer) ManualInstructions() string {
	return "pip install " + strings.Join(i.packages, " ")
}
