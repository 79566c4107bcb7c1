// Package probe answers the environment questions that shape the default
// training configuration: is there a GPU, and are we inside a hosted notebook.
package probe

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// Environment is the injected view of the machine used when computing defaults.
type Environment interface {
	HasAccelerator() bool
	IsHostedNotebook() bool
}

// Static is an Environment with fixed answers.
type Static struct {
	Accelerator bool
	Notebook    bool
}

func (s Static) HasAccelerator() bool   { return s.Accelerator }
func (s Static) IsHostedNotebook() bool { return s.Notebook }

// notebookEnvVars are set by the Colab runtime for every kernel and subprocess.
var notebookEnvVars = []string{"COLAB_RELEASE_TAG", "COLAB_GPU"}

// System probes the running machine. Python is the interpreter used for the
// google.colab import check; leave it empty to rely on environment variables only.
type System struct {
	Python  string
	Timeout time.Duration
}

// NewSystem creates a probe that shells out to python for the notebook check.
func NewSystem(python string) *System {
	return &System{Python: python, Timeout: 10 * time.Second}
}

// HasAccelerator reports whether a CUDA device is usable. The CUDA driver API
// is consulted when built with -tags cuda; otherwise the NVIDIA kernel driver
// and nvidia-smi are checked.
func (s *System) HasAccelerator() bool {
	if cudaDeviceCount() > 0 {
		return true
	}
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return false
	}
	ctx, cancel := s.context()
	defer cancel()
	return exec.CommandContext(ctx, "nvidia-smi", "-L").Run() == nil
}

// IsHostedNotebook reports whether the process runs inside a Colab-style host.
func (s *System) IsHostedNotebook() bool {
	for _, key := range notebookEnvVars {
		if _, ok := os.LookupEnv(key); ok {
			return true
		}
	}
	if s.Python == "" {
		return false
	}
	ctx, cancel := s.context()
	defer cancel()
	return exec.CommandContext(ctx, s.Python, "-c", "import google.colab").Run() == nil
}

func (s *System) context() (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
