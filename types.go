package arescfg

import (
	"errors"
	"io"
	"log/slog"

	"github.com/aresml/arescfg/internal/configurator"
	"github.com/aresml/arescfg/internal/feeds"
	"github.com/aresml/arescfg/internal/installer"
	"github.com/aresml/arescfg/internal/patcher"
	"github.com/aresml/arescfg/internal/probe"
	"github.com/aresml/arescfg/internal/storage"
)

var (
	// ErrDependenciesMissing means the core module is still not importable
	// after a forced install.
	ErrDependenciesMissing = errors.New("required libraries not found")

	ErrInstallFailed = installer.ErrInstallFailed
	ErrUnknownKey    = storage.ErrUnknownKey
	ErrInputClosed   = configurator.ErrInputClosed
)

// Public names for the values the engine hands back.
type (
	Hyperparameters = storage.Hyperparameters
	Snapshot        = storage.Snapshot
	PatchEvent      = storage.PatchEvent
	InstallReport   = installer.Report
	InstallResult   = installer.Result
	PatchResult     = patcher.Result
	FeedStatus      = feeds.Status
	Host            = probe.Host
)

// EngineConfig configures the setup engine.
type EngineConfig struct {
	Settings *storage.Settings // nil means storage.DefaultSettings()

	Env    probe.Environment // nil probes the real machine
	Runner installer.Runner  // nil runs subprocesses, output to Out

	In     io.Reader // answers for the configurator
	Out    io.Writer // prompts and subprocess output
	Logger *slog.Logger

	// ReadOnly skips opening the history database.
	ReadOnly bool

	// Hooks are optional progress callbacks for the full flow.
	OnState   func(State)
	OnPackage func(InstallResult)
}

// State is a step of the full setup flow.
type State int

const (
	StateBootstrap State = iota
	StateConfiguring
	StatePatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateBootstrap:
		return "bootstrap"
	case StateConfiguring:
		return "configuring"
	case StatePatching:
		return "patching"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// RunOptions changes the full flow.
type RunOptions struct {
	// SkipInstall skips the installer when the core module already imports.
	SkipInstall bool
}

// RunResult is what the full flow produced, up to the state it reached.
type RunResult struct {
	State      State           `json:"state"`
	Install    *InstallReport  `json:"install,omitempty"`
	Config     Hyperparameters `json:"config"`
	SnapshotID int64           `json:"snapshot_id,omitempty"`
	Patch      *PatchResult    `json:"patch,omitempty"`
}

// ImportResult summarizes an OPML import into rss_feeds.
type ImportResult struct {
	Found int `json:"found"`
	Added int `json:"added"`
	Total int `json:"total"`
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
