// Package arescfg installs the Python dependencies of the ARES training
// script, collects its hyperparameters and writes them into the script.
package arescfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aresml/arescfg/internal/configurator"
	"github.com/aresml/arescfg/internal/feeds"
	"github.com/aresml/arescfg/internal/installer"
	"github.com/aresml/arescfg/internal/patcher"
	"github.com/aresml/arescfg/internal/probe"
	"github.com/aresml/arescfg/internal/storage"
)

var errNoHistory = errors.New("history is not available in read-only mode")

// Engine is the public API for the setup flow. It wraps the config store,
// history ledger, installer, patcher and feed checker.
type Engine struct {
	settings  *storage.Settings
	env       probe.Environment
	store     *storage.JSONStore
	history   *storage.History
	installer *installer.Installer
	patcher   *patcher.Patcher
	checker   *feeds.Checker

	in      io.Reader
	out     io.Writer
	logger  *slog.Logger
	onState func(State)
}

// NewEngine creates a setup engine from cfg. Unless cfg.ReadOnly is set the
// history database is opened and must be released with Close.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = storage.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	in, out := cfg.In, cfg.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = io.Discard
	}
	env := cfg.Env
	if env == nil {
		env = probe.NewSystem(settings.Python.Executable)
	}
	runner := cfg.Runner
	if runner == nil {
		runner = installer.ExecRunner{Stdout: out, Stderr: out}
	}

	inst := installer.New(settings.Python.Executable, settings.Python.Packages, runner, logger)
	inst.OnResult = cfg.OnPackage

	e := &Engine{
		settings:  settings,
		env:       env,
		store:     storage.NewJSONStore(settings.Paths.ConfigFile, env),
		installer: inst,
		patcher:   patcher.New(nil, logger),
		checker:   feeds.NewChecker(settings.Feeds.UserAgent, settings.Feeds.Timeout),
		in:        in,
		out:       out,
		logger:    logger,
		onState:   cfg.OnState,
	}

	if !cfg.ReadOnly {
		history, err := storage.NewHistory(settings.Paths.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		e.history = history
	}
	return e, nil
}

// Settings returns the tool settings the engine was built with.
func (e *Engine) Settings() *storage.Settings { return e.settings }

// Run performs the full flow: Bootstrap, Configuring, Patching, Done.
//
// Bootstrap checks that the core module imports. If it does not, the
// packages are installed and the check is repeated once; a second failure
// ends with ErrDependenciesMissing carrying the manual install command.
// Configuring installs the packages (unless they were just installed or
// opts.SkipInstall is set) and then runs the interactive configurator.
// The returned result is filled up to the state that was reached.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	res := &RunResult{}
	e.enter(res, StateBootstrap)

	installed := false
	if err := e.CheckDependencies(ctx); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		e.logger.Warn("required libraries not found, installing", "module", e.settings.Python.CoreModule)
		report, err := e.Install(ctx)
		res.Install = report
		if err != nil {
			return res, e.dependenciesMissing(err)
		}
		if err := e.CheckDependencies(ctx); err != nil {
			return res, e.dependenciesMissing(err)
		}
		installed = true
	}

	e.enter(res, StateConfiguring)
	if !installed && !opts.SkipInstall {
		report, err := e.Install(ctx)
		res.Install = report
		if err != nil {
			return res, err
		}
	}

	h, id, err := e.configure(ctx)
	if err != nil {
		return res, err
	}
	res.Config = h
	res.SnapshotID = id

	e.enter(res, StatePatching)
	patch, err := e.patch(h)
	if err != nil {
		return res, err
	}
	res.Patch = patch

	e.enter(res, StateDone)
	return res, nil
}

func (e *Engine) enter(res *RunResult, s State) {
	res.State = s
	e.logger.Debug("state", "state", s.String())
	if e.onState != nil {
		e.onState(s)
	}
}

func (e *Engine) dependenciesMissing(cause error) error {
	return fmt.Errorf("%w (%v); install them manually: %s",
		ErrDependenciesMissing, cause, e.installer.ManualInstructions())
}

// Install runs the package manager for every configured package in order.
// The report is returned even on failure.
func (e *Engine) Install(ctx context.Context) (*InstallReport, error) {
	report := e.installer.Install(ctx)
	return report, report.Err()
}

// CheckDependencies reports whether the core module can be imported.
func (e *Engine) CheckDependencies(ctx context.Context) error {
	return e.installer.CheckImport(ctx, e.settings.Python.CoreModule)
}

// ManualInstructions is the install command shown when automatic install
// does not resolve the dependencies.
func (e *Engine) ManualInstructions() string {
	return e.installer.ManualInstructions()
}

// Configure prompts for every setting, saves the result and snapshots it.
func (e *Engine) Configure(ctx context.Context) (Hyperparameters, error) {
	h, _, err := e.configure(ctx)
	return h, err
}

func (e *Engine) configure(ctx context.Context) (Hyperparameters, int64, error) {
	h, err := configurator.New(e.store, e.in, e.out, e.logger).Configure(ctx)
	if err != nil {
		return Hyperparameters{}, 0, err
	}
	return h, e.record(storage.SourceConfigure, h), nil
}

// Patch writes the saved configuration into the target script.
func (e *Engine) Patch() (*PatchResult, error) {
	h, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	return e.patch(h)
}

func (e *Engine) patch(h Hyperparameters) (*PatchResult, error) {
	res, err := e.patcher.Patch(h, e.settings.Paths.Script)
	if err != nil {
		return nil, err
	}
	if e.history != nil {
		if err := e.history.RecordPatch(res.Script, res.LinesChanged); err != nil {
			e.logger.Warn("failed to record patch", "error", err)
		}
	}
	return res, nil
}

// Load returns the saved configuration, or the defaults when none is saved.
func (e *Engine) Load() (Hyperparameters, error) {
	return e.store.Load()
}

// Defaults returns the defaults for this machine.
func (e *Engine) Defaults() Hyperparameters {
	return e.store.Defaults()
}

// ConfigPath is the path of the JSON configuration file.
func (e *Engine) ConfigPath() string {
	return e.store.Path()
}

// Set parses raw for key, saves the configuration and snapshots it.
func (e *Engine) Set(key, raw string) (Hyperparameters, error) {
	h, err := e.store.Load()
	if err != nil {
		return Hyperparameters{}, err
	}
	if err := h.SetString(key, raw); err != nil {
		return Hyperparameters{}, err
	}
	if err := e.store.Save(h); err != nil {
		return Hyperparameters{}, err
	}
	e.logger.Info("setting changed", "key", key)
	e.record(storage.SourceSet, h)
	return h, nil
}

// Reset saves the defaults over the current configuration.
func (e *Engine) Reset() (Hyperparameters, error) {
	h := e.store.Defaults()
	if err := e.store.Save(h); err != nil {
		return Hyperparameters{}, err
	}
	e.record(storage.SourceSet, h)
	return h, nil
}

// CheckFeeds fetches and parses every configured RSS feed.
func (e *Engine) CheckFeeds(ctx context.Context) ([]FeedStatus, error) {
	h, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	return e.checker.Check(ctx, h.RSSFeeds), nil
}

// ImportOPML appends the feed URLs of an OPML file to rss_feeds, skipping
// ones already present, and saves when anything was added.
func (e *Engine) ImportOPML(path string) (*ImportResult, error) {
	urls, err := feeds.ImportOPML(path)
	if err != nil {
		return nil, err
	}
	h, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	merged, added := feeds.Merge(h.RSSFeeds, urls)
	res := &ImportResult{Found: len(urls), Added: added, Total: len(merged)}
	if added == 0 {
		return res, nil
	}
	h.RSSFeeds = merged
	if err := e.store.Save(h); err != nil {
		return nil, err
	}
	e.logger.Info("feeds imported", "path", path, "added", added)
	e.record(storage.SourceImport, h)
	return res, nil
}

// History lists saved configurations, newest first.
func (e *Engine) History(limit int) ([]Snapshot, error) {
	if e.history == nil {
		return nil, errNoHistory
	}
	return e.history.List(limit)
}

// Patches lists script patch events, newest first.
func (e *Engine) Patches(limit int) ([]PatchEvent, error) {
	if e.history == nil {
		return nil, errNoHistory
	}
	return e.history.ListPatches(limit)
}

// Restore saves snapshot id as the current configuration.
func (e *Engine) Restore(id int64) (Hyperparameters, error) {
	if e.history == nil {
		return Hyperparameters{}, errNoHistory
	}
	snap, err := e.history.Get(id)
	if err != nil {
		return Hyperparameters{}, err
	}
	if err := snap.Config.Validate(); err != nil {
		return Hyperparameters{}, fmt.Errorf("snapshot %d: %w", id, err)
	}
	if err := e.store.Save(snap.Config); err != nil {
		return Hyperparameters{}, err
	}
	e.logger.Info("configuration restored", "snapshot", id)
	e.record(storage.SourceRestore, snap.Config)
	return snap.Config, nil
}

// Host describes the machine the engine runs on.
func (e *Engine) Host() Host {
	return probe.DescribeHost(e.env)
}

// record snapshots h. History is secondary to the config file, so failures
// are logged and return 0.
func (e *Engine) record(source string, h Hyperparameters) int64 {
	if e.history == nil {
		return 0
	}
	id, err := e.history.Record(source, h)
	if err != nil {
		e.logger.Warn("failed to record snapshot", "source", source, "error", err)
		return 0
	}
	return id
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	if e.history == nil {
		return nil
	}
	return e.history.Close()
}
