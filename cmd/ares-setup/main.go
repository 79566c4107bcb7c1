package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aresml/arescfg"
	"github.com/aresml/arescfg/internal/logging"
	"github.com/aresml/arescfg/internal/output"
	"github.com/aresml/arescfg/internal/storage"
)

var (
	settingsPath string
	outputFormat string
	settings     *storage.Settings
	formatter    *output.Formatter
	logger       *slog.Logger
)

func main() {
	// A missing .env is fine; values from the real environment win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var skipInstall bool
	rootCmd := &cobra.Command{
		Use:   "ares-setup",
		Short: "Install dependencies and configure hyperparameters for the ARES training script",
		Long: `Without a subcommand, ares-setup runs the full setup: check that the
Python libraries import (installing them if not), install the package list,
ask for every hyperparameter, save them to the config file and write them
into the training script.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), skipInstall)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "settings file path (default: "+storage.DefaultSettingsFile+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")
	rootCmd.Flags().BoolVar(&skipInstall, "skip-install", false, "do not reinstall packages when the core library already imports")

	rootCmd.AddCommand(installCmd())
	rootCmd.AddCommand(configureCmd())
	rootCmd.AddCommand(patchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(defaultsCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(checkFeedsCmd())
	rootCmd.AddCommand(importOPMLCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(initSettingsCmd())
	rootCmd.AddCommand(envCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings() error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format)
	logger = logging.New(os.Stderr, "ares-setup")

	s, err := storage.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	s.ApplyEnv(os.Getenv)
	settings = s
	return nil
}

// interactiveOut keeps prompts and pip output off stdout when stdout carries
// machine-readable results.
func interactiveOut() io.Writer {
	if formatter.Format() == output.FormatHuman {
		return os.Stdout
	}
	return os.Stderr
}

func newEngine(readOnly bool) (*arescfg.Engine, error) {
	return arescfg.NewEngine(arescfg.EngineConfig{
		Settings:  settings,
		In:        os.Stdin,
		Out:       interactiveOut(),
		Logger:    logger,
		ReadOnly:  readOnly,
		OnPackage: formatter.OutputInstallResult,
	})
}

func runSetup(ctx context.Context, skipInstall bool) error {
	engine, err := arescfg.NewEngine(arescfg.EngineConfig{
		Settings:  settings,
		In:        os.Stdin,
		Out:       interactiveOut(),
		Logger:    logger,
		OnPackage: formatter.OutputInstallResult,
		OnState: func(s arescfg.State) {
			switch s {
			case arescfg.StateBootstrap:
				formatter.Info("Checking that %s imports...", settings.Python.CoreModule)
			case arescfg.StateConfiguring:
				formatter.Info("\nConfiguring ARES settings...")
			case arescfg.StatePatching:
				formatter.Info("\nUpdating %s...", settings.Paths.Script)
			}
		},
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	formatter.Header("ARES Installation and Configuration")

	res, err := engine.Run(ctx, arescfg.RunOptions{SkipInstall: skipInstall})
	switch {
	case errors.Is(err, arescfg.ErrDependenciesMissing):
		formatter.Error("Failed to resolve dependencies. Please install manually: %s", engine.ManualInstructions())
		return err
	case errors.Is(err, arescfg.ErrInstallFailed):
		if res.Install != nil {
			formatter.OutputInstallReport(res.Install)
		}
		return err
	case err != nil:
		return err
	}

	if res.Patch != nil {
		if err := formatter.OutputPatchResult(res.Patch); err != nil {
			return err
		}
	}
	return formatter.OutputCompletion(settings.Paths.Script, engine.ConfigPath())
}

func installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Python packages with pip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			formatter.Info("Installing dependencies...")
			report, err := engine.Install(cmd.Context())
			if outErr := formatter.OutputInstallReport(report); outErr != nil {
				return outErr
			}
			return err
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactively set every hyperparameter and save the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			h, err := engine.Configure(cmd.Context())
			if err != nil {
				return err
			}
			if formatter.Format() == output.FormatHuman {
				formatter.Info("\nConfiguration saved in %s.", engine.ConfigPath())
				return nil
			}
			return formatter.OutputConfig(h)
		},
	}
}

func patchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patch",
		Short: "Write the saved hyperparameters into the training script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			res, err := engine.Patch()
			if err != nil {
				return err
			}
			return formatter.OutputPatchResult(res)
		},
	}
}

func showCmd() *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved configuration (defaults when none is saved)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			h, err := engine.Load()
			if err != nil {
				return err
			}
			if export != "" {
				return formatter.ExportConfig(h, export)
			}
			formatter.Header(engine.ConfigPath())
			return formatter.OutputConfig(h)
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "print the configuration as yaml or toml instead")
	return cmd
}

func defaultsCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Show the defaults for this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(!save)
			if err != nil {
				return err
			}
			defer engine.Close()

			h := engine.Defaults()
			if save {
				if h, err = engine.Reset(); err != nil {
					return err
				}
				formatter.Info("Defaults saved in %s.", engine.ConfigPath())
			}
			return formatter.OutputConfig(h)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "overwrite the config file with the defaults")
	return cmd
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one hyperparameter in the config file",
		Long: `Change one hyperparameter. Lists (data_sources, rss_feeds) are given as
comma-separated values. Keys: ` + keyList(),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			h, err := engine.Set(args[0], args[1])
			if err != nil {
				return err
			}
			if formatter.Format() == output.FormatHuman {
				v, _ := h.Get(args[0])
				formatter.Info("%s = %s", args[0], storage.FormatValue(v))
				return nil
			}
			return formatter.OutputConfig(h)
		},
	}
}

func keyList() string {
	return strings.Join(storage.Keys(), ", ")
}

func checkFeedsCmd() *cobra.Command {
	var every string
	cmd := &cobra.Command{
		Use:   "check-feeds",
		Short: "Fetch and parse every configured RSS feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			if every != "" {
				return watchFeeds(cmd.Context(), engine, every)
			}
			statuses, err := engine.CheckFeeds(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.OutputFeedStatuses(statuses)
		},
	}
	cmd.Flags().StringVarP(&every, "every", "e", "", "keep checking at this interval (e.g. 10m) until interrupted")
	return cmd
}

func importOPMLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-opml <opml-file>",
		Short: "Add the feeds of an OPML file to rss_feeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			res, err := engine.ImportOPML(args[0])
			if err != nil {
				return fmt.Errorf("failed to import OPML: %w", err)
			}
			return formatter.OutputImport(args[0], res.Found, res.Added, res.Total)
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		limit   int
		patches bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved configurations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			if patches {
				events, err := engine.Patches(limit)
				if err != nil {
					return err
				}
				return formatter.OutputPatchEvents(events)
			}
			snapshots, err := engine.History(limit)
			if err != nil {
				return err
			}
			return formatter.OutputHistory(snapshots)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to show")
	cmd.Flags().BoolVar(&patches, "patches", false, "list script patches instead of configurations")
	return cmd
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Make a saved configuration current again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid snapshot id: %s", args[0])
			}

			engine, err := newEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			h, err := engine.Restore(id)
			if err != nil {
				return err
			}
			if formatter.Format() == output.FormatHuman {
				formatter.Info("Restored configuration #%d into %s. Run `ares-setup patch` to update %s.",
					id, engine.ConfigPath(), settings.Paths.Script)
				return nil
			}
			return formatter.OutputConfig(h)
		},
	}
}

func initSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-settings",
		Short: "Create a default settings file (YAML, or TOML for a .toml path)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settingsPath
			if path == "" {
				path = storage.DefaultSettingsFile
			}

			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create settings directory: %w", err)
				}
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("settings file already exists: %s", path)
			}

			data, err := storage.DefaultSettings().Encode(path)
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %w", err)
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write settings: %w", err)
			}

			formatter.Info("Created default settings at %s", path)
			return nil
		},
	}
}

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show what the machine probe detects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			formatter.Header("Environment")
			return formatter.OutputHost(engine.Host())
		},
	}
}
