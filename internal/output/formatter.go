package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/aresml/arescfg/internal/feeds"
	"github.com/aresml/arescfg/internal/installer"
	"github.com/aresml/arescfg/internal/patcher"
	"github.com/aresml/arescfg/internal/probe"
	"github.com/aresml/arescfg/internal/storage"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("unknown format: %s (want json, text or human)", s)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	keyStyle    = lipgloss.NewStyle().Width(15)
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// Out is the writer results are printed to.
func (f *Formatter) Out() io.Writer { return f.out }

// Format returns the configured output format.
func (f *Formatter) Format() Format { return f.format }

// Header prints a section title in human mode only.
func (f *Formatter) Header(title string) {
	if f.format == FormatHuman {
		fmt.Fprintln(f.out, headerStyle.Render("=== "+title+" ==="))
	}
}

// OutputInstallResult prints one package outcome as it happens.
func (f *Formatter) OutputInstallResult(r installer.Result) {
	switch f.format {
	case FormatJSON:
		json.NewEncoder(f.out).Encode(map[string]any{
			"event":   "package_installed",
			"package": r.Package,
			"ok":      r.OK,
			"error":   r.Error,
		})
	case FormatText:
		fmt.Fprintf(f.out, "event=package_installed\tpackage=%s\tok=%t\n", r.Package, r.OK)
	case FormatHuman:
		if r.OK {
			fmt.Fprintln(f.out, okStyle.Render("Successfully installed "+r.Package))
		} else {
			fmt.Fprintln(f.out, failStyle.Render(fmt.Sprintf("Error installing %s: %s", r.Package, r.Error)))
		}
	}
}

// OutputInstallReport outputs the summary of an install run
func (f *Formatter) OutputInstallReport(report *installer.Report) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(report)
	case FormatText:
		installed := 0
		for _, r := range report.Results {
			if r.OK {
				installed++
			}
		}
		fmt.Fprintf(f.out, "installed=%d\tok=%t\n", installed, report.OK)
		return nil
	case FormatHuman:
		if report.OK {
			fmt.Fprintf(f.out, "All %d packages installed\n", len(report.Results))
		} else {
			fmt.Fprintln(f.out, "Installation failed. Please check the errors and try again.")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputConfig outputs every setting in persisted order
func (f *Formatter) OutputConfig(h storage.Hyperparameters) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	case FormatText:
		for _, key := range storage.Keys() {
			v, _ := h.Get(key)
			fmt.Fprintf(f.out, "%s=%s\n", key, storage.FormatValue(v))
		}
		return nil
	case FormatHuman:
		for _, key := range storage.Keys() {
			v, _ := h.Get(key)
			if list, ok := v.([]string); ok {
				fmt.Fprintf(f.out, "%s (%d)\n", keyStyle.Render(key), len(list))
				for _, item := range list {
					fmt.Fprintf(f.out, "  • %s\n", item)
				}
				continue
			}
			fmt.Fprintf(f.out, "%s %s\n", keyStyle.Render(key), storage.FormatValue(v))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// ExportConfig writes h as YAML or TOML, ignoring the output format.
func (f *Formatter) ExportConfig(h storage.Hyperparameters, as string) error {
	switch strings.ToLower(as) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(f.out)
		enc.SetIndent(2)
		if err := enc.Encode(h); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(f.out).Encode(h)
	}
	return fmt.Errorf("unknown export format: %s (want yaml or toml)", as)
}

// OutputPatchResult outputs the outcome of patching the training script
func (f *Formatter) OutputPatchResult(r *patcher.Result) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(r)
	case FormatText:
		fmt.Fprintf(f.out, "script=%s\tlines=%d\tchanged=%d\n", r.Script, r.Lines, r.LinesChanged)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "%s updated with new settings (%d of %d lines changed).\n", r.Script, r.LinesChanged, r.Lines)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputFeedStatuses outputs feed check results
func (f *Formatter) OutputFeedStatuses(statuses []feeds.Status) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(statuses)
	case FormatText:
		for _, s := range statuses {
			fmt.Fprintf(f.out, "url=%s\tok=%t\titems=%d\terror=%s\n", s.URL, s.OK, s.Items, s.Error)
		}
		return nil
	case FormatHuman:
		if len(statuses) == 0 {
			fmt.Fprintln(f.out, "No RSS feeds configured")
			return nil
		}
		healthy := 0
		for _, s := range statuses {
			if s.OK {
				healthy++
				fmt.Fprintf(f.out, "%s %s\n    %s (%d items)\n", okStyle.Render("✓"), s.URL, truncate(s.Title, 60), s.Items)
			} else {
				fmt.Fprintf(f.out, "%s %s\n    %s\n", failStyle.Render("✗"), s.URL, s.Error)
			}
		}
		fmt.Fprintf(f.out, "\n%d of %d feeds healthy\n", healthy, len(statuses))
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputImport outputs the result of an OPML import
func (f *Formatter) OutputImport(path string, found, added, total int) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]any{
			"path":  path,
			"found": found,
			"added": added,
			"total": total,
		})
	case FormatText:
		fmt.Fprintf(f.out, "path=%s\tfound=%d\tadded=%d\ttotal=%d\n", path, found, added, total)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Imported %d new feeds from %s (%d found, %d configured)\n", added, path, found, total)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputHistory outputs configuration snapshots, newest first
func (f *Formatter) OutputHistory(snapshots []storage.Snapshot) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(snapshots)
	case FormatText:
		for _, s := range snapshots {
			fmt.Fprintf(f.out, "id=%d\tsource=%s\tcreated=%s\n", s.ID, s.Source, s.CreatedAt.Format(time.RFC3339))
		}
		return nil
	case FormatHuman:
		if len(snapshots) == 0 {
			fmt.Fprintln(f.out, "No saved configurations")
			return nil
		}
		for _, s := range snapshots {
			c := s.Config
			fmt.Fprintf(f.out, "#%d  %s  %-9s  d_model=%d layers=%d heads=%d lr=%s epochs=%d\n",
				s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Source,
				c.DModel, c.NumLayers, c.NumHeads, storage.FormatFloat(c.LearningRate), c.Epochs)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputPatchEvents outputs script patch events, newest first
func (f *Formatter) OutputPatchEvents(events []storage.PatchEvent) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(events)
	case FormatText:
		for _, e := range events {
			fmt.Fprintf(f.out, "id=%d\tscript=%s\tchanged=%d\tcreated=%s\n", e.ID, e.Script, e.LinesChanged, e.CreatedAt.Format(time.RFC3339))
		}
		return nil
	case FormatHuman:
		if len(events) == 0 {
			fmt.Fprintln(f.out, "No patches recorded")
			return nil
		}
		for _, e := range events {
			fmt.Fprintf(f.out, "#%d  %s  %s (%d lines changed)\n",
				e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Script, e.LinesChanged)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputHost outputs the environment probe report
func (f *Formatter) OutputHost(h probe.Host) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(h)
	case FormatText:
		fmt.Fprintf(f.out, "cpu=%s\tcores=%d/%d\tavx2=%t\tavx512=%t\tcuda_devices=%d\taccelerator=%t\thosted_notebook=%t\n",
			h.CPU, h.PhysicalCores, h.LogicalCores, h.AVX2, h.AVX512, h.CUDADevices, h.Accelerator, h.HostedNotebook)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "%s %s (%s)\n", keyStyle.Render("CPU"), h.CPU, h.Vendor)
		fmt.Fprintf(f.out, "%s %d physical / %d logical\n", keyStyle.Render("Cores"), h.PhysicalCores, h.LogicalCores)
		fmt.Fprintf(f.out, "%s AVX2=%s AVX-512=%s\n", keyStyle.Render("Vector units"), yesNo(h.AVX2), yesNo(h.AVX512))
		fmt.Fprintf(f.out, "%s %s (%d CUDA devices)\n", keyStyle.Render("Accelerator"), yesNo(h.Accelerator), h.CUDADevices)
		fmt.Fprintf(f.out, "%s %s\n", keyStyle.Render("Notebook host"), yesNo(h.HostedNotebook))
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputCompletion prints the closing message of the full setup flow
func (f *Formatter) OutputCompletion(script, configFile string) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]string{
			"event":  "setup_complete",
			"script": script,
			"config": configFile,
		})
	case FormatText:
		fmt.Fprintf(f.out, "event=setup_complete\tscript=%s\tconfig=%s\n", script, configFile)
		return nil
	case FormatHuman:
		fmt.Fprintln(f.out, "\nInstallation and configuration complete!")
		fmt.Fprintf(f.out, "Run `python %s` to start ARES with your settings.\n", script)
		fmt.Fprintf(f.out, "Configuration saved in %s. Edit it manually if needed.\n", configFile)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Info outputs a progress line in human mode only
func (f *Formatter) Info(format string, args ...interface{}) {
	if f.format == FormatHuman {
		fmt.Fprintf(f.out, format+"\n", args...)
	}
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
