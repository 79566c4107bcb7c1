package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aresml/arescfg/internal/feeds"
	"github.com/aresml/arescfg/internal/installer"
	"github.com/aresml/arescfg/internal/patcher"
	"github.com/aresml/arescfg/internal/probe"
	"github.com/aresml/arescfg/internal/storage"
)

func sampleConfig() storage.Hyperparameters {
	return storage.Defaults(probe.Static{})
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", "TEXT", "human"} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOutputInstallReport_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	report := &installer.Report{
		Results: []installer.Result{
			{Package: "torch", OK: true},
			{Package: "datasets", OK: false, Error: "exit status 1"},
		},
		OK: false,
	}
	if err := f.OutputInstallReport(report); err != nil {
		t.Fatalf("OutputInstallReport failed: %v", err)
	}

	var decoded installer.Report
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded.OK {
		t.Error("OK = true, want false")
	}
	if len(decoded.Results) != 2 || decoded.Results[1].Error != "exit status 1" {
		t.Errorf("Results = %+v", decoded.Results)
	}
}

func TestOutputInstallReport_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputInstallReport(&installer.Report{OK: false})
	if !strings.Contains(out.String(), "Installation failed. Please check the errors and try again.") {
		t.Errorf("missing failure message: %s", out.String())
	}
}

func TestOutputInstallResult_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputInstallResult(installer.Result{Package: "torch", OK: true})
	f.OutputInstallResult(installer.Result{Package: "requests", Error: "no network"})

	got := out.String()
	if !strings.Contains(got, "Successfully installed torch") {
		t.Errorf("missing success line: %s", got)
	}
	if !strings.Contains(got, "Error installing requests: no network") {
		t.Errorf("missing failure line: %s", got)
	}
}

func TestOutputConfig_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	cfg := sampleConfig()
	if err := f.OutputConfig(cfg); err != nil {
		t.Fatalf("OutputConfig failed: %v", err)
	}

	var decoded storage.Hyperparameters
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded.DModel != cfg.DModel || decoded.Device != cfg.Device {
		t.Errorf("decoded = %+v, want %+v", decoded, cfg)
	}
}

func TestOutputConfig_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	cfg := sampleConfig()
	cfg.LearningRate = 0.0005
	f.OutputConfig(cfg)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(storage.Keys()) {
		t.Fatalf("got %d lines, want %d", len(lines), len(storage.Keys()))
	}
	if lines[0] != "device=cpu" {
		t.Errorf("first line = %q, want device=cpu", lines[0])
	}
	if !strings.Contains(out.String(), "learning_rate=0.0005\n") {
		t.Errorf("missing learning_rate line: %s", out.String())
	}
}

func TestOutputConfig_HumanListsFeeds(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	cfg := sampleConfig()
	f.OutputConfig(cfg)

	got := out.String()
	for _, feed := range cfg.RSSFeeds {
		if !strings.Contains(got, feed) {
			t.Errorf("missing feed %s in output", feed)
		}
	}
}

func TestExportConfig(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.ExportConfig(sampleConfig(), "yaml"); err != nil {
		t.Fatalf("ExportConfig yaml failed: %v", err)
	}
	if !strings.Contains(out.String(), "d_model: 256\n") {
		t.Errorf("yaml export missing d_model: %s", out.String())
	}

	out.Reset()
	if err := f.ExportConfig(sampleConfig(), "toml"); err != nil {
		t.Fatalf("ExportConfig toml failed: %v", err)
	}
	if !strings.Contains(out.String(), "d_model = 256\n") {
		t.Errorf("toml export missing d_model: %s", out.String())
	}

	if err := f.ExportConfig(sampleConfig(), "ini"); err == nil {
		t.Error("expected error for unknown export format")
	}
}

func TestOutputPatchResult(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	f.OutputPatchResult(&patcher.Result{Script: "ares.py", Lines: 40, LinesChanged: 3})
	if got := out.String(); got != "script=ares.py\tlines=40\tchanged=3\n" {
		t.Errorf("got %q", got)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputPatchResult(&patcher.Result{Script: "ares.py", Lines: 40, LinesChanged: 3})
	if !strings.Contains(out.String(), "ares.py updated with new settings") {
		t.Errorf("missing patch message: %s", out.String())
	}
}

func TestOutputFeedStatuses_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	statuses := []feeds.Status{
		{URL: "https://a.example/rss", OK: true, Title: "A", Items: 4},
		{URL: "https://b.example/rss", Error: "unexpected status 404"},
	}
	if err := f.OutputFeedStatuses(statuses); err != nil {
		t.Fatalf("OutputFeedStatuses failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "1 of 2 feeds healthy") {
		t.Errorf("missing summary: %s", got)
	}
	if !strings.Contains(got, "unexpected status 404") {
		t.Errorf("missing error detail: %s", got)
	}
}

func TestOutputFeedStatuses_HumanEmpty(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputFeedStatuses(nil)
	if !strings.Contains(out.String(), "No RSS feeds configured") {
		t.Errorf("missing empty message: %s", out.String())
	}
}

func TestOutputImport(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	f.OutputImport("feeds.opml", 4, 3, 10)

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded["added"] != float64(3) || decoded["path"] != "feeds.opml" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestOutputHistory(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snaps := []storage.Snapshot{
		{ID: 2, Source: storage.SourceSet, CreatedAt: created, Config: sampleConfig()},
		{ID: 1, Source: storage.SourceConfigure, CreatedAt: created, Config: sampleConfig()},
	}
	f.OutputHistory(snaps)

	got := out.String()
	if !strings.Contains(got, "id=2\tsource=set\tcreated=2026-03-01T12:00:00Z") {
		t.Errorf("unexpected output: %s", got)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputHistory(nil)
	if !strings.Contains(out.String(), "No saved configurations") {
		t.Errorf("missing empty message: %s", out.String())
	}
}

func TestOutputHost_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	f.OutputHost(probe.Host{CPU: "Test CPU", LogicalCores: 8, Accelerator: true})

	var decoded probe.Host
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded.CPU != "Test CPU" || decoded.LogicalCores != 8 || !decoded.Accelerator {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestOutputCompletion_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.OutputCompletion("ares.py", "ares_config.json")
	got := out.String()
	if !strings.Contains(got, "Installation and configuration complete!") {
		t.Errorf("missing completion line: %s", got)
	}
	if !strings.Contains(got, "python ares.py") {
		t.Errorf("missing run hint: %s", got)
	}
}

func TestInfoHumanOnly(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	f.Info("Installing %d packages", 5)
	f.Header("ARES Setup")
	if out.Len() != 0 {
		t.Errorf("json mode wrote progress output: %q", out.String())
	}
}

func TestWarning(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Warning("feed %s unreachable", "https://a.example/rss")

	if out.Len() != 0 {
		t.Errorf("Warning wrote to stdout: %q", out.String())
	}
	if got := errBuf.String(); got != "Warning: feed https://a.example/rss unreachable\n" {
		t.Errorf("Warning = %q", got)
	}
}

func TestError(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Error("failed: %v", "boom")

	if got := errBuf.String(); got != "failed: boom\n" {
		t.Errorf("Error = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"  padded  ", 10, "padded"},
		{"exactly ten", 11, "exactly ten"},
		{"this is too long", 7, "this is..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
