package arescfg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aresml/arescfg/internal/probe"
	"github.com/aresml/arescfg/internal/storage"
)

const testScript = `import torch

vocab_size = 1
d_model = 2
learning_rate = 0.1
print("training")
`

// fakeRunner answers import checks and pip installs without subprocesses.
type fakeRunner struct {
	calls []string

	// importFailures fails that many import checks; negative fails all.
	importFailures int
	failPackage    string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if args[0] == "-c" {
		if r.importFailures == 0 {
			return nil
		}
		if r.importFailures > 0 {
			r.importFailures--
		}
		return errors.New("exit status 1")
	}
	if r.failPackage != "" && args[len(args)-1] == r.failPackage {
		return errors.New("exit status 1")
	}
	return nil
}

func (r *fakeRunner) pipCalls() int {
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c, "-m pip install") {
			n++
		}
	}
	return n
}

func testSettings(t *testing.T) *storage.Settings {
	t.Helper()
	dir := t.TempDir()
	s := storage.DefaultSettings()
	s.Paths.ConfigFile = filepath.Join(dir, "ares_config.json")
	s.Paths.Script = filepath.Join(dir, "ares.py")
	s.Paths.HistoryDB = filepath.Join(dir, "history.db")
	if err := os.WriteFile(s.Paths.Script, []byte(testScript), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return s
}

func newTestEngine(t *testing.T, input string, runner *fakeRunner) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		Settings: testSettings(t),
		Env:      probe.Static{},
		Runner:   runner,
		In:       strings.NewReader(input),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

// blankAnswers keeps every default. With the default data sources all
// prompts, rss_feeds included, are asked.
var blankAnswers = strings.Repeat("\n", 17)

func TestNewEngineRejectsBadSettings(t *testing.T) {
	s := storage.DefaultSettings()
	s.Paths.Script = ""
	if _, err := NewEngine(EngineConfig{Settings: s, Env: probe.Static{}, ReadOnly: true}); err == nil {
		t.Fatal("expected error for empty script path")
	}
}

func TestRunFullFlow(t *testing.T) {
	runner := &fakeRunner{}
	engine := newTestEngine(t, blankAnswers, runner)

	var states []State
	engine.onState = func(s State) { states = append(states, s) }

	res, err := engine.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %s, want done", res.State)
	}
	want := []State{StateBootstrap, StateConfiguring, StatePatching, StateDone}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}

	if runner.pipCalls() != 5 {
		t.Errorf("pip installs = %d, want 5", runner.pipCalls())
	}
	if res.Install == nil || !res.Install.OK {
		t.Errorf("install report = %+v", res.Install)
	}
	if res.SnapshotID == 0 {
		t.Error("configuration was not snapshotted")
	}
	if res.Patch == nil || res.Patch.LinesChanged != 3 {
		t.Errorf("patch = %+v, want 3 lines changed", res.Patch)
	}

	script, _ := os.ReadFile(engine.settings.Paths.Script)
	for _, line := range []string{"vocab_size = 20000\n", "d_model = 256\n", "learning_rate = 0.0005\n", "print(\"training\")\n"} {
		if !strings.Contains(string(script), line) {
			t.Errorf("script missing %q:\n%s", line, script)
		}
	}
	if _, err := os.Stat(engine.ConfigPath()); err != nil {
		t.Errorf("config not saved: %v", err)
	}
}

func TestRunSkipInstall(t *testing.T) {
	runner := &fakeRunner{}
	engine := newTestEngine(t, blankAnswers, runner)

	res, err := engine.Run(context.Background(), RunOptions{SkipInstall: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.pipCalls() != 0 {
		t.Errorf("pip installs = %d, want 0", runner.pipCalls())
	}
	if res.Install != nil {
		t.Errorf("install report = %+v, want nil", res.Install)
	}
}

func TestRunBootstrapInstallsOnce(t *testing.T) {
	runner := &fakeRunner{importFailures: 1}
	engine := newTestEngine(t, blankAnswers, runner)

	res, err := engine.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %s, want done", res.State)
	}
	if runner.pipCalls() != 5 {
		t.Errorf("pip installs = %d, want 5", runner.pipCalls())
	}
}

func TestRunDependenciesMissing(t *testing.T) {
	runner := &fakeRunner{importFailures: -1}
	engine := newTestEngine(t, blankAnswers, runner)

	res, err := engine.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrDependenciesMissing) {
		t.Fatalf("err = %v, want ErrDependenciesMissing", err)
	}
	if !strings.Contains(err.Error(), "pip install torch datasets feedparser requests beautifulsoup4") {
		t.Errorf("error lacks manual instructions: %v", err)
	}
	if res.State != StateBootstrap {
		t.Errorf("state = %s, want bootstrap", res.State)
	}
	if _, err := os.Stat(engine.ConfigPath()); !os.IsNotExist(err) {
		t.Error("config written despite missing dependencies")
	}
}

func TestRunBootstrapInstallFailure(t *testing.T) {
	runner := &fakeRunner{importFailures: 1, failPackage: "feedparser"}
	engine := newTestEngine(t, blankAnswers, runner)

	_, err := engine.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrDependenciesMissing) {
		t.Fatalf("err = %v, want ErrDependenciesMissing", err)
	}
	if runner.pipCalls() != 3 {
		t.Errorf("pip installs = %d, want 3 (stop at first failure)", runner.pipCalls())
	}
}

func TestRunInstallFailed(t *testing.T) {
	runner := &fakeRunner{failPackage: "datasets"}
	engine := newTestEngine(t, blankAnswers, runner)

	res, err := engine.Run(context.Background(), RunOptions{})
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("err = %v, want ErrInstallFailed", err)
	}
	if res.State != StateConfiguring {
		t.Errorf("state = %s, want configuring", res.State)
	}
	if res.Install == nil || len(res.Install.Results) != 2 {
		t.Errorf("install report = %+v, want 2 results", res.Install)
	}
	if _, err := os.Stat(engine.ConfigPath()); !os.IsNotExist(err) {
		t.Error("config written despite install failure")
	}
}

func TestRunInputClosed(t *testing.T) {
	engine := newTestEngine(t, "cpu\n512\n", &fakeRunner{})

	_, err := engine.Run(context.Background(), RunOptions{SkipInstall: true})
	if !errors.Is(err, ErrInputClosed) {
		t.Fatalf("err = %v, want ErrInputClosed", err)
	}
	if _, err := os.Stat(engine.ConfigPath()); !os.IsNotExist(err) {
		t.Error("config written despite closed input")
	}
	script, _ := os.ReadFile(engine.settings.Paths.Script)
	if string(script) != testScript {
		t.Error("script patched despite closed input")
	}
}

func TestSetRecordsHistory(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})

	h, err := engine.Set("d_model", "512")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if h.DModel != 512 {
		t.Errorf("DModel = %d, want 512", h.DModel)
	}

	loaded, err := engine.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DModel != 512 {
		t.Errorf("saved DModel = %d, want 512", loaded.DModel)
	}

	snaps, err := engine.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Source != storage.SourceSet {
		t.Errorf("snapshots = %+v, want one set snapshot", snaps)
	}
}

func TestSetErrors(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})

	if _, err := engine.Set("dropout", "0.1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: err = %v, want ErrUnknownKey", err)
	}
	if _, err := engine.Set("epochs", "many"); err == nil {
		t.Error("expected error for non-numeric epochs")
	}
	if _, err := os.Stat(engine.ConfigPath()); !os.IsNotExist(err) {
		t.Error("config written after failed set")
	}
}

func TestRestore(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})

	if _, err := engine.Set("epochs", "5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := engine.Set("epochs", "50"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	snaps, _ := engine.History(10)
	oldest := snaps[len(snaps)-1]

	h, err := engine.Restore(oldest.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if h.Epochs != 5 {
		t.Errorf("Epochs = %d, want 5", h.Epochs)
	}
	loaded, _ := engine.Load()
	if loaded.Epochs != 5 {
		t.Errorf("saved Epochs = %d, want 5", loaded.Epochs)
	}

	snaps, _ = engine.History(10)
	if len(snaps) != 3 || snaps[0].Source != storage.SourceRestore {
		t.Errorf("latest snapshot = %+v, want restore", snaps[0])
	}

	if _, err := engine.Restore(999); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("missing snapshot: err = %v", err)
	}
}

func TestReset(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})
	engine.Set("batch_size", "64")

	h, err := engine.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if h.BatchSize != 8 {
		t.Errorf("BatchSize = %d, want 8", h.BatchSize)
	}
}

func TestPatchUsesSavedConfig(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})
	engine.Set("vocab_size", "32000")

	res, err := engine.Patch()
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if res.LinesChanged != 3 {
		t.Errorf("LinesChanged = %d, want 3", res.LinesChanged)
	}
	script, _ := os.ReadFile(engine.settings.Paths.Script)
	if !strings.Contains(string(script), "vocab_size = 32000\n") {
		t.Errorf("script not patched:\n%s", script)
	}

	events, err := engine.Patches(5)
	if err != nil {
		t.Fatalf("Patches: %v", err)
	}
	if len(events) != 1 || events[0].LinesChanged != 3 {
		t.Errorf("patch events = %+v", events)
	}
}

func TestPatchMissingScript(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})
	os.Remove(engine.settings.Paths.Script)

	if _, err := engine.Patch(); err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestImportOPML(t *testing.T) {
	engine := newTestEngine(t, "", &fakeRunner{})

	opml := `<?xml version="1.0"?>
<opml version="2.0">
  <body>
    <outline text="News">
      <outline type="rss" text="Existing" xmlUrl="` + storage.DefaultRSSFeeds[0] + `"/>
      <outline type="rss" text="New" xmlUrl="https://example.com/feed.xml"/>
    </outline>
  </body>
</opml>`
	path := filepath.Join(t.TempDir(), "feeds.opml")
	if err := os.WriteFile(path, []byte(opml), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := engine.ImportOPML(path)
	if err != nil {
		t.Fatalf("ImportOPML: %v", err)
	}
	if res.Found != 2 || res.Added != 1 || res.Total != len(storage.DefaultRSSFeeds)+1 {
		t.Errorf("result = %+v", res)
	}

	h, _ := engine.Load()
	if h.RSSFeeds[len(h.RSSFeeds)-1] != "https://example.com/feed.xml" {
		t.Errorf("new feed not appended: %v", h.RSSFeeds)
	}

	again, err := engine.ImportOPML(path)
	if err != nil {
		t.Fatalf("second ImportOPML: %v", err)
	}
	if again.Added != 0 {
		t.Errorf("second import added %d, want 0", again.Added)
	}
}

func TestReadOnlyEngine(t *testing.T) {
	engine, err := NewEngine(EngineConfig{
		Settings: testSettings(t),
		Env:      probe.Static{Accelerator: true},
		ReadOnly: true,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer engine.Close()

	if _, err := engine.History(5); err == nil {
		t.Error("expected error listing history in read-only mode")
	}
	if _, err := os.Stat(engine.settings.Paths.HistoryDB); !os.IsNotExist(err) {
		t.Error("history database created in read-only mode")
	}
	if d := engine.Defaults(); d.Device != storage.DeviceAccelerator {
		t.Errorf("Device = %s, want %s", d.Device, storage.DeviceAccelerator)
	}
	if got := engine.Host(); !got.Accelerator {
		t.Error("Host().Accelerator = false, want true")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateBootstrap:   "bootstrap",
		StateConfiguring: "configuring",
		StatePatching:    "patching",
		StateDone:        "done",
		State(42):        "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
