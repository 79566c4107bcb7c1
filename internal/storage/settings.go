package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is read when no --settings flag is given.
const DefaultSettingsFile = "./ares-setup.yaml"

// Settings configures the setup tool itself, as opposed to the training run.
type Settings struct {
	Paths struct {
		ConfigFile string `yaml:"config_file" toml:"config_file"`
		Script     string `yaml:"script" toml:"script"`
		HistoryDB  string `yaml:"history_db" toml:"history_db"`
	} `yaml:"paths" toml:"paths"`

	Python struct {
		Executable string   `yaml:"executable" toml:"executable"`
		CoreModule string   `yaml:"core_module" toml:"core_module"`
		Packages   []string `yaml:"packages" toml:"packages"`
	} `yaml:"python" toml:"python"`

	Feeds struct {
		Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
		UserAgent string        `yaml:"user_agent" toml:"user_agent"`
	} `yaml:"feeds" toml:"feeds"`
}

// DefaultPackages are installed in order by the dependency installer.
var DefaultPackages = []string{"torch", "datasets", "feedparser", "requests", "beautifulsoup4"}

// DefaultSettings returns settings with sensible defaults
func DefaultSettings() *Settings {
	s := &Settings{}
	s.Paths.ConfigFile = DefaultConfigFile
	s.Paths.Script = "ares.py"
	s.Paths.HistoryDB = "./.ares/history.db"
	s.Python.Executable = "python3"
	s.Python.CoreModule = "torch"
	s.Python.Packages = append([]string(nil), DefaultPackages...)
	s.Feeds.Timeout = 30 * time.Second
	s.Feeds.UserAgent = "ares-setup/1.0"
	return s
}

// LoadSettings reads path on top of the defaults. A missing file is not an
// error. Paths ending in .toml are decoded as TOML, anything else as YAML.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		path = DefaultSettingsFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), s); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	} else if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// ApplyEnv overrides settings from ARES_* variables.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := getenv("ARES_CONFIG_FILE"); v != "" {
		s.Paths.ConfigFile = v
	}
	if v := getenv("ARES_SCRIPT"); v != "" {
		s.Paths.Script = v
	}
	if v := getenv("ARES_HISTORY_DB"); v != "" {
		s.Paths.HistoryDB = v
	}
	if v := getenv("ARES_PYTHON"); v != "" {
		s.Python.Executable = v
	}
	if v := getenv("ARES_CORE_MODULE"); v != "" {
		s.Python.CoreModule = v
	}
	if v := getenv("ARES_PACKAGES"); v != "" {
		s.Python.Packages = SplitList(v)
	}
	if v := getenv("ARES_FEED_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Feeds.Timeout = d
		}
	}
}

// Validate reports settings the tool cannot run with.
func (s *Settings) Validate() error {
	switch {
	case s.Paths.ConfigFile == "":
		return errors.New("paths.config_file is required")
	case s.Paths.Script == "":
		return errors.New("paths.script is required")
	case s.Python.Executable == "":
		return errors.New("python.executable is required")
	case s.Feeds.Timeout <= 0:
		return errors.New("feeds.timeout must be positive")
	}
	return nil
}

// Encode renders the settings in the format implied by path.
func (s *Settings) Encode(path string) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(s)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
