package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/aresml/arescfg/internal/probe"
)

// DefaultConfigFile is the store file name next to the training script.
const DefaultConfigFile = "ares_config.json"

// JSONStore keeps the configuration in a single indented JSON file.
type JSONStore struct {
	path string
	env  probe.Environment

	once     sync.Once
	defaults Hyperparameters
}

// NewJSONStore creates a store at path whose defaults are computed from env.
func NewJSONStore(path string, env probe.Environment) *JSONStore {
	if path == "" {
		path = DefaultConfigFile
	}
	return &JSONStore{path: path, env: env}
}

func (s *JSONStore) Path() string { return s.path }

// Defaults returns a copy of the default configuration. The environment is
// probed once per store.
func (s *JSONStore) Defaults() Hyperparameters {
	s.once.Do(func() { s.defaults = Defaults(s.env) })
	return s.defaults.Clone()
}

// Load reads the store file. A missing file yields the defaults; keys absent
// from the file keep their default values and unknown keys are ignored.
func (s *JSONStore) Load() (Hyperparameters, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.Defaults(), nil
	}
	if err != nil {
		return Hyperparameters{}, fmt.Errorf("read config %s: %w", s.path, err)
	}

	h := s.Defaults()
	if err := json.Unmarshal(data, &h); err != nil {
		return Hyperparameters{}, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	return h, nil
}

// Save overwrites the store file with h as 2-space indented JSON.
func (s *JSONStore) Save(h Hyperparameters) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	return nil
}
