package storage

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned for a setting name outside the fixed key set.
var ErrUnknownKey = errors.New("unknown setting")

// ErrInvalidValue wraps every rejected value passed to Set or SetString.
var ErrInvalidValue = errors.New("invalid value")

// Hyperparameters is the persisted configuration of the training script.
// Field order matches the key order of ares_config.json.
type Hyperparameters struct {
	Device       string   `json:"device" yaml:"device" toml:"device"`
	VocabSize    int      `json:"vocab_size" yaml:"vocab_size" toml:"vocab_size"`
	DModel       int      `json:"d_model" yaml:"d_model" toml:"d_model"`
	NumLayers    int      `json:"num_layers" yaml:"num_layers" toml:"num_layers"`
	NumHeads     int      `json:"num_heads" yaml:"num_heads" toml:"num_heads"`
	DFF          int      `json:"d_ff" yaml:"d_ff" toml:"d_ff"`
	MaxSeqLen    int      `json:"max_seq_len" yaml:"max_seq_len" toml:"max_seq_len"`
	BatchSize    int      `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	Epochs       int      `json:"epochs" yaml:"epochs" toml:"epochs"`
	Patience     int      `json:"patience" yaml:"patience" toml:"patience"`
	DataSources  []string `json:"data_sources" yaml:"data_sources" toml:"data_sources"`
	RSSFeeds     []string `json:"rss_feeds" yaml:"rss_feeds" toml:"rss_feeds"`
	MaxSamples   int      `json:"max_samples" yaml:"max_samples" toml:"max_samples"`
	BeamWidth    int      `json:"beam_width" yaml:"beam_width" toml:"beam_width"`
	LearningRate float64  `json:"learning_rate" yaml:"learning_rate" toml:"learning_rate"`
	WeightDecay  float64  `json:"weight_decay" yaml:"weight_decay" toml:"weight_decay"`
	SavePath     string   `json:"save_path" yaml:"save_path" toml:"save_path"`
}

// Kind is the value type of a setting.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	default:
		return "string"
	}
}

type keySpec struct {
	key  string
	kind Kind
	// min is the smallest accepted numeric value.
	min float64
}

var keySpecs = []keySpec{
	{"device", KindString, 0},
	{"vocab_size", KindInt, 1},
	{"d_model", KindInt, 1},
	{"num_layers", KindInt, 1},
	{"num_heads", KindInt, 1},
	{"d_ff", KindInt, 1},
	{"max_seq_len", KindInt, 1},
	{"batch_size", KindInt, 1},
	{"epochs", KindInt, 1},
	{"patience", KindInt, 0},
	{"data_sources", KindList, 0},
	{"rss_feeds", KindList, 0},
	{"max_samples", KindInt, 1},
	{"beam_width", KindInt, 1},
	{"learning_rate", KindFloat, math.SmallestNonzeroFloat64},
	{"weight_decay", KindFloat, 0},
	{"save_path", KindString, 0},
}

// Keys returns the setting names in persisted order.
func Keys() []string {
	keys := make([]string, len(keySpecs))
	for i, s := range keySpecs {
		keys[i] = s.key
	}
	return keys
}

// KindOf returns the value type of key.
func KindOf(key string) (Kind, bool) {
	s, ok := lookup(key)
	return s.kind, ok
}

func lookup(key string) (keySpec, bool) {
	for _, s := range keySpecs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func (h *Hyperparameters) ref(key string) any {
	switch key {
	case "device":
		return &h.Device
	case "vocab_size":
		return &h.VocabSize
	case "d_model":
		return &h.DModel
	case "num_layers":
		return &h.NumLayers
	case "num_heads":
		return &h.NumHeads
	case "d_ff":
		return &h.DFF
	case "max_seq_len":
		return &h.MaxSeqLen
	case "batch_size":
		return &h.BatchSize
	case "epochs":
		return &h.Epochs
	case "patience":
		return &h.Patience
	case "data_sources":
		return &h.DataSources
	case "rss_feeds":
		return &h.RSSFeeds
	case "max_samples":
		return &h.MaxSamples
	case "beam_width":
		return &h.BeamWidth
	case "learning_rate":
		return &h.LearningRate
	case "weight_decay":
		return &h.WeightDecay
	case "save_path":
		return &h.SavePath
	}
	return nil
}

// Get returns the value stored under key: int, float64, string or []string.
func (h *Hyperparameters) Get(key string) (any, error) {
	switch p := h.ref(key).(type) {
	case *int:
		return *p, nil
	case *float64:
		return *p, nil
	case *string:
		return *p, nil
	case *[]string:
		return slices.Clone(*p), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Set stores value under key after checking it. Integral floats are accepted
// for integer settings since JSON clients send every number as float64.
func (h *Hyperparameters) Set(key string, value any) error {
	ks, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v, err := coerce(ks.kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", key, ErrInvalidValue, err)
	}
	if err := CheckValue(key, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	switch p := h.ref(key).(type) {
	case *int:
		*p = v.(int)
	case *float64:
		*p = v.(float64)
	case *string:
		*p = v.(string)
	case *[]string:
		*p = v.([]string)
	}
	return nil
}

// SetString parses raw according to the type of key and stores it.
func (h *Hyperparameters) SetString(key, raw string) error {
	kind, ok := KindOf(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v, err := ParseValue(kind, raw)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", key, ErrInvalidValue, err)
	}
	return h.Set(key, v)
}

func coerce(kind Kind, value any) (any, error) {
	switch kind {
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected an integer, got %v", v)
			}
			return int(v), nil
		}
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case KindString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case KindList:
		switch v := value.(type) {
		case []string:
			return slices.Clone(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list elements must be strings, got %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return SplitList(v), nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, value)
}

// ParseValue converts user text into a value of the given kind.
func ParseValue(kind Kind, raw string) (any, error) {
	switch kind {
	case KindInt:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return v, nil
	case KindList:
		return SplitList(raw), nil
	}
	return raw, nil
}

// CheckValue reports why v is not acceptable for key, or nil.
func CheckValue(key string, v any) error {
	ks, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	switch x := v.(type) {
	case int:
		if float64(x) < ks.min {
			return fmt.Errorf("%s must be at least %d", key, int(ks.min))
		}
	case float64:
		if x < ks.min {
			if ks.min > 0 {
				return fmt.Errorf("%s must be greater than 0", key)
			}
			return fmt.Errorf("%s must not be negative", key)
		}
	case string:
		if strings.TrimSpace(x) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	case []string:
		for _, item := range x {
			if strings.TrimSpace(item) == "" {
				return fmt.Errorf("%s must not contain empty entries", key)
			}
		}
	}
	return nil
}

// Validate checks every setting.
func (h *Hyperparameters) Validate() error {
	var errs []error
	for _, key := range Keys() {
		v, _ := h.Get(key)
		if err := CheckValue(key, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clone returns a copy that shares no slices with h.
func (h Hyperparameters) Clone() Hyperparameters {
	h.DataSources = slices.Clone(h.DataSources)
	h.RSSFeeds = slices.Clone(h.RSSFeeds)
	return h
}

// UsesRSS reports whether "rss" is among the data sources.
func (h *Hyperparameters) UsesRSS() bool {
	for _, s := range h.DataSources {
		if s == "rss" {
			return true
		}
	}
	return false
}

// SplitList splits comma separated text, trimming entries and dropping empty ones.
func SplitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FormatValue renders a setting the way prompts display it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return FormatFloat(x)
	case []string:
		return strings.Join(x, ",")
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// FormatFloat renders f as a Python float literal: "0.0005", "2.0", "1e-05".
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}
