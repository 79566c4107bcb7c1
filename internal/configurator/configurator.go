// Package configurator walks the user through every training setting.
package configurator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aresml/arescfg/internal/storage"
)

// Store is the subset of storage.Store the configurator needs.
type Store interface {
	Load() (storage.Hyperparameters, error)
	Save(h storage.Hyperparameters) error
}

type Configurator struct {
	store    Store
	prompter *Prompter
	out      io.Writer
	logger   *slog.Logger
}

// New creates a configurator reading answers from in and writing prompts to out.
func New(store Store, in io.Reader, out io.Writer, logger *slog.Logger) *Configurator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Configurator{
		store:    store,
		prompter: NewPrompter(in, out),
		out:      out,
		logger:   logger.With("component", "configurator"),
	}
}

// Configure loads the current configuration, asks for every field with the
// current value as default, saves the result and returns it. Nothing is saved
// if input ends early.
func (c *Configurator) Configure(ctx context.Context) (storage.Hyperparameters, error) {
	h, err := c.store.Load()
	if err != nil {
		return storage.Hyperparameters{}, err
	}

	fmt.Fprintln(c.out, "\n=== ARES Configuration Setup ===")
	fmt.Fprintln(c.out, "Leave blank to keep default values.")
	fmt.Fprintln(c.out)

	changed := 0
	for _, f := range Fields {
		if err := ctx.Err(); err != nil {
			return storage.Hyperparameters{}, err
		}
		if f.Key == "rss_feeds" && !h.UsesRSS() {
			continue
		}

		current, err := h.Get(f.Key)
		if err != nil {
			return storage.Hyperparameters{}, err
		}
		ans, err := c.prompter.Ask(f.Label, storage.FormatValue(current), f.parser())
		if err != nil {
			return storage.Hyperparameters{}, fmt.Errorf("%s: %w", f.Key, err)
		}
		if !ans.Provided {
			continue
		}
		if err := h.Set(f.Key, ans.Value); err != nil {
			return storage.Hyperparameters{}, err
		}
		changed++
	}

	if err := c.store.Save(h); err != nil {
		return storage.Hyperparameters{}, err
	}
	c.logger.Info("configuration saved", "changed", changed)
	return h, nil
}
