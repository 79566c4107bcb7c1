package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aresml/arescfg"
)

// watchFeeds re-checks the configured feeds on a timer until ctx is
// canceled by SIGINT/SIGTERM. Each round reloads the config file so feeds
// added in the meantime are picked up.
func watchFeeds(ctx context.Context, engine *arescfg.Engine, every string) error {
	interval, err := time.ParseDuration(every)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", every, err)
	}
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}

	logger.Info("watching feeds", "interval", interval.String())

	round := 1
	for {
		start := time.Now()
		statuses, err := engine.CheckFeeds(ctx)
		if err != nil {
			logger.Error("feed check failed", "round", round, "error", err)
		} else {
			failed := 0
			for _, s := range statuses {
				if !s.OK {
					failed++
				}
			}
			formatter.OutputFeedStatuses(statuses)
			logger.Info("feed check completed", "round", round, "failed", failed,
				"duration", time.Since(start).Round(time.Millisecond).String())
		}
		round++

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("received shutdown signal, exiting")
			return nil
		case <-timer.C:
		}
	}
}
