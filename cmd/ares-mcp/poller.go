package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aresml/arescfg"
)

// feedReport is the outcome of one feed health check.
type feedReport struct {
	CheckedAt time.Time            `json:"checked_at"`
	Healthy   int                  `json:"healthy"`
	Total     int                  `json:"total"`
	Cached    bool                 `json:"cached"`
	Feeds     []arescfg.FeedStatus `json:"feeds"`
}

// poller runs a background feed health-check loop and keeps the latest
// report. All feed checks, background or on demand, go through poll so only
// one runs at a time.
type poller struct {
	engine *arescfg.Engine
	logger *slog.Logger

	mu   sync.Mutex
	last *feedReport

	done     chan struct{}
	stopOnce sync.Once
}

func newPoller(engine *arescfg.Engine, logger *slog.Logger) *poller {
	return &poller{
		engine: engine,
		logger: logger.With("component", "poller"),
		done:   make(chan struct{}),
	}
}

// start launches the background poll loop. It polls immediately, then on
// each tick of interval.
func (p *poller) start(ctx context.Context, interval time.Duration) {
	go p.loop(ctx, interval)
	p.logger.Info("started", "interval", interval.String())
}

// stop signals the poll loop to exit. Safe to call when never started.
func (p *poller) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// poll checks every configured feed and stores the report.
func (p *poller) poll(ctx context.Context) (*feedReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses, err := p.engine.CheckFeeds(ctx)
	if err != nil {
		return nil, err
	}

	report := &feedReport{CheckedAt: time.Now().UTC(), Total: len(statuses), Feeds: statuses}
	for _, s := range statuses {
		if s.OK {
			report.Healthy++
		}
	}
	p.last = report

	p.logger.Info("feeds checked", "healthy", report.Healthy, "total", report.Total)
	return report, nil
}

// latest returns a copy of the last report marked as cached, or nil.
func (p *poller) latest() *feedReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	r := *p.last
	r.Cached = true
	return &r
}

func (p *poller) loop(ctx context.Context, interval time.Duration) {
	if _, err := p.poll(ctx); err != nil {
		p.logger.Warn("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.poll(ctx); err != nil {
				p.logger.Warn("poll failed", "error", err)
			}
		}
	}
}
