package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// startSweep schedules DeleteExpired on the manager's own cron scheduler.
func (m *Manager) startSweep() error {
	if m.opts.sweepSchedule == "" && m.opts.sweepInterval <= 0 {
		return nil
	}

	logger := cronLogger{log: m.opts.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	job := cron.FuncJob(func() {
		m.DeleteExpired(context.Background())
	})

	if m.opts.sweepSchedule != "" {
		if _, err := c.AddJob(m.opts.sweepSchedule, job); err != nil {
			return fmt.Errorf("cache: invalid sweep schedule %q: %w", m.opts.sweepSchedule, err)
		}
	} else {
		c.Schedule(intervalSchedule(m.opts.sweepInterval), job)
	}

	c.Start()
	m.cron = c
	return nil
}

// stopSweep stops the scheduler and waits for a running sweep to finish.
func (m *Manager) stopSweep() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

// DeleteExpired removes every entry whose TTL has elapsed, together with its
// tag index references, and returns the number of reclaimed entries.
// It runs periodically in the background; Get never depends on it.
func (m *Manager) DeleteExpired(ctx context.Context) int {
	start := time.Now()
	now := m.opts.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}

	var reclaimed []string
	for key, e := range m.store.items {
		if e == nil {
			m.opts.logger.WarnContext(ctx, "dropping malformed cache entry", slog.String("key", key))
			m.store.detach(key, nil)
			continue
		}
		if e.isExpired(now) {
			m.store.remove(key)
			reclaimed = append(reclaimed, key)
		}
	}
	remaining := m.store.len()
	m.stats.expired.Add(int64(len(reclaimed)))
	m.stats.lastSweepReclaimed.Store(int64(len(reclaimed)))
	m.stats.lastSweep.Store(now.UnixNano())
	m.mu.Unlock()

	m.opts.logger.InfoContext(ctx, "cache sweep completed",
		slog.Int("reclaimed", len(reclaimed)),
		slog.Int("remaining", remaining),
		slog.Duration("duration", time.Since(start)),
	)

	m.notify(EvictExpired, reclaimed...)
	return len(reclaimed)
}

// intervalSchedule fires at a fixed delay after each activation.
// Unlike cron.Every it keeps sub-second precision.
type intervalSchedule time.Duration

// Next implements cron.Schedule.
func (d intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

var _ cron.Schedule = intervalSchedule(0)

// cronLogger adapts slog to the cron.Logger interface.
// Scheduler chatter goes to debug; job panics are reported as errors.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cache sweep scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cache sweep scheduler: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
