// Package scheduler runs the offer service's periodic maintenance: redriving
// dead-lettered offer letters and probing the store and Redis so the gRPC
// health status reflects reality.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Redriver moves dead-lettered jobs back onto their queue.
type Redriver interface {
	Redrive(ctx context.Context) (int, error)
}

// Pinger is a dependency the probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthSetter receives the probe's verdict.
type HealthSetter interface {
	SetServing(ok bool)
}

// Config names the jobs' schedules in cron syntax, e.g. "@every 30m".
type Config struct {
	RedriveSpec string
	ProbeSpec   string
}

// Scheduler wraps robfig/cron and owns the maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	redriver Redriver
	checks   map[string]Pinger
	health   HealthSetter
	log      *slog.Logger
}

// New creates a Scheduler. checks maps a dependency name to its probe.
func New(cfg Config, redriver Redriver, checks map[string]Pinger, health HealthSetter, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	logger := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		cfg:      cfg,
		redriver: redriver,
		checks:   checks,
		health:   health,
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler. The probe also runs
// once immediately so health is known without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.redriver != nil && s.cfg.RedriveSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.RedriveSpec, func() { s.RunRedrive(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc redrive %q: %w", s.cfg.RedriveSpec, err)
		}
	}
	if s.cfg.ProbeSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.ProbeSpec, func() { s.RunProbe(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc probe %q: %w", s.cfg.ProbeSpec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", "redrive", s.cfg.RedriveSpec, "probe", s.cfg.ProbeSpec)

	go s.RunProbe(ctx)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunRedrive moves every dead-lettered letter back onto the queue.
func (s *Scheduler) RunRedrive(ctx context.Context) {
	moved, err := s.redriver.Redrive(ctx)
	if err != nil {
		s.log.Error("redrive failed", "moved", moved, "err", err)
		return
	}
	if moved > 0 {
		s.log.Info("redrove dead-lettered letters", "moved", moved)
	}
}

// RunProbe pings every dependency and reports whether all answered.
func (s *Scheduler) RunProbe(ctx context.Context) bool {
	ok := true
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.log.Warn("dependency probe failed", "dependency", name, "err", err)
			ok = false
		}
	}
	if s.health != nil {
		s.health.SetServing(ok)
	}
	return ok
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
