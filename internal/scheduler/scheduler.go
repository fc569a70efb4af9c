// Package scheduler runs periodic housekeeping for the long-running listener.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSpec evicts expired entries every five minutes.
const DefaultSpec = "@every 5m"

// Sweeper removes expired entries and reports how many were dropped.
type Sweeper interface {
	Sweep() int
}

// SweepFunc adapts a plain function to Sweeper.
type SweepFunc func() int

func (f SweepFunc) Sweep() int { return f() }

type Scheduler struct {
	cron     *cron.Cron
	sweepers map[string]Sweeper
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		sweepers: map[string]Sweeper{},
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Add registers a named sweeper. Call before Register.
func (s *Scheduler) Add(name string, sw Sweeper) {
	if sw != nil {
		s.sweepers[name] = sw
	}
}

// Register schedules the sweep job on spec; blank uses DefaultSpec.
func (s *Scheduler) Register(spec string) error {
	if len(s.sweepers) == 0 {
		return errors.New("scheduler: no sweepers registered")
	}
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("scheduler: register sweep %q: %w", spec, err)
	}
	return nil
}

// RunNow executes every sweeper once and returns the total removed.
func (s *Scheduler) RunNow() int {
	total := 0
	for name, sw := range s.sweepers {
		n := sw.Sweep()
		total += n
		if n > 0 {
			s.logger.Info("swept expired entries", slog.String("target", name), slog.Int("removed", n))
		}
	}
	return total
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
