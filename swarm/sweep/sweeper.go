// Package sweep schedules the background maintenance jobs: stale-agent
// detection, handoff expiry and consensus expiry. Jobs are registered by
// name with a fixed interval and run on a shared cron scheduler.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one sweep pass. It returns how many records it transitioned.
type Job func(ctx context.Context) (int, error)

// Sweeper runs registered jobs on their intervals. Passes of the same job
// never overlap; a pass that finds nothing to do is normal and cheap.
type Sweeper struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// New creates a stopped sweeper. timeout bounds each pass; zero means
// one minute.
func New(logger *zap.Logger, timeout time.Duration) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Sweeper{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:  logger.With(zap.String("component", "sweeper")),
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a named job running every interval. Registering a duplicate
// name is an error.
func (s *Sweeper) Register(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("sweep %s: interval must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("sweep %s: already registered", name)
	}

	id := s.cron.Schedule(cron.Every(every), cron.FuncJob(func() {
		s.run(name, job)
	}))
	s.entries[name] = id
	s.logger.Info("sweep registered",
		zap.String("job", name),
		zap.Duration("interval", every),
	)
	return nil
}

func (s *Sweeper) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := job(ctx)
	if err != nil {
		s.logger.Warn("sweep pass failed",
			zap.String("job", name),
			zap.Error(err),
		)
		return
	}
	if n > 0 {
		s.logger.Info("sweep pass done",
			zap.String("job", name),
			zap.Int("transitioned", n),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Start begins running registered jobs.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("sweeper started", zap.Int("jobs", len(s.entries)))
}

// Stop halts scheduling and waits for in-flight passes to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Running reports whether the sweeper is started.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs lists the registered job names.
func (s *Sweeper) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}
