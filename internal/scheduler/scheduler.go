package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/pipeline"
)

// Sweeper processes rows that are marked as ordered but were never notified
type Sweeper interface {
	SweepPending(ctx context.Context, opts pipeline.SweepOptions) ([]pipeline.Result, error)
}

// Summary describes one sweep run
type Summary struct {
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration"`
	Processed int                      `json:"processed"`
	Outcomes  map[pipeline.Outcome]int `json:"outcomes"`
	Error     string                   `json:"error,omitempty"`
}

// Scheduler runs the pending-row sweep periodically
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	sweeper   Sweeper
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	lastRun   *Summary
	runMu     sync.Mutex
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, sweeper Sweeper) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		config:  cfg,
		sweeper: sweeper,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.IntervalMinutes <= 0 {
		return fmt.Errorf("invalid sweep interval: %d minutes", s.config.IntervalMinutes)
	}

	// Run every N minutes
	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()
	s.cron.Remove(s.entryID)

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) sweep() {
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping sweep")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	s.run(ctx)
}

// run executes one sweep. Overlapping runs are skipped.
func (s *Scheduler) run(ctx context.Context) *Summary {
	if !s.runMu.TryLock() {
		logrus.Warn("Previous sweep still running, skipping")
		return nil
	}
	defer s.runMu.Unlock()
	s.wg.Add(1)
	defer s.wg.Done()

	logrus.Info("Starting pending row sweep")
	summary := &Summary{StartedAt: time.Now(), Outcomes: map[pipeline.Outcome]int{}}

	// Scheduled runs never retry rows that already failed.
	results, err := s.sweeper.SweepPending(ctx, pipeline.SweepOptions{})
	for _, r := range results {
		summary.Outcomes[r.Outcome]++
	}
	summary.Processed = len(results)
	summary.Duration = time.Since(summary.StartedAt)
	if err != nil {
		summary.Error = err.Error()
		logrus.Errorf("Sweep failed: %v", err)
	} else {
		logrus.Infof("Sweep completed in %v, %d rows processed", summary.Duration, summary.Processed)
	}

	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()
	return summary
}

// RunOnce runs the sweep once (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (*Summary, error) {
	logrus.Info("Running sweep once")
	summary := s.run(ctx)
	if summary == nil {
		return nil, fmt.Errorf("sweep already in progress")
	}
	return summary, nil
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns the summary of the most recent sweep, if any
func (s *Scheduler) LastRun() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Wait waits for a running sweep to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
