package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"leadmatch/internal/logging"
)

// Refresher reloads the inventory snapshot
type Refresher interface {
	Refresh(ctx context.Context, force bool) error
}

// Scheduler runs the periodic inventory refresh
type Scheduler struct {
	spec      string
	refresher Refresher
	timeout   time.Duration
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// New creates a scheduler for a cron spec such as "@every 15m" or
// "*/10 * * * *"
func New(spec string, refresher Refresher, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		spec:      spec,
		refresher: refresher,
		timeout:   timeout,
		cron:      cron.New(),
	}
}

// Start registers the refresh job. An empty spec disables the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		log.Println("No inventory refresh schedule configured")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	log.Printf("⏰ Inventory refresh scheduled: %s", s.spec)
	return nil
}

// Stop halts the schedule and waits for a running job
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce forces one refresh. Overlapping runs are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logging.Debugf("⏭️  Inventory refresh still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.refresher.Refresh(runCtx, true)
	if err != nil {
		log.Printf("❌ Scheduled inventory refresh failed: %v", err)
	} else {
		log.Printf("🔄 Inventory refreshed in %v", time.Since(start))
	}

	s.mu.Lock()
	s.running = false
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()
}

// LastRun reports when the last refresh started and how it ended
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
