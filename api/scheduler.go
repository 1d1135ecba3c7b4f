/*
scheduler.go - Automated escalation refresh

PURPOSE:
  Escalation levels only change on mutation; an item nobody touches would
  keep its level forever. The scheduler periodically re-evaluates every
  open item against the clock and persists the levels that moved.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Only changed levels are written (actionitem.Service.RefreshEscalation)
  - Each change is handed to Notify; the default logs it

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewEscalationScheduler(service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshEscalations (manual refresh), GetEscalationSchedule
  - actionitem/service.go: RefreshEscalation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/action-tracker/actionitem"
)

// EscalationScheduler refreshes escalation levels on a ticker.
type EscalationScheduler struct {
	Items         *actionitem.Service
	CheckInterval time.Duration
	Enabled       bool
	// Notify is called once per level change.
	Notify func(actionitem.Escalation)

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastRun has its own lock: Stop holds mu while the loop finishes a run.
	lastRunMu sync.Mutex
	lastRun   time.Time
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Enabled       bool
	Running       bool
	CheckInterval time.Duration
	LastRun       time.Time // zero before the first scheduled run
	NextRun       time.Time // zero while stopped
}

// NewEscalationScheduler creates a new scheduler.
func NewEscalationScheduler(items *actionitem.Service) *EscalationScheduler {
	return &EscalationScheduler{
		Items:         items,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		Notify:        logEscalation,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (es *EscalationScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if es.ticker != nil {
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.stop = make(chan struct{})
	es.wg.Add(1)

	go es.run(es.ticker, es.stop)

	log.Printf("[Scheduler] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (es *EscalationScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		es.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (es *EscalationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer es.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	es.checkAndEscalate(ctx)

	for {
		select {
		case <-ticker.C:
			es.checkAndEscalate(ctx)
		case <-stop:
			return
		}
	}
}

func (es *EscalationScheduler) checkAndEscalate(ctx context.Context) {
	es.lastRunMu.Lock()
	es.lastRun = time.Now()
	es.lastRunMu.Unlock()

	changed, err := es.RunNow(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error refreshing escalations: %v", err)
		return
	}
	if len(changed) > 0 {
		log.Printf("[Scheduler] Completed: %d escalation levels changed", len(changed))
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (es *EscalationScheduler) RunNow(ctx context.Context) ([]actionitem.Escalation, error) {
	changed, err := es.Items.RefreshEscalation(ctx)
	if err != nil {
		return nil, err
	}
	if es.Notify != nil {
		for _, e := range changed {
			es.Notify(e)
		}
	}
	return changed, nil
}

// GetNextRunTime returns when the next scheduled check fires, or the zero
// time while the scheduler is stopped.
func (es *EscalationScheduler) GetNextRunTime() time.Time {
	es.mu.Lock()
	running := es.ticker != nil
	es.mu.Unlock()
	if !running {
		return time.Time{}
	}
	if last := es.lastRunTime(); !last.IsZero() {
		return last.Add(es.CheckInterval)
	}
	return time.Now().Add(es.CheckInterval)
}

// Status reports configuration and run times for the admin endpoint.
func (es *EscalationScheduler) Status() SchedulerStatus {
	next := es.GetNextRunTime()
	return SchedulerStatus{
		Enabled:       es.Enabled,
		Running:       !next.IsZero(),
		CheckInterval: es.CheckInterval,
		LastRun:       es.lastRunTime(),
		NextRun:       next,
	}
}

func (es *EscalationScheduler) lastRunTime() time.Time {
	es.lastRunMu.Lock()
	defer es.lastRunMu.Unlock()
	return es.lastRun
}

func logEscalation(e actionitem.Escalation) {
	target := e.EscalateTo
	if target == "" {
		target = "-"
	}
	log.Printf("[Escalation] %s %q level %d -> %d (notify %s)", e.ItemID, e.Title, e.From, e.To, target)
}
