package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pollboard/internal/bulkops"
)

// Default schedules (6-field cron, seconds first).
const (
	DefaultSweepSchedule       = "0 */30 * * * *" // every 30 minutes
	DefaultMaintenanceSchedule = "0 * * * * *"    // every minute
)

// Sweeper removes aged terminal operations from the progress store.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// PollMaintainer opens and closes polls whose schedule is due.
type PollMaintainer interface {
	ActivateDuePolls(ctx context.Context) (int, error)
	CloseDuePolls(ctx context.Context) (int, error)
}

// Config tunes the background jobs. Zero values fall back to the defaults.
type Config struct {
	SweepSchedule       string
	MaintenanceSchedule string
	Retention           time.Duration
}

// Service runs the periodic maintenance jobs: the progress-store retention
// sweep and activation/closing of polls whose scheduled times have passed.
type Service struct {
	cron      *cron.Cron
	sweeper   Sweeper
	polls     PollMaintainer
	retention time.Duration
	sweepSpec string
	maintSpec string
}

// NewService creates a new scheduler service
func NewService(sweeper Sweeper, polls PollMaintainer, cfg Config) *Service {
	sweepSpec := cfg.SweepSchedule
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSchedule
	}
	maintSpec := cfg.MaintenanceSchedule
	if maintSpec == "" {
		maintSpec = DefaultMaintenanceSchedule
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = bulkops.DefaultRetention
	}

	// Create cron scheduler with seconds support
	return &Service{
		cron:      cron.New(cron.WithSeconds()),
		sweeper:   sweeper,
		polls:     polls,
		retention: retention,
		sweepSpec: sweepSpec,
		maintSpec: maintSpec,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Service) Start() error {
	log.Println("Starting scheduler...")

	sweepSpec, err := normalizeCron(s.sweepSpec)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}
	maintSpec, err := normalizeCron(s.maintSpec)
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule: %w", err)
	}

	if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	if _, err := s.cron.AddFunc(maintSpec, s.runMaintenance); err != nil {
		return fmt.Errorf("failed to schedule poll maintenance job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (sweep: %s, maintenance: %s, retention: %v)",
		sweepSpec, maintSpec, s.retention)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		log.Println("Scheduler stopped")
	}
}

// runSweep removes terminal operations older than the retention window.
func (s *Service) runSweep() {
	if removed := s.sweeper.Sweep(s.retention); removed > 0 {
		log.Printf("Retention sweep removed %d finished bulk operation(s)", removed)
	}
}

// runMaintenance activates and closes polls whose schedule is due.
func (s *Service) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	activated, err := s.polls.ActivateDuePolls(ctx)
	if err != nil {
		log.Printf("WARNING: Poll activation job failed: %v", err)
	} else if activated > 0 {
		log.Printf("Activated %d scheduled poll(s)", activated)
	}

	closed, err := s.polls.CloseDuePolls(ctx)
	if err != nil {
		log.Printf("WARNING: Poll auto-close job failed: %v", err)
	} else if closed > 0 {
		log.Printf("Auto-closed %d due poll(s)", closed)
	}
}

// normalizeCron converts 5-field cron to 6-field format by prepending seconds
// 5-field: "minute hour day month dow" (standard cron)
// 6-field: "second minute hour day month dow" (robfig/cron with WithSeconds)
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)

	// Check if it's already 6-field
	fields := strings.Fields(cronExpr)
	if len(fields) == 6 {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cronExpr); err == nil {
			return cronExpr, nil // Valid 6-field expression
		}
	}

	// Assume 5-field, validate and convert
	if len(fields) == 5 {
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return "", fmt.Errorf("invalid 5-field cron expression: %w", err)
		}
		// Prepend seconds (0 = run at 0 seconds of the minute)
		return "0 " + cronExpr, nil
	}

	return "", fmt.Errorf("invalid cron expression: expected 5 or 6 fields, got %d", len(fields))
}
