package handoff

import (
	"fmt"
	"time"

	"chat-handoff-be/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Reclaimer periodically sweeps the orchestrator for state that lost its
// timer or its connection. Each sweep step is isolated so one panicking step
// never skips the rest.
type Reclaimer struct {
	presence *Tracker
	ledger   *Ledger
	reviews  *Workflow
	cfg      *RuntimeConfig
	logger   logger.ILogger

	cron *cron.Cron
}

func NewReclaimer(cfg *RuntimeConfig, presence *Tracker, ledger *Ledger, reviews *Workflow, log logger.ILogger) *Reclaimer {
	return &Reclaimer{
		presence: presence,
		ledger:   ledger,
		reviews:  reviews,
		cfg:      cfg,
		logger:   log,
	}
}

// Start schedules the sweep at the configured interval.
func (r *Reclaimer) Start() error {
	interval := r.cfg.Get().ReclaimInterval
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), r.Sweep); err != nil {
		return fmt.Errorf("schedule reclaimer: %w", err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("Reclaimer", "Started", map[string]interface{}{
		"interval": interval.String(),
	})
	return nil
}

// Stop halts the schedule. A sweep already running finishes.
func (r *Reclaimer) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Sweep runs all four reclamation steps once. Exported so a sweep can also be
// forced through the admin surface.
func (r *Reclaimer) Sweep() {
	cfg := r.cfg.Get()

	var deadSessions, staleSessions, stuckTasks, staleReviews int

	r.step("dead sessions", func() {
		deadSessions = r.presence.ReclaimDead()
	})
	r.step("stale sessions", func() {
		staleSessions = r.presence.ReclaimStale(3 * cfg.TypingTimeout)
	})
	r.step("stuck tasks", func() {
		stuckTasks = r.ledger.ReclaimStuck(30 * time.Second)
	})
	r.step("stale reviews", func() {
		staleReviews = r.reviews.ReclaimStale(2*cfg.AdminReviewDelay + time.Minute)
	})

	if deadSessions+staleSessions+stuckTasks+staleReviews > 0 {
		r.logger.Info("Reclaimer", "Sweep reclaimed state", map[string]interface{}{
			"dead_sessions":  deadSessions,
			"stale_sessions": staleSessions,
			"stuck_tasks":    stuckTasks,
			"stale_reviews":  staleReviews,
		})
	}
}

// step isolates one sweep stage behind a recover.
func (r *Reclaimer) step(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Reclaimer", "Sweep step panicked", map[string]interface{}{
				"step":  name,
				"panic": fmt.Sprintf("%v", rec),
			})
		}
	}()
	fn()
}
