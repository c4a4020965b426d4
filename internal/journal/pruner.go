// pruner.go removes old journal records on a cron schedule.

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field cron expressions and descriptors
// such as @hourly.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ErrScheduleNeverFires is returned for expressions that name no real
// date, such as "0 0 30 2 *".
var ErrScheduleNeverFires = errors.New("schedule never fires")

// ParseSchedule parses a prune schedule expression. Expressions that parse
// but have no next activation are rejected.
func ParseSchedule(expression string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expression, err)
	}
	if schedule.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrScheduleNeverFires, expression)
	}
	return schedule, nil
}

// Pruner periodically deletes records older than the retention window.
type Pruner struct {
	journal   *Journal
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
	stopped   chan struct{}
}

// NewPruner creates a pruner for j running on schedule.
func NewPruner(j *Journal, schedule cron.Schedule, retention time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{
		journal:   j,
		schedule:  schedule,
		retention: retention,
		logger:    logger,
		now:       time.Now,
		stopped:   make(chan struct{}),
	}
}

// Run prunes once immediately and then at every scheduled time until ctx is
// cancelled. It should be run in a goroutine.
func (p *Pruner) Run(ctx context.Context) {
	defer close(p.stopped)

	p.logger.Info("journal pruner started",
		slog.Duration("retention", p.retention),
	)
	p.PruneOnce()

	for {
		next := p.schedule.Next(p.now())
		if next.IsZero() {
			p.logger.Error("prune schedule has no next run, pruner stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("journal pruner stopping")
			return
		case <-timer.C:
			p.PruneOnce()
		}
	}
}

// PruneOnce deletes records older than the retention window.
func (p *Pruner) PruneOnce() int {
	cutoff := p.now().Add(-p.retention)
	removed, err := p.journal.PruneBefore(cutoff)
	if err != nil {
		p.logger.Error("failed to prune journal",
			slog.String("error", err.Error()),
		)
		return 0
	}
	if removed > 0 {
		p.logger.Info("pruned journal",
			slog.Int("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	return removed
}

// Shutdown waits for Run to return. The caller cancels Run's context first.
func (p *Pruner) Shutdown(ctx context.Context) error {
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
