package usecase

import (
	"time"

	"github.com/naka-gawa/github-traffic/internal/domain"
)

// Default offsets. GitHub keeps per-day traffic for a trailing 14-day window.
const (
	ManualOffsetDays    = 13
	ScheduledOffsetDays = 1
	DefaultBackfillDays = 14
	DefaultBackfillLag  = 2
)

// DateSelector decides which dates a run collects.
type DateSelector struct {
	// OffsetDays is how many days before now the single incremental date lies.
	OffsetDays int
	// Backfill collects BackfillDays dates on a first run instead of a single date.
	Backfill        bool
	BackfillDays    int
	BackfillLagDays int
	// Force re-collects the incremental date even if it is already stored.
	Force bool
}

// Select returns the target dates in ascending order. prior is nil on a first run.
// The result is empty when the incremental date is already stored and Force is unset.
func (s DateSelector) Select(prior *domain.Dataset, now time.Time) []domain.Date {
	today := domain.DateOf(now)

	if prior == nil && s.Backfill && s.BackfillDays > 0 {
		oldest := -(s.BackfillLagDays + s.BackfillDays - 1)
		dates := make([]domain.Date, 0, s.BackfillDays)
		for offset := oldest; offset <= -s.BackfillLagDays; offset++ {
			dates = append(dates, today.AddDays(offset))
		}
		return dates
	}

	target := today.AddDays(-s.OffsetDays)
	if prior.HasDate(target) && !s.Force {
		return nil
	}
	return []domain.Date{target}
}
