package scheduler

import (
	"fmt"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/robfig/cron/v3"
)

// NextOccurrence computes the fire spec for a plant's next watering reminder.
//
// A daily cadence yields a recurring DailyAt rule regardless of lastWateredAt.
// Otherwise the reminder lands intervalDays calendar days after the last
// watering, at the cadence's reminder time. Both the day arithmetic and the
// time substitution use now's location as the local calendar.
//
// The result is returned even when it is not after now; deciding what to do
// with a past-due one-shot is the caller's job.
func NextOccurrence(lastWateredAt time.Time, cadence domain.CadenceSpec, now time.Time) domain.FireSpec {
	if cadence.Daily() {
		return domain.DailyAt(cadence.ReminderTime)
	}

	loc := now.Location()
	last := lastWateredAt.In(loc)
	at := time.Date(
		last.Year(), last.Month(), last.Day()+cadence.IntervalDays,
		cadence.ReminderTime.Hour, cadence.ReminderTime.Minute, 0, 0,
		loc,
	)
	return domain.OnceAt(at)
}

// CronExpr renders a daily fire spec as a standard 5-field cron expression.
// One-shot specs have no cron form and return "".
func CronExpr(f domain.FireSpec) string {
	if f.Kind != domain.FireDaily {
		return ""
	}
	return fmt.Sprintf("%d %d * * *", f.Daily.Minute, f.Daily.Hour)
}

// Upcoming returns the first instant strictly after now at which f fires.
// For one-shot specs that is f.At itself, past or not.
func Upcoming(f domain.FireSpec, now time.Time) (time.Time, error) {
	if f.Kind == domain.FireOnce {
		return f.At, nil
	}
	sched, err := cron.ParseStandard(CronExpr(f))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse daily rule %q: %w", CronExpr(f), err)
	}
	return sched.Next(now), nil
}
