// Package calendar projects watering reminders forward in time and exports
// them as an iCalendar feed.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
)

const (
	// MaxHorizon bounds how far ahead projections run.
	MaxHorizon = 366 * 24 * time.Hour

	productID     = "-//plantcare//watering reminders//EN"
	eventDuration = 15 * time.Minute

	utcStampFormat   = "20060102T150405Z"
	localStampFormat = "20060102T150405"
)

// Rule is a plant's projected watering series: the next reminder and the
// recurrence that follows if each watering happens on time.
type Rule struct {
	State domain.WateringState
	Start time.Time
	rule  *rrule.RRule
	opt   rrule.ROption
}

// RuleFor returns the projected series for state, or nil when no reminder
// would be scheduled (no cadence, never watered, or past due).
func RuleFor(state domain.WateringState, now time.Time) (*Rule, error) {
	res := scheduler.Preview(state, now)
	if res.Outcome != domain.OutcomeScheduled || res.Fire == nil {
		return nil, nil
	}

	start := res.Fire.At
	interval := state.Cadence.IntervalDays
	if res.Fire.Kind == domain.FireDaily {
		next, err := scheduler.Upcoming(*res.Fire, now)
		if err != nil {
			return nil, fmt.Errorf("upcoming daily fire: %w", err)
		}
		start = next
		interval = 1
	}

	opt := rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: interval,
		Dtstart:  start,
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return &Rule{State: state, Start: start, rule: r, opt: opt}, nil
}

// Between lists occurrences in [from, until], inclusive.
func (r *Rule) Between(from, until time.Time) []time.Time {
	return r.rule.Between(from, until, true)
}

// RRule renders the recurrence without DTSTART, as it appears in a VEVENT.
func (r *Rule) RRule() string {
	return r.opt.RRuleString()
}

// Project lists the reminders state would produce between now and now+horizon,
// assuming every watering happens when reminded.
func Project(state domain.WateringState, now time.Time, horizon time.Duration) ([]time.Time, error) {
	horizon = min(horizon, MaxHorizon)
	r, err := RuleFor(state, now)
	if err != nil || r == nil {
		return nil, err
	}
	return r.Between(now, now.Add(horizon)), nil
}

// Feed renders one recurring VEVENT per plant with a pending reminder. The
// event UID is the plant's reminder id, so a re-fetched feed updates events
// in place.
func Feed(states []domain.WateringState, now time.Time) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Plant watering")
	if tzid, ok := zoneID(now.Location()); ok {
		cal.SetXWRTimezone(tzid)
	}

	for _, state := range states {
		r, err := RuleFor(state, now)
		if err != nil {
			return "", fmt.Errorf("plant %s: %w", state.PlantID, err)
		}
		if r == nil {
			continue
		}

		content := domain.WateringContent(state.PlantName)
		ev := cal.AddEvent(scheduler.ReminderID(state.PlantID))
		ev.SetDtStampTime(now)
		setZonedTime(ev, ics.ComponentPropertyDtStart, r.Start)
		setZonedTime(ev, ics.ComponentPropertyDtEnd, r.Start.Add(eventDuration))
		ev.SetSummary(content.Title)
		ev.SetDescription(content.Body)
		ev.AddRrule(r.RRule())
	}

	return cal.Serialize(), nil
}

// setZonedTime writes t as local time with a TZID so that a daily RRULE keeps
// its wall-clock hour across DST transitions. Zones without an IANA name are
// written in UTC.
func setZonedTime(ev *ics.VEvent, prop ics.ComponentProperty, t time.Time) {
	tzid, ok := zoneID(t.Location())
	if !ok {
		ev.SetProperty(prop, t.UTC().Format(utcStampFormat))
		return
	}
	ev.SetProperty(prop, t.Format(localStampFormat), ics.WithTZID(tzid))
}

func zoneID(loc *time.Location) (string, bool) {
	name := loc.String()
	if loc == time.UTC || name == "UTC" || name == "Local" || name == "" {
		return "", false
	}
	return name, true
}
