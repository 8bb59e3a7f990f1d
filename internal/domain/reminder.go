package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrGatewayUnavailable wraps any rejected or failed call to the
// notification-delivery service (permission denied, transport error, 5xx).
var ErrGatewayUnavailable = errors.New("notification gateway unavailable")

type FireKind string

const (
	FireDaily FireKind = "daily"
	FireOnce  FireKind = "once"
)

// FireSpec says when a reminder triggers: every day at a wall-clock time, or
// once at an absolute instant.
type FireSpec struct {
	Kind  FireKind
	Daily TimeOfDay // set when Kind == FireDaily
	At    time.Time // set when Kind == FireOnce
}

func DailyAt(t TimeOfDay) FireSpec {
	return FireSpec{Kind: FireDaily, Daily: t}
}

func OnceAt(at time.Time) FireSpec {
	return FireSpec{Kind: FireOnce, At: at}
}

// PastDue reports whether a one-shot spec is not after now. Daily rules are
// never past due. The boundary is inclusive: At == now is past due.
func (f FireSpec) PastDue(now time.Time) bool {
	return f.Kind == FireOnce && !f.At.After(now)
}

// Equal compares by instant for one-shot specs, so the same moment in two
// zones is the same spec.
func (f FireSpec) Equal(other FireSpec) bool {
	if f.Kind != other.Kind {
		return false
	}
	if f.Kind == FireOnce {
		return f.At.Equal(other.At)
	}
	return f.Daily == other.Daily
}

func (f FireSpec) String() string {
	if f.Kind == FireDaily {
		return "daily at " + f.Daily.String()
	}
	return "once at " + f.At.Format(time.RFC3339)
}

type ReminderContent struct {
	Title string
	Body  string
}

// WateringContent builds the notification text for a plant.
func WateringContent(plantName string) ReminderContent {
	name := plantName
	if name == "" {
		name = "your plant"
	}
	return ReminderContent{
		Title: fmt.Sprintf("Time to water %s", name),
		Body:  fmt.Sprintf("%s is due for watering.", name),
	}
}

// ReminderRequest is what the scheduler hands to the notification gateway.
type ReminderRequest struct {
	PlantID    string
	ReminderID string
	Fire       FireSpec
	Content    ReminderContent
}

// Outcome is the observable result of one scheduler decision.
type Outcome string

const (
	OutcomeScheduled      Outcome = "scheduled"
	OutcomePastDueSkipped Outcome = "past_due_skipped"
	OutcomeNothingToDo    Outcome = "no_schedule"
	OutcomeCanceled       Outcome = "canceled"
	OutcomeFailed         Outcome = "failed"
)
