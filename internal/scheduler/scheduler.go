package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	ctxlog "github.com/ErlanBelekov/plantcare/internal/log"
	"github.com/ErlanBelekov/plantcare/internal/metrics"
)

// Gateway is the notification-delivery service. Cancel of an unknown id must
// succeed. Schedule for an id that already has a reminder replaces it.
type Gateway interface {
	Schedule(ctx context.Context, req domain.ReminderRequest) error
	Cancel(ctx context.Context, reminderID string) error
}

type Result struct {
	Outcome    domain.Outcome
	ReminderID string
	Fire       *domain.FireSpec // nil when nothing was computed
}

// Scheduler turns watering-state changes into gateway calls. It keeps no
// record of what it scheduled: each call cancels the plant's slot and derives
// the replacement from the state it is given. Callers serialize calls per
// plant (see PlantLocks).
type Scheduler struct {
	gateway Gateway
	logger  *slog.Logger
}

func New(gateway Gateway, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		logger:  logger.With("component", "reminder_scheduler"),
	}
}

// OnCadenceOrWateringChanged replaces the plant's reminder with one derived
// from state. A gateway failure is returned wrapped in
// domain.ErrGatewayUnavailable; if the cancel fails nothing is created.
func (s *Scheduler) OnCadenceOrWateringChanged(ctx context.Context, state domain.WateringState, now time.Time) (Result, error) {
	ctx = ctxlog.WithPlantID(ctx, state.PlantID)
	res := Result{ReminderID: ReminderID(state.PlantID)}

	if err := s.cancel(ctx, res.ReminderID); err != nil {
		return s.finish(ctx, res, domain.OutcomeFailed), err
	}

	if !state.Schedulable() {
		return s.finish(ctx, res, domain.OutcomeNothingToDo), nil
	}

	fire := NextOccurrence(*state.LastWateredAt, *state.Cadence, now)
	res.Fire = &fire

	if fire.PastDue(now) {
		s.logger.InfoContext(ctx, "reminder already due, not scheduling", "fire", fire.String(), "now", now)
		return s.finish(ctx, res, domain.OutcomePastDueSkipped), nil
	}

	req := domain.ReminderRequest{
		PlantID:    state.PlantID,
		ReminderID: res.ReminderID,
		Fire:       fire,
		Content:    domain.WateringContent(state.PlantName),
	}
	if err := s.schedule(ctx, req); err != nil {
		return s.finish(ctx, res, domain.OutcomeFailed), err
	}

	s.logger.InfoContext(ctx, "reminder scheduled", "reminder_id", res.ReminderID, "fire", fire.String())
	return s.finish(ctx, res, domain.OutcomeScheduled), nil
}

// OnWateringRecorded reschedules with lastWateredAt moved to wateredAt. The
// cadence need not have changed.
func (s *Scheduler) OnWateringRecorded(ctx context.Context, state domain.WateringState, wateredAt, now time.Time) (Result, error) {
	state.LastWateredAt = &wateredAt
	return s.OnCadenceOrWateringChanged(ctx, state, now)
}

// OnPlantDeleted cancels the plant's reminder without recreating it.
func (s *Scheduler) OnPlantDeleted(ctx context.Context, plantID string) (Result, error) {
	ctx = ctxlog.WithPlantID(ctx, plantID)
	res := Result{ReminderID: ReminderID(plantID)}

	if err := s.cancel(ctx, res.ReminderID); err != nil {
		return s.finish(ctx, res, domain.OutcomeFailed), err
	}
	return s.finish(ctx, res, domain.OutcomeCanceled), nil
}

// Preview reports what OnCadenceOrWateringChanged would decide for state,
// without calling the gateway.
func Preview(state domain.WateringState, now time.Time) Result {
	res := Result{ReminderID: ReminderID(state.PlantID), Outcome: domain.OutcomeNothingToDo}
	if !state.Schedulable() {
		return res
	}

	fire := NextOccurrence(*state.LastWateredAt, *state.Cadence, now)
	res.Fire = &fire
	if fire.PastDue(now) {
		res.Outcome = domain.OutcomePastDueSkipped
	} else {
		res.Outcome = domain.OutcomeScheduled
	}
	return res
}

func (s *Scheduler) cancel(ctx context.Context, reminderID string) error {
	start := time.Now()
	err := s.gateway.Cancel(ctx, reminderID)
	observeGatewayCall("cancel", start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "cancel reminder", "reminder_id", reminderID, "error", err)
		return gatewayError(fmt.Sprintf("cancel reminder %s", reminderID), err)
	}
	return nil
}

func (s *Scheduler) schedule(ctx context.Context, req domain.ReminderRequest) error {
	start := time.Now()
	err := s.gateway.Schedule(ctx, req)
	observeGatewayCall("schedule", start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "schedule reminder", "reminder_id", req.ReminderID, "fire", req.Fire.String(), "error", err)
		return gatewayError(fmt.Sprintf("schedule reminder %s", req.ReminderID), err)
	}
	return nil
}

func (s *Scheduler) finish(ctx context.Context, res Result, outcome domain.Outcome) Result {
	res.Outcome = outcome
	metrics.ReminderOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	s.logger.DebugContext(ctx, "reminder decision", "reminder_id", res.ReminderID, "outcome", outcome)
	return res
}

func gatewayError(op string, err error) error {
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrGatewayUnavailable, err)
}

func observeGatewayCall(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayCallDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
