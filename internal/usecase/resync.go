package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/metrics"
)

type ResyncSummary struct {
	Processed int
	Scheduled int
	Skipped   int // past due or no cadence
	Gone      int // deleted after the batch was listed
	Failed    int
}

// ResyncAll re-derives every plant's reminder from stored state, batchSize
// plants at a time. Per-plant failures are counted and the pass continues; a
// failed listing or context cancellation stops it.
func (u *PlantUsecase) ResyncAll(ctx context.Context, batchSize int) (ResyncSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var (
		summary ResyncSummary
		afterID string
	)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		states, err := u.repo.ListWateringStates(ctx, afterID, batchSize)
		if err != nil {
			return summary, fmt.Errorf("list watering states: %w", err)
		}

		for _, state := range states {
			u.resyncOne(ctx, state, &summary)
		}

		if len(states) < batchSize {
			break
		}
		afterID = states[len(states)-1].PlantID
	}

	u.logger.InfoContext(ctx, "resync finished",
		"processed", summary.Processed,
		"scheduled", summary.Scheduled,
		"skipped", summary.Skipped,
		"gone", summary.Gone,
		"failed", summary.Failed,
	)
	return summary, nil
}

// resyncOne re-reads the plant under its lock so that a write or delete that
// landed after the batch was listed is not overwritten with the listed state.
func (u *PlantUsecase) resyncOne(ctx context.Context, listed domain.WateringState, summary *ResyncSummary) {
	summary.Processed++
	err := u.withPlantLock(ctx, listed.PlantID, func(ctx context.Context) error {
		state, err := u.repo.GetWateringState(ctx, listed.PlantID)
		if errors.Is(err, domain.ErrPlantNotFound) {
			summary.Gone++
			metrics.ResyncPlantsTotal.WithLabelValues("gone").Inc()
			return nil
		}
		if err != nil {
			return fmt.Errorf("get watering state: %w", err)
		}

		res, err := u.reminders.OnCadenceOrWateringChanged(ctx, state, u.now())
		if err != nil {
			return err
		}
		if res.Outcome == domain.OutcomeScheduled {
			summary.Scheduled++
			metrics.ResyncPlantsTotal.WithLabelValues("scheduled").Inc()
			return nil
		}
		summary.Skipped++
		metrics.ResyncPlantsTotal.WithLabelValues("skipped").Inc()
		return nil
	})
	if err == nil {
		return
	}

	summary.Failed++
	metrics.ResyncPlantsTotal.WithLabelValues("failed").Inc()
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		u.logger.WarnContext(ctx, "resync: gateway unavailable", "plant_id", listed.PlantID, "error", err)
	} else {
		u.logger.ErrorContext(ctx, "resync: reschedule failed", "plant_id", listed.PlantID, "error", err)
	}
}
