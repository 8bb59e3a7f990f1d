package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/repository"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
	"github.com/ErlanBelekov/plantcare/internal/season"
)

// futureSkew tolerates small clock differences between client and server.
const futureSkew = time.Minute

// ReminderScheduler is the subset of scheduler.Scheduler the usecase drives.
type ReminderScheduler interface {
	OnCadenceOrWateringChanged(ctx context.Context, state domain.WateringState, now time.Time) (scheduler.Result, error)
	OnWateringRecorded(ctx context.Context, state domain.WateringState, wateredAt, now time.Time) (scheduler.Result, error)
	OnPlantDeleted(ctx context.Context, plantID string) (scheduler.Result, error)
}

type PlantUsecase struct {
	repo      repository.PlantRepository
	reminders ReminderScheduler
	locks     *scheduler.PlantLocks
	seasons   *season.Resolver
	loc       *time.Location
	clock     func() time.Time
	logger    *slog.Logger
}

func NewPlantUsecase(
	repo repository.PlantRepository,
	reminders ReminderScheduler,
	seasons *season.Resolver,
	loc *time.Location,
	logger *slog.Logger,
) *PlantUsecase {
	return &PlantUsecase{
		repo:      repo,
		reminders: reminders,
		locks:     scheduler.NewPlantLocks(),
		seasons:   seasons,
		loc:       loc,
		clock:     time.Now,
		logger:    logger.With("component", "plant_usecase"),
	}
}

// WithClock replaces the wall clock; used by tests and the resync command.
func (u *PlantUsecase) WithClock(clock func() time.Time) *PlantUsecase {
	u.clock = clock
	return u
}

func (u *PlantUsecase) now() time.Time {
	return u.clock().In(u.loc)
}

// ReminderReport is the reminder side of a plant write. Err is set when the
// gateway failed; the plant write itself still succeeded.
type ReminderReport struct {
	scheduler.Result
	Err error
}

type PlantChange struct {
	Plant    *domain.Plant
	Reminder ReminderReport
}

type CreatePlantInput struct {
	UserID        string
	Name          string
	Species       *string
	Cadence       *domain.CadenceSpec
	LastWateredAt *time.Time
}

func (u *PlantUsecase) CreatePlant(ctx context.Context, input CreatePlantInput) (*PlantChange, error) {
	now := u.now()
	if input.LastWateredAt != nil && input.LastWateredAt.After(now.Add(futureSkew)) {
		return nil, domain.ErrWateredInFuture
	}

	created, err := u.repo.Create(ctx, &domain.Plant{
		UserID:        input.UserID,
		Name:          input.Name,
		Species:       input.Species,
		Cadence:       input.Cadence,
		LastWateredAt: input.LastWateredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create plant: %w", err)
	}

	change := &PlantChange{Plant: created}
	err = u.withPlantLock(ctx, created.ID, func(ctx context.Context) error {
		res, err := u.reminders.OnCadenceOrWateringChanged(ctx, created.WateringState(), now)
		change.Reminder = u.report(ctx, created.ID, res, err)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (u *PlantUsecase) GetPlant(ctx context.Context, id, userID string) (*domain.Plant, error) {
	p, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get plant: %w", err)
	}
	return p, nil
}

type ListPlantsInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListPlantsResult struct {
	Plants     []*domain.Plant
	NextCursor *string
}

type plantCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func decodePlantCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c plantCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c.CreatedAt, c.ID, nil
}

func encodePlantCursor(createdAt time.Time, id string) string {
	b, _ := json.Marshal(plantCursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

func (u *PlantUsecase) ListPlants(ctx context.Context, input ListPlantsInput) (ListPlantsResult, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	repoInput := repository.ListPlantsInput{
		UserID: input.UserID,
		Limit:  limit + 1,
	}

	if input.Cursor != "" {
		cursorTime, cursorID, err := decodePlantCursor(input.Cursor)
		if err != nil {
			return ListPlantsResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	plants, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListPlantsResult{}, fmt.Errorf("list plants: %w", err)
	}

	var nextCursor *string
	if len(plants) == limit+1 {
		last := plants[limit-1]
		s := encodePlantCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		plants = plants[:limit]
	}

	return ListPlantsResult{Plants: plants, NextCursor: nextCursor}, nil
}

type UpdateCadenceInput struct {
	PlantID string
	UserID  string
	Cadence *domain.CadenceSpec // nil clears the schedule
}

// UpdateCadence stores the new cadence and re-derives the reminder. An
// unchanged cadence skips the write but still reschedules, so retrying after
// a gateway failure heals the reminder.
func (u *PlantUsecase) UpdateCadence(ctx context.Context, input UpdateCadenceInput) (*PlantChange, error) {
	var change PlantChange
	err := u.withPlantLock(ctx, input.PlantID, func(ctx context.Context) error {
		current, err := u.repo.GetByID(ctx, input.PlantID, input.UserID)
		if err != nil {
			return fmt.Errorf("get plant: %w", err)
		}

		plant := current
		if !sameCadence(current.Cadence, input.Cadence) {
			plant, err = u.repo.SetCadence(ctx, input.PlantID, input.UserID, input.Cadence)
			if err != nil {
				return fmt.Errorf("set cadence: %w", err)
			}
		}

		res, err := u.reminders.OnCadenceOrWateringChanged(ctx, plant.WateringState(), u.now())
		change = PlantChange{Plant: plant, Reminder: u.report(ctx, plant.ID, res, err)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

type RecordWateringInput struct {
	PlantID   string
	UserID    string
	WateredAt *time.Time // nil means now
}

func (u *PlantUsecase) RecordWatering(ctx context.Context, input RecordWateringInput) (*PlantChange, error) {
	now := u.now()
	wateredAt := now
	if input.WateredAt != nil {
		wateredAt = input.WateredAt.In(u.loc)
	}
	if wateredAt.After(now.Add(futureSkew)) {
		return nil, domain.ErrWateredInFuture
	}

	var change PlantChange
	err := u.withPlantLock(ctx, input.PlantID, func(ctx context.Context) error {
		plant, err := u.repo.RecordWatering(ctx, input.PlantID, input.UserID, wateredAt)
		if err != nil {
			return fmt.Errorf("record watering: %w", err)
		}

		res, err := u.reminders.OnWateringRecorded(ctx, plant.WateringState(), wateredAt, now)
		change = PlantChange{Plant: plant, Reminder: u.report(ctx, plant.ID, res, err)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// DeletePlant removes the plant and cancels its reminder. The cancel also
// runs when the plant is already gone so that a retried delete cleans up a
// reminder an earlier attempt failed to cancel.
func (u *PlantUsecase) DeletePlant(ctx context.Context, id, userID string) (ReminderReport, error) {
	var report ReminderReport
	err := u.withPlantLock(ctx, id, func(ctx context.Context) error {
		deleteErr := u.repo.Delete(ctx, id, userID)
		if deleteErr != nil && !errors.Is(deleteErr, domain.ErrPlantNotFound) {
			return fmt.Errorf("delete plant: %w", deleteErr)
		}

		res, err := u.reminders.OnPlantDeleted(ctx, id)
		report = u.report(ctx, id, res, err)
		if deleteErr != nil {
			return fmt.Errorf("delete plant: %w", deleteErr)
		}
		return nil
	})
	return report, err
}

type ReminderPreview struct {
	scheduler.Result
	Upcoming *time.Time // next instant the reminder would fire; nil when none
}

// PreviewReminder reports the reminder the plant's current state implies,
// without calling the gateway.
func (u *PlantUsecase) PreviewReminder(ctx context.Context, id, userID string) (ReminderPreview, error) {
	plant, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return ReminderPreview{}, fmt.Errorf("get plant: %w", err)
	}

	now := u.now()
	preview := ReminderPreview{Result: scheduler.Preview(plant.WateringState(), now)}
	if preview.Outcome != domain.OutcomeScheduled || preview.Fire == nil {
		return preview, nil
	}

	next, err := scheduler.Upcoming(*preview.Fire, now)
	if err != nil {
		return ReminderPreview{}, fmt.Errorf("upcoming fire: %w", err)
	}
	preview.Upcoming = &next
	return preview, nil
}

// withPlantLock serializes store write plus reschedule for one plant: in
// process through PlantLocks (FIFO), across processes through the store lock.
func (u *PlantUsecase) withPlantLock(ctx context.Context, plantID string, fn func(ctx context.Context) error) error {
	unlock := u.locks.Lock(plantID)
	defer unlock()

	return u.repo.WithPlantLock(ctx, plantID, fn)
}

func (u *PlantUsecase) report(ctx context.Context, plantID string, res scheduler.Result, err error) ReminderReport {
	if err != nil {
		u.logger.WarnContext(ctx, "plant saved but reminder not updated",
			"plant_id", plantID,
			"reminder_id", res.ReminderID,
			"error", err,
		)
	}
	return ReminderReport{Result: res, Err: err}
}

func sameCadence(a, b *domain.CadenceSpec) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
