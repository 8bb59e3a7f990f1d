package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/notify"
	"github.com/ErlanBelekov/plantcare/internal/repository"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
	"github.com/ErlanBelekov/plantcare/internal/season"
	"github.com/ErlanBelekov/plantcare/internal/usecase"
)

// ---- fakes ----

type fakePlantRepo struct {
	create             func(ctx context.Context, p *domain.Plant) (*domain.Plant, error)
	getByID            func(ctx context.Context, id, userID string) (*domain.Plant, error)
	list               func(ctx context.Context, input repository.ListPlantsInput) ([]*domain.Plant, error)
	setCadence         func(ctx context.Context, id, userID string, cadence *domain.CadenceSpec) (*domain.Plant, error)
	recordWatering     func(ctx context.Context, id, userID string, at time.Time) (*domain.Plant, error)
	deletePlant        func(ctx context.Context, id, userID string) error
	listWateringStates func(ctx context.Context, afterID string, limit int) ([]domain.WateringState, error)
	getWateringState   func(ctx context.Context, id string) (domain.WateringState, error)
	withPlantLock      func(ctx context.Context, plantID string, fn func(ctx context.Context) error) error
}

func (r *fakePlantRepo) Create(ctx context.Context, p *domain.Plant) (*domain.Plant, error) {
	return r.create(ctx, p)
}

func (r *fakePlantRepo) GetByID(ctx context.Context, id, userID string) (*domain.Plant, error) {
	return r.getByID(ctx, id, userID)
}

func (r *fakePlantRepo) List(ctx context.Context, input repository.ListPlantsInput) ([]*domain.Plant, error) {
	return r.list(ctx, input)
}

func (r *fakePlantRepo) SetCadence(ctx context.Context, id, userID string, cadence *domain.CadenceSpec) (*domain.Plant, error) {
	return r.setCadence(ctx, id, userID, cadence)
}

func (r *fakePlantRepo) RecordWatering(ctx context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
	return r.recordWatering(ctx, id, userID, at)
}

func (r *fakePlantRepo) Delete(ctx context.Context, id, userID string) error {
	return r.deletePlant(ctx, id, userID)
}

func (r *fakePlantRepo) ListWateringStates(ctx context.Context, afterID string, limit int) ([]domain.WateringState, error) {
	return r.listWateringStates(ctx, afterID, limit)
}

func (r *fakePlantRepo) GetWateringState(ctx context.Context, id string) (domain.WateringState, error) {
	return r.getWateringState(ctx, id)
}

func (r *fakePlantRepo) WithPlantLock(ctx context.Context, plantID string, fn func(ctx context.Context) error) error {
	if r.withPlantLock == nil {
		return fn(ctx)
	}
	return r.withPlantLock(ctx, plantID, fn)
}

// flakyGateway delegates to an in-memory gateway unless fail is set.
type flakyGateway struct {
	*notify.MemoryGateway
	fail bool
}

func (g *flakyGateway) Schedule(ctx context.Context, req domain.ReminderRequest) error {
	if g.fail {
		return errors.New("connection refused")
	}
	return g.MemoryGateway.Schedule(ctx, req)
}

func (g *flakyGateway) Cancel(ctx context.Context, id string) error {
	if g.fail {
		return errors.New("connection refused")
	}
	return g.MemoryGateway.Cancel(ctx, id)
}

// ---- helpers ----

var (
	testNow   = time.Date(2025, time.January, 10, 8, 0, 0, 0, time.UTC)
	testUser  = "user-1"
	testPlant = "3f2b8c1e-0000-4000-8000-000000000001"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUsecase(repo *fakePlantRepo) (*usecase.PlantUsecase, *flakyGateway) {
	gw := &flakyGateway{MemoryGateway: notify.NewMemoryGateway(discardLogger())}
	uc := usecase.NewPlantUsecase(
		repo,
		scheduler.New(gw, discardLogger()),
		season.NewResolver(season.DefaultSouthernRegions),
		time.UTC,
		discardLogger(),
	).WithClock(func() time.Time { return testNow })
	return uc, gw
}

func cadence(t *testing.T, days, hour, minute int) *domain.CadenceSpec {
	t.Helper()
	tod, err := domain.NewTimeOfDay(hour, minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := domain.NewCadence(days, tod)
	if err != nil {
		t.Fatal(err)
	}
	return &c
}

func ptr[T any](v T) *T { return &v }

// stateLookup serves GetWateringState from a fixed set of states.
func stateLookup(states []domain.WateringState) func(context.Context, string) (domain.WateringState, error) {
	return func(_ context.Context, id string) (domain.WateringState, error) {
		for _, s := range states {
			if s.PlantID == id {
				return s, nil
			}
		}
		return domain.WateringState{}, domain.ErrPlantNotFound
	}
}

// ---- CreatePlant ----

func TestCreatePlant_SchedulesWhenCadenceAndWateringKnown(t *testing.T) {
	repo := &fakePlantRepo{
		create: func(_ context.Context, p *domain.Plant) (*domain.Plant, error) {
			saved := *p
			saved.ID = testPlant
			return &saved, nil
		},
	}
	uc, gw := newUsecase(repo)

	got, err := uc.CreatePlant(context.Background(), usecase.CreatePlantInput{
		UserID:        testUser,
		Name:          "Fern",
		Cadence:       cadence(t, 3, 9, 0),
		LastWateredAt: ptr(time.Date(2025, time.January, 9, 10, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reminder.Outcome != domain.OutcomeScheduled {
		t.Fatalf("outcome = %q, want scheduled", got.Reminder.Outcome)
	}
	want := domain.OnceAt(time.Date(2025, time.January, 12, 9, 0, 0, 0, time.UTC))
	if got.Reminder.Fire == nil || !got.Reminder.Fire.Equal(want) {
		t.Errorf("fire = %v, want %v", got.Reminder.Fire, want)
	}
	if n := len(gw.Outstanding()); n != 1 {
		t.Errorf("outstanding = %d, want 1", n)
	}
}

func TestCreatePlant_WithoutCadenceSchedulesNothing(t *testing.T) {
	repo := &fakePlantRepo{
		create: func(_ context.Context, p *domain.Plant) (*domain.Plant, error) {
			saved := *p
			saved.ID = testPlant
			return &saved, nil
		},
	}
	uc, gw := newUsecase(repo)

	got, err := uc.CreatePlant(context.Background(), usecase.CreatePlantInput{UserID: testUser, Name: "Cactus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Reminder.Outcome != domain.OutcomeNothingToDo {
		t.Errorf("outcome = %q, want %q", got.Reminder.Outcome, domain.OutcomeNothingToDo)
	}
	if n := len(gw.Outstanding()); n != 0 {
		t.Errorf("outstanding = %d, want 0", n)
	}
}

func TestCreatePlant_RejectsFutureWatering(t *testing.T) {
	repo := &fakePlantRepo{
		create: func(_ context.Context, _ *domain.Plant) (*domain.Plant, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}
	uc, _ := newUsecase(repo)

	_, err := uc.CreatePlant(context.Background(), usecase.CreatePlantInput{
		UserID:        testUser,
		Name:          "Fern",
		LastWateredAt: ptr(testNow.Add(24 * time.Hour)),
	})
	if !errors.Is(err, domain.ErrWateredInFuture) {
		t.Errorf("err = %v, want ErrWateredInFuture", err)
	}
}

// ---- UpdateCadence ----

func TestUpdateCadence_GatewayFailureKeepsWrite(t *testing.T) {
	stored := &domain.Plant{
		ID: testPlant, UserID: testUser, Name: "Fern",
		LastWateredAt: ptr(time.Date(2025, time.January, 9, 10, 0, 0, 0, time.UTC)),
	}
	writes := 0
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Plant, error) {
			return stored, nil
		},
		setCadence: func(_ context.Context, _, _ string, c *domain.CadenceSpec) (*domain.Plant, error) {
			writes++
			updated := *stored
			updated.Cadence = c
			stored = &updated
			return stored, nil
		},
	}
	uc, gw := newUsecase(repo)
	gw.fail = true

	input := usecase.UpdateCadenceInput{PlantID: testPlant, UserID: testUser, Cadence: cadence(t, 3, 9, 0)}
	got, err := uc.UpdateCadence(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1", writes)
	}
	if !errors.Is(got.Reminder.Err, domain.ErrGatewayUnavailable) {
		t.Errorf("reminder err = %v, want ErrGatewayUnavailable", got.Reminder.Err)
	}
	if got.Reminder.Outcome != domain.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", got.Reminder.Outcome)
	}

	// Retrying the same cadence skips the write but heals the reminder.
	gw.fail = false
	got, err = uc.UpdateCadence(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writes != 1 {
		t.Errorf("writes after retry = %d, want 1", writes)
	}
	if got.Reminder.Outcome != domain.OutcomeScheduled {
		t.Errorf("outcome after retry = %q, want scheduled", got.Reminder.Outcome)
	}
	if n := len(gw.Outstanding()); n != 1 {
		t.Errorf("outstanding = %d, want 1", n)
	}
}

func TestUpdateCadence_ClearCancelsReminder(t *testing.T) {
	stored := &domain.Plant{
		ID: testPlant, UserID: testUser, Name: "Fern",
		Cadence:       cadence(t, 0, 9, 0),
		LastWateredAt: ptr(testNow.Add(-time.Hour)),
	}
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Plant, error) {
			return stored, nil
		},
		setCadence: func(_ context.Context, _, _ string, c *domain.CadenceSpec) (*domain.Plant, error) {
			updated := *stored
			updated.Cadence = c
			stored = &updated
			return stored, nil
		},
	}
	uc, gw := newUsecase(repo)
	ctx := context.Background()

	if _, err := uc.UpdateCadence(ctx, usecase.UpdateCadenceInput{PlantID: testPlant, UserID: testUser, Cadence: cadence(t, 2, 9, 0)}); err != nil {
		t.Fatal(err)
	}
	if n := len(gw.Outstanding()); n != 1 {
		t.Fatalf("outstanding = %d, want 1", n)
	}

	got, err := uc.UpdateCadence(ctx, usecase.UpdateCadenceInput{PlantID: testPlant, UserID: testUser})
	if err != nil {
		t.Fatal(err)
	}
	if got.Plant.Cadence != nil {
		t.Errorf("cadence = %v, want nil", got.Plant.Cadence)
	}
	if n := len(gw.Outstanding()); n != 0 {
		t.Errorf("outstanding = %d, want 0", n)
	}
}

func TestUpdateCadence_NotFound(t *testing.T) {
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, _, _ string) (*domain.Plant, error) {
			return nil, domain.ErrPlantNotFound
		},
	}
	uc, _ := newUsecase(repo)

	_, err := uc.UpdateCadence(context.Background(), usecase.UpdateCadenceInput{PlantID: testPlant, UserID: testUser})
	if !errors.Is(err, domain.ErrPlantNotFound) {
		t.Errorf("err = %v, want ErrPlantNotFound", err)
	}
}

// ---- RecordWatering ----

func TestRecordWatering_DefaultsToNow(t *testing.T) {
	var gotAt time.Time
	repo := &fakePlantRepo{
		recordWatering: func(_ context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
			gotAt = at
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", Cadence: cadence(t, 3, 9, 0), LastWateredAt: &at}, nil
		},
	}
	uc, gw := newUsecase(repo)

	got, err := uc.RecordWatering(context.Background(), usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotAt.Equal(testNow) {
		t.Errorf("watered at = %v, want %v", gotAt, testNow)
	}
	if got.Reminder.Outcome != domain.OutcomeScheduled {
		t.Errorf("outcome = %q, want scheduled", got.Reminder.Outcome)
	}
	out := gw.ForPlant(testPlant)
	if len(out) != 1 {
		t.Fatalf("reminders for plant = %d, want 1", len(out))
	}
	want := time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC)
	if !out[0].Fire.At.Equal(want) {
		t.Errorf("fire at = %v, want %v", out[0].Fire.At, want)
	}
}

func TestRecordWatering_RejectsFuture(t *testing.T) {
	uc, _ := newUsecase(&fakePlantRepo{})

	_, err := uc.RecordWatering(context.Background(), usecase.RecordWateringInput{
		PlantID:   testPlant,
		UserID:    testUser,
		WateredAt: ptr(testNow.Add(2 * time.Hour)),
	})
	if !errors.Is(err, domain.ErrWateredInFuture) {
		t.Errorf("err = %v, want ErrWateredInFuture", err)
	}
}

// ---- DeletePlant ----

func TestDeletePlant_CancelsReminder(t *testing.T) {
	repo := &fakePlantRepo{
		recordWatering: func(_ context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", Cadence: cadence(t, 3, 9, 0), LastWateredAt: &at}, nil
		},
		deletePlant: func(_ context.Context, _, _ string) error { return nil },
	}
	uc, gw := newUsecase(repo)
	ctx := context.Background()

	if _, err := uc.RecordWatering(ctx, usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser}); err != nil {
		t.Fatal(err)
	}

	report, err := uc.DeletePlant(ctx, testPlant, testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Outcome != domain.OutcomeCanceled {
		t.Errorf("outcome = %q, want canceled", report.Outcome)
	}
	if n := len(gw.Outstanding()); n != 0 {
		t.Errorf("outstanding = %d, want 0", n)
	}
}

func TestDeletePlant_RetryAfterCancelFailureCleansUp(t *testing.T) {
	deleted := false
	repo := &fakePlantRepo{
		recordWatering: func(_ context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", Cadence: cadence(t, 3, 9, 0), LastWateredAt: &at}, nil
		},
		deletePlant: func(_ context.Context, _, _ string) error {
			if deleted {
				return domain.ErrPlantNotFound
			}
			deleted = true
			return nil
		},
	}
	uc, gw := newUsecase(repo)
	ctx := context.Background()

	if _, err := uc.RecordWatering(ctx, usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser}); err != nil {
		t.Fatal(err)
	}

	gw.fail = true
	report, err := uc.DeletePlant(ctx, testPlant, testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(report.Err, domain.ErrGatewayUnavailable) {
		t.Fatalf("reminder err = %v, want ErrGatewayUnavailable", report.Err)
	}
	if n := len(gw.Outstanding()); n != 1 {
		t.Fatalf("outstanding = %d, want 1 (orphan)", n)
	}

	gw.fail = false
	report, err = uc.DeletePlant(ctx, testPlant, testUser)
	if !errors.Is(err, domain.ErrPlantNotFound) {
		t.Errorf("err = %v, want ErrPlantNotFound", err)
	}
	if report.Outcome != domain.OutcomeCanceled {
		t.Errorf("outcome = %q, want canceled", report.Outcome)
	}
	if n := len(gw.Outstanding()); n != 0 {
		t.Errorf("outstanding = %d, want 0", n)
	}
}

// ---- ListPlants ----

func TestListPlants_PaginatesWithCursor(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	all := []*domain.Plant{
		{ID: "c", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "b", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a", CreatedAt: base.Add(time.Hour)},
	}
	var inputs []repository.ListPlantsInput
	repo := &fakePlantRepo{
		list: func(_ context.Context, input repository.ListPlantsInput) ([]*domain.Plant, error) {
			inputs = append(inputs, input)
			start := 0
			if input.CursorTime != nil {
				for i, p := range all {
					if p.ID == input.CursorID {
						start = i + 1
					}
				}
			}
			end := min(start+input.Limit, len(all))
			return all[start:end], nil
		},
	}
	uc, _ := newUsecase(repo)
	ctx := context.Background()

	first, err := uc.ListPlants(ctx, usecase.ListPlantsInput{UserID: testUser, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Plants) != 2 || first.NextCursor == nil {
		t.Fatalf("first page = %d plants, cursor %v", len(first.Plants), first.NextCursor)
	}
	if inputs[0].Limit != 3 {
		t.Errorf("repo limit = %d, want 3", inputs[0].Limit)
	}

	second, err := uc.ListPlants(ctx, usecase.ListPlantsInput{UserID: testUser, Limit: 2, Cursor: *first.NextCursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Plants) != 1 || second.Plants[0].ID != "a" {
		t.Errorf("second page = %+v", second.Plants)
	}
	if second.NextCursor != nil {
		t.Errorf("next cursor = %q, want nil", *second.NextCursor)
	}
	if inputs[1].CursorID != "b" || !inputs[1].CursorTime.Equal(all[1].CreatedAt) {
		t.Errorf("cursor = (%v, %q), want (%v, b)", inputs[1].CursorTime, inputs[1].CursorID, all[1].CreatedAt)
	}
}

func TestListPlants_InvalidCursor(t *testing.T) {
	uc, _ := newUsecase(&fakePlantRepo{})

	_, err := uc.ListPlants(context.Background(), usecase.ListPlantsInput{UserID: testUser, Cursor: "!!not-base64"})
	if !errors.Is(err, domain.ErrInvalidCursor) {
		t.Errorf("err = %v, want ErrInvalidCursor", err)
	}
}

// ---- PreviewReminder ----

func TestPreviewReminder_DailyIncludesUpcoming(t *testing.T) {
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, id, userID string) (*domain.Plant, error) {
			return &domain.Plant{ID: id, UserID: userID, Name: "Basil", Cadence: cadence(t, 0, 7, 30), LastWateredAt: ptr(testNow.Add(-time.Hour))}, nil
		},
	}
	uc, gw := newUsecase(repo)

	got, err := uc.PreviewReminder(context.Background(), testPlant, testUser)
	if err != nil {
		t.Fatal(err)
	}
	if got.Outcome != domain.OutcomeScheduled || got.Fire.Kind != domain.FireDaily {
		t.Fatalf("preview = %+v", got.Result)
	}
	want := time.Date(2025, time.January, 11, 7, 30, 0, 0, time.UTC)
	if got.Upcoming == nil || !got.Upcoming.Equal(want) {
		t.Errorf("upcoming = %v, want %v", got.Upcoming, want)
	}
	if n := len(gw.Outstanding()); n != 0 {
		t.Errorf("preview touched the gateway: outstanding = %d", n)
	}
}

// ---- CareContext ----

func TestCareContext_FillsUnknowns(t *testing.T) {
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, id, userID string) (*domain.Plant, error) {
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern"}, nil
		},
	}
	uc, _ := newUsecase(repo)

	got, err := uc.CareContext(context.Background(), testPlant, testUser, "au")
	if err != nil {
		t.Fatal(err)
	}
	want := usecase.CareContext{
		PlantName:   "Fern",
		Species:     "Unknown",
		Season:      "summer",
		CurrentDate: "2025-01-10",
		LastWatered: "Unknown",
	}
	if got != want {
		t.Errorf("care context = %+v, want %+v", got, want)
	}
}

func TestCareContext_NorthernDefault(t *testing.T) {
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, id, userID string) (*domain.Plant, error) {
			return &domain.Plant{
				ID: id, UserID: userID, Name: "Monstera",
				Species:       ptr("Monstera deliciosa"),
				LastWateredAt: ptr(time.Date(2025, time.January, 8, 18, 0, 0, 0, time.UTC)),
			}, nil
		},
	}
	uc, _ := newUsecase(repo)

	got, err := uc.CareContext(context.Background(), testPlant, testUser, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Season != "winter" || got.Species != "Monstera deliciosa" || got.LastWatered != "2025-01-08" {
		t.Errorf("care context = %+v", got)
	}
}

// ---- ResyncAll ----

func TestResyncAll_PagesAndCounts(t *testing.T) {
	states := []domain.WateringState{
		{PlantID: "p1", PlantName: "A", Cadence: cadence(t, 3, 9, 0), LastWateredAt: ptr(testNow.Add(-time.Hour))},
		{PlantID: "p2", PlantName: "B", Cadence: cadence(t, 1, 9, 0), LastWateredAt: ptr(testNow.Add(-72 * time.Hour))},
		{PlantID: "p3", PlantName: "C"},
		{PlantID: "p4", PlantName: "D", Cadence: cadence(t, 0, 6, 0), LastWateredAt: ptr(testNow.Add(-72 * time.Hour))},
	}
	var afterIDs []string
	repo := &fakePlantRepo{
		listWateringStates: func(_ context.Context, afterID string, limit int) ([]domain.WateringState, error) {
			afterIDs = append(afterIDs, afterID)
			start := 0
			for i, s := range states {
				if s.PlantID == afterID {
					start = i + 1
				}
			}
			end := min(start+limit, len(states))
			return states[start:end], nil
		},
		getWateringState: stateLookup(states),
	}
	uc, gw := newUsecase(repo)

	summary, err := uc.ResyncAll(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	want := usecase.ResyncSummary{Processed: 4, Scheduled: 2, Skipped: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if strings.Join(afterIDs, ",") != ",p2,p4" {
		t.Errorf("pages after = %q", afterIDs)
	}
	if n := len(gw.Outstanding()); n != 2 {
		t.Errorf("outstanding = %d, want 2", n)
	}
}

func TestResyncAll_GatewayFailureContinues(t *testing.T) {
	states := []domain.WateringState{
		{PlantID: "p1", Cadence: cadence(t, 3, 9, 0), LastWateredAt: ptr(testNow)},
		{PlantID: "p2", Cadence: cadence(t, 3, 9, 0), LastWateredAt: ptr(testNow)},
	}
	repo := &fakePlantRepo{
		listWateringStates: func(_ context.Context, _ string, _ int) ([]domain.WateringState, error) {
			return states, nil
		},
		getWateringState: stateLookup(states),
	}
	uc, gw := newUsecase(repo)
	gw.fail = true

	summary, err := uc.ResyncAll(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 2 || summary.Processed != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestResyncAll_StoreErrorStops(t *testing.T) {
	repo := &fakePlantRepo{
		listWateringStates: func(_ context.Context, _ string, _ int) ([]domain.WateringState, error) {
			return nil, errors.New("db down")
		},
	}
	uc, _ := newUsecase(repo)

	if _, err := uc.ResyncAll(context.Background(), 10); err == nil {
		t.Error("expected error")
	}
}

// memPlantStore is a map-backed store for tests that interleave API writes
// with a resync pass.
type memPlantStore struct {
	plants map[string]*domain.Plant
}

func (m *memPlantStore) repo() *fakePlantRepo {
	return &fakePlantRepo{
		deletePlant: func(_ context.Context, id, _ string) error {
			if _, ok := m.plants[id]; !ok {
				return domain.ErrPlantNotFound
			}
			delete(m.plants, id)
			return nil
		},
		recordWatering: func(_ context.Context, id, _ string, at time.Time) (*domain.Plant, error) {
			p, ok := m.plants[id]
			if !ok {
				return nil, domain.ErrPlantNotFound
			}
			p.LastWateredAt = &at
			cp := *p
			return &cp, nil
		},
		getWateringState: func(_ context.Context, id string) (domain.WateringState, error) {
			p, ok := m.plants[id]
			if !ok {
				return domain.WateringState{}, domain.ErrPlantNotFound
			}
			return p.WateringState(), nil
		},
	}
}

func TestResyncAll_SkipsPlantDeletedAfterListing(t *testing.T) {
	store := &memPlantStore{plants: map[string]*domain.Plant{
		testPlant: {ID: testPlant, UserID: testUser, Name: "Fern", Cadence: cadence(t, 3, 9, 0), LastWateredAt: ptr(testNow)},
	}}
	repo := store.repo()
	uc, gw := newUsecase(repo)
	repo.listWateringStates = func(ctx context.Context, afterID string, _ int) ([]domain.WateringState, error) {
		if afterID != "" {
			return nil, nil
		}
		listed := []domain.WateringState{store.plants[testPlant].WateringState()}
		if _, err := uc.DeletePlant(ctx, testPlant, testUser); err != nil {
			t.Fatalf("delete: %v", err)
		}
		return listed, nil
	}

	summary, err := uc.ResyncAll(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Gone != 1 || summary.Scheduled != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if got := gw.ForPlant(testPlant); len(got) != 0 {
		t.Errorf("deleted plant has reminders: %+v", got)
	}
}

func TestResyncAll_UsesStateWrittenAfterListing(t *testing.T) {
	store := &memPlantStore{plants: map[string]*domain.Plant{
		testPlant: {
			ID: testPlant, UserID: testUser, Name: "Fern",
			Cadence:       cadence(t, 3, 9, 0),
			LastWateredAt: ptr(time.Date(2025, time.January, 9, 10, 0, 0, 0, time.UTC)),
		},
	}}
	repo := store.repo()
	uc, gw := newUsecase(repo)
	repo.listWateringStates = func(ctx context.Context, afterID string, _ int) ([]domain.WateringState, error) {
		if afterID != "" {
			return nil, nil
		}
		listed := []domain.WateringState{store.plants[testPlant].WateringState()}
		if _, err := uc.RecordWatering(ctx, usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser}); err != nil {
			t.Fatalf("record watering: %v", err)
		}
		return listed, nil
	}

	if _, err := uc.ResyncAll(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	got := gw.ForPlant(testPlant)
	if len(got) != 1 {
		t.Fatalf("reminders = %+v, want 1", got)
	}
	// Watered at testNow (Jan 10): next due Jan 13 09:00, not Jan 12 from the listed state.
	if want := time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC); !got[0].Fire.At.Equal(want) {
		t.Errorf("fire at = %v, want %v", got[0].Fire.At, want)
	}
}

func TestResyncAll_StateReadErrorCountsAsFailed(t *testing.T) {
	repo := &fakePlantRepo{
		listWateringStates: func(_ context.Context, afterID string, _ int) ([]domain.WateringState, error) {
			if afterID != "" {
				return nil, nil
			}
			return []domain.WateringState{{PlantID: "p1"}, {PlantID: "p2"}}, nil
		},
		getWateringState: func(_ context.Context, id string) (domain.WateringState, error) {
			if id == "p1" {
				return domain.WateringState{}, errors.New("conn reset")
			}
			return domain.WateringState{PlantID: id}, nil
		},
	}
	uc, _ := newUsecase(repo)

	summary, err := uc.ResyncAll(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	want := usecase.ResyncSummary{Processed: 2, Skipped: 1, Failed: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestPlantWrites_RunInsideStoreLock(t *testing.T) {
	var (
		inLock bool
		locked []string
	)
	guard := func(name string) {
		if !inLock {
			t.Errorf("%s ran outside the plant lock", name)
		}
	}
	repo := &fakePlantRepo{
		withPlantLock: func(ctx context.Context, plantID string, fn func(ctx context.Context) error) error {
			locked = append(locked, plantID)
			inLock = true
			defer func() { inLock = false }()
			return fn(ctx)
		},
		getByID: func(_ context.Context, id, userID string) (*domain.Plant, error) {
			guard("GetByID")
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern"}, nil
		},
		setCadence: func(_ context.Context, id, userID string, c *domain.CadenceSpec) (*domain.Plant, error) {
			guard("SetCadence")
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", Cadence: c}, nil
		},
		recordWatering: func(_ context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
			guard("RecordWatering")
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", LastWateredAt: &at}, nil
		},
		deletePlant: func(_ context.Context, _, _ string) error {
			guard("Delete")
			return nil
		},
	}
	uc, _ := newUsecase(repo)
	ctx := context.Background()

	if _, err := uc.UpdateCadence(ctx, usecase.UpdateCadenceInput{PlantID: testPlant, UserID: testUser, Cadence: cadence(t, 2, 9, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.RecordWatering(ctx, usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser}); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.DeletePlant(ctx, testPlant, testUser); err != nil {
		t.Fatal(err)
	}
	if len(locked) != 3 {
		t.Errorf("locked %d times, want 3", len(locked))
	}
}

func TestPlantWrites_LockErrorIsReturned(t *testing.T) {
	lockErr := errors.New("acquire conn: pool closed")
	repo := &fakePlantRepo{
		withPlantLock: func(context.Context, string, func(context.Context) error) error {
			return lockErr
		},
	}
	uc, _ := newUsecase(repo)

	_, err := uc.RecordWatering(context.Background(), usecase.RecordWateringInput{PlantID: testPlant, UserID: testUser})
	if !errors.Is(err, lockErr) {
		t.Errorf("err = %v, want %v", err, lockErr)
	}
}

// ---- Calendar ----

func TestWateringCalendar_PagesThroughAllPlants(t *testing.T) {
	var calls int
	repo := &fakePlantRepo{
		list: func(_ context.Context, input repository.ListPlantsInput) ([]*domain.Plant, error) {
			calls++
			if input.CursorTime == nil {
				plants := make([]*domain.Plant, input.Limit)
				for i := range plants {
					plants[i] = &domain.Plant{ID: fmt.Sprintf("p%03d", i), Name: "Filler", CreatedAt: testNow}
				}
				return plants, nil
			}
			if input.CursorID != "p099" {
				t.Errorf("cursor id = %q, want p099", input.CursorID)
			}
			return []*domain.Plant{{
				ID: "last", Name: "Fern",
				Cadence:       cadence(t, 3, 9, 0),
				LastWateredAt: ptr(testNow.Add(-time.Hour)),
			}}, nil
		},
	}
	uc, _ := newUsecase(repo)

	feed, err := uc.WateringCalendar(context.Background(), testUser)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("list calls = %d, want 2", calls)
	}
	if strings.Count(feed, "BEGIN:VEVENT") != 1 || !strings.Contains(feed, "Time to water Fern") {
		t.Errorf("feed = %s", feed)
	}
}

func TestProjectWaterings(t *testing.T) {
	repo := &fakePlantRepo{
		getByID: func(_ context.Context, id, userID string) (*domain.Plant, error) {
			return &domain.Plant{ID: id, UserID: userID, Name: "Fern", Cadence: cadence(t, 7, 9, 0), LastWateredAt: ptr(testNow)}, nil
		},
	}
	uc, _ := newUsecase(repo)

	got, err := uc.ProjectWaterings(context.Background(), testPlant, testUser, 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d, want 4: %v", len(got), got)
	}
	if want := time.Date(2025, time.January, 17, 9, 0, 0, 0, time.UTC); !got[0].Equal(want) {
		t.Errorf("first = %v, want %v", got[0], want)
	}
}
