package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
)

type ListPlantsInput struct {
	UserID     string
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

// PlantRepository owns plant records. It never touches reminders; the usecase
// layer drives the scheduler after each write.
type PlantRepository interface {
	Create(ctx context.Context, p *domain.Plant) (*domain.Plant, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Plant, error)
	List(ctx context.Context, input ListPlantsInput) ([]*domain.Plant, error)

	// SetCadence replaces the cadence wholesale; nil clears it.
	SetCadence(ctx context.Context, id, userID string, cadence *domain.CadenceSpec) (*domain.Plant, error)
	RecordWatering(ctx context.Context, id, userID string, at time.Time) (*domain.Plant, error)
	Delete(ctx context.Context, id, userID string) error

	// GetWateringState reads one plant regardless of owner. Used by
	// reconciliation to see the current state under the plant lock.
	GetWateringState(ctx context.Context, id string) (domain.WateringState, error)

	// WithPlantLock runs fn holding a lock on plantID that every process
	// sharing the store observes. Store calls made with fn's ctx run under
	// the lock.
	WithPlantLock(ctx context.Context, plantID string, fn func(ctx context.Context) error) error

	// ListWateringStates pages through every plant of every user ordered by id.
	// afterID "" starts from the beginning.
	ListWateringStates(ctx context.Context, afterID string, limit int) ([]domain.WateringState, error)
}
