package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/calendar"
	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/repository"
)

const calendarPageSize = 100

// ProjectWaterings lists the reminders a plant would get over horizon if each
// watering happened when reminded.
func (u *PlantUsecase) ProjectWaterings(ctx context.Context, id, userID string, horizon time.Duration) ([]time.Time, error) {
	plant, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get plant: %w", err)
	}

	times, err := calendar.Project(plant.WateringState(), u.now(), horizon)
	if err != nil {
		return nil, fmt.Errorf("project waterings: %w", err)
	}
	return times, nil
}

// WateringCalendar renders all of the user's pending reminders as an
// iCalendar feed.
func (u *PlantUsecase) WateringCalendar(ctx context.Context, userID string) (string, error) {
	var (
		states []domain.WateringState
		input  = repository.ListPlantsInput{UserID: userID, Limit: calendarPageSize}
	)
	for {
		plants, err := u.repo.List(ctx, input)
		if err != nil {
			return "", fmt.Errorf("list plants: %w", err)
		}
		for _, p := range plants {
			states = append(states, p.WateringState())
		}
		if len(plants) < calendarPageSize {
			break
		}
		last := plants[len(plants)-1]
		input.CursorTime = &last.CreatedAt
		input.CursorID = last.ID
	}

	feed, err := calendar.Feed(states, u.now())
	if err != nil {
		return "", fmt.Errorf("build feed: %w", err)
	}
	return feed, nil
}
