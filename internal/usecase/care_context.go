package usecase

import (
	"context"
	"fmt"
	"time"
)

const unknown = "Unknown"

// CareContext is the plant summary handed to the care-advice model as prompt
// context.
type CareContext struct {
	PlantName   string `json:"plant_name"`
	Species     string `json:"species"`
	Season      string `json:"season"`
	CurrentDate string `json:"current_date"`
	LastWatered string `json:"last_watered"`
}

// CareContext assembles the prompt context for a plant. region is an ISO
// country code; empty or unknown codes resolve with northern seasons.
func (u *PlantUsecase) CareContext(ctx context.Context, id, userID, region string) (CareContext, error) {
	plant, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return CareContext{}, fmt.Errorf("get plant: %w", err)
	}

	now := u.now()
	cc := CareContext{
		PlantName:   orUnknown(plant.Name),
		Species:     unknown,
		Season:      string(u.seasons.Resolve(now, region)),
		CurrentDate: now.Format(time.DateOnly),
		LastWatered: unknown,
	}
	if plant.Species != nil {
		cc.Species = orUnknown(*plant.Species)
	}
	if plant.LastWateredAt != nil {
		cc.LastWatered = plant.LastWateredAt.In(u.loc).Format(time.DateOnly)
	}
	return cc, nil
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
