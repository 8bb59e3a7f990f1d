package domain

import (
	"errors"
	"time"
)

var (
	ErrPlantNotFound   = errors.New("plant not found")
	ErrInvalidCursor   = errors.New("invalid cursor")
	ErrWateredInFuture = errors.New("watering time is in the future")
)

type Plant struct {
	ID            string
	UserID        string
	Name          string
	Species       *string      // nil when the user never identified it
	Cadence       *CadenceSpec // nil until the user sets a schedule
	LastWateredAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WateringState is the read-only slice of a plant record the reminder
// scheduler works from.
type WateringState struct {
	PlantID       string
	PlantName     string
	LastWateredAt *time.Time
	Cadence       *CadenceSpec
}

func (p *Plant) WateringState() WateringState {
	return WateringState{
		PlantID:       p.ID,
		PlantName:     p.Name,
		LastWateredAt: p.LastWateredAt,
		Cadence:       p.Cadence,
	}
}

// Schedulable reports whether the state carries everything a reminder needs.
func (s WateringState) Schedulable() bool {
	return s.Cadence != nil && s.LastWateredAt != nil
}
