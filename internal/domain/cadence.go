package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MaxIntervalDays = 365

var (
	ErrInvalidCadence   = errors.New("watering interval must be between 0 and 365 days")
	ErrInvalidTimeOfDay = errors.New("reminder time must be HH:MM in 24-hour clock")
)

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimeOfDay accepts "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return NewTimeOfDay(h, m)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// CadenceSpec is a plant's watering rule. IntervalDays == 0 means daily.
// Values are immutable and comparable with ==; an edit replaces the whole spec.
type CadenceSpec struct {
	IntervalDays int
	ReminderTime TimeOfDay
}

// NewCadence validates the interval and returns ErrInvalidCadence when it is
// out of range. The time of day is expected to come from NewTimeOfDay or
// ParseTimeOfDay and is re-checked here.
func NewCadence(intervalDays int, reminderTime TimeOfDay) (CadenceSpec, error) {
	if intervalDays < 0 || intervalDays > MaxIntervalDays {
		return CadenceSpec{}, ErrInvalidCadence
	}
	if _, err := NewTimeOfDay(reminderTime.Hour, reminderTime.Minute); err != nil {
		return CadenceSpec{}, err
	}
	return CadenceSpec{IntervalDays: intervalDays, ReminderTime: reminderTime}, nil
}

func (c CadenceSpec) Daily() bool { return c.IntervalDays == 0 }

func (c CadenceSpec) Equal(other CadenceSpec) bool { return c == other }
