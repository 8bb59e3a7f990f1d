package handler

const (
	errInternalServer     = "Internal server error"
	errPlantNotFound      = "Plant not found"
	errInvalidCursor      = "Invalid cursor"
	errInvalidCadence     = "Watering interval must be between 0 and 365 days"
	errInvalidTimeOfDay   = "Reminder time must be HH:MM in 24-hour clock"
	errIncompleteCadence  = "interval_days and reminder_time must be set together"
	errClearWithCadence   = "clear cannot be combined with interval_days or reminder_time"
	errWateredInFuture    = "Watering time is in the future"
	errReminderNotUpdated = "Plant saved but the reminder could not be updated; retry to reschedule"
	errInvalidDays        = "days must be between 1 and 366"
)
