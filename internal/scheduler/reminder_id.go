package scheduler

import "github.com/google/uuid"

var reminderNamespace = uuid.MustParse("b5f3c1e2-7a4d-4c8e-9f21-6d0a3e8b7c54")

// ReminderID is the delivery slot for a plant's watering reminder. It is a
// name-based UUID of the plant id, so every schedule and cancel for the same
// plant targets the same slot and a second schedule supersedes the first.
func ReminderID(plantID string) string {
	return "watering-" + uuid.NewSHA1(reminderNamespace, []byte(plantID)).String()
}
