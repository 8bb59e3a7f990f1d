package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ErlanBelekov/plantcare/internal/domain"
)

// MemoryGateway keeps delivery slots in process memory and logs instead of
// delivering. Used for ENV=local.
type MemoryGateway struct {
	mu    sync.Mutex
	slots map[string]domain.ReminderRequest
	log   *slog.Logger
}

func NewMemoryGateway(logger *slog.Logger) *MemoryGateway {
	return &MemoryGateway{
		slots: make(map[string]domain.ReminderRequest),
		log:   logger.With("component", "notification_gateway"),
	}
}

func (g *MemoryGateway) Schedule(ctx context.Context, req domain.ReminderRequest) error {
	g.mu.Lock()
	g.slots[req.ReminderID] = req
	g.mu.Unlock()

	g.log.InfoContext(ctx, "reminder stored (local dev)",
		"reminder_id", req.ReminderID,
		"fire", req.Fire.String(),
		"title", req.Content.Title,
	)
	return nil
}

func (g *MemoryGateway) Cancel(_ context.Context, reminderID string) error {
	g.mu.Lock()
	delete(g.slots, reminderID)
	g.mu.Unlock()
	return nil
}

func (g *MemoryGateway) Ping(context.Context) error { return nil }

// Outstanding returns the live reminders ordered by reminder id.
func (g *MemoryGateway) Outstanding() []domain.ReminderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]domain.ReminderRequest, 0, len(g.slots))
	for _, r := range g.slots {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReminderID < out[j].ReminderID })
	return out
}

// ForPlant returns every live reminder belonging to plantID.
func (g *MemoryGateway) ForPlant(plantID string) []domain.ReminderRequest {
	var out []domain.ReminderRequest
	for _, r := range g.Outstanding() {
		if r.PlantID == plantID {
			out = append(out, r)
		}
	}
	return out
}
