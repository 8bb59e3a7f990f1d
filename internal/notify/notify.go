package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
)

// Gateway is what cmd wiring needs from an adapter: the scheduler calls plus
// a health probe.
type Gateway interface {
	Schedule(ctx context.Context, req domain.ReminderRequest) error
	Cancel(ctx context.Context, reminderID string) error
	Ping(ctx context.Context) error
}

// NewGateway returns a MemoryGateway for ENV=local, HTTPGateway otherwise.
func NewGateway(env, baseURL string, timeout time.Duration, logger *slog.Logger) Gateway {
	if env == "local" && baseURL == "" {
		return NewMemoryGateway(logger)
	}
	return NewHTTPGateway(baseURL, timeout, logger)
}
