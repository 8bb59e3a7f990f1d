package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// ResyncJob is the Pushgateway job name the resync command reports under.
const ResyncJob = "plantcare_resync"

// PushResync replaces the resync job's metrics on the Pushgateway at url.
// The command exits before any scrape, so its counters are only observable
// this way.
func PushResync(ctx context.Context, url string) error {
	err := push.New(url, ResyncJob).
		Collector(ResyncPlantsTotal).
		Collector(ReminderOutcomesTotal).
		Collector(GatewayCallDuration).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push resync metrics: %w", err)
	}
	return nil
}
