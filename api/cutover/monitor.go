package cutover

import (
	"context"
	"log"
	"time"

	"janus/api/model"
)

// await blocks until the target slot's rollout reports healthy, the
// orchestrator reports an explicit failure, or the deadline elapses.
// Transient status-query errors are retried on the next tick.
func (c *Controller) await(ctx context.Context, app string, target model.DeploymentColor) error {
	deadline := time.After(c.timeout())
	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	// Check once immediately; a no-op image update may already be healthy.
	if done, err := c.check(ctx, app, target); done {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return &RolloutError{App: app, Color: target, Timeout: true}
		case <-ticker.C:
			if done, err := c.check(ctx, app, target); done {
				return err
			}
		}
	}
}

func (c *Controller) check(ctx context.Context, app string, target model.DeploymentColor) (done bool, err error) {
	status, err := c.Orch.RolloutStatus(ctx, app, target)
	if err != nil {
		log.Printf("cutover: %s: rollout status for %s: %v", app, target, err)
		return false, nil
	}
	switch status {
	case RolloutHealthy:
		return true, nil
	case RolloutFailed:
		return true, &RolloutError{App: app, Color: target}
	}
	return false, nil
}
