package cutover

import (
	"context"
	"errors"
	"log"

	"janus/api/model"
)

// reap removes the previous slot's workload. Best effort: every failure
// is logged and swallowed, so a stuck deletion can leave the old
// workload running until the next cycle targets its color again.
func (c *Controller) reap(ctx context.Context, app string, previous model.DeploymentColor) {
	err := c.Orch.DeleteWorkload(ctx, app, previous)
	switch {
	case err == nil:
		log.Printf("cutover: %s: removed stale %s workload", app, previous)
	case errors.Is(err, ErrNotFound):
		log.Printf("cutover: %s: no stale %s workload to remove", app, previous)
	default:
		log.Printf("cutover: %s: removing stale %s workload: %v (leaving it running)", app, previous, err)
	}
}
