package cutover

import (
	"context"

	"janus/api/model"
)

// switchTraffic atomically repoints the routing selector at the target
// slot. It must only run after await reported the target healthy.
func (c *Controller) switchTraffic(ctx context.Context, app string, target model.DeploymentColor) error {
	if err := c.Orch.PatchRoutingSelector(ctx, app, target); err != nil {
		return &SwitchError{App: app, Color: target, Err: err}
	}
	return nil
}
