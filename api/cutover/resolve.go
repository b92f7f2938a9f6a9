package cutover

import (
	"context"
	"log"

	"janus/api/model"
)

// resolveColor reads the live color from the routing selector. When the
// routing object is missing or unreadable it falls back to Green, so a
// cold start always targets Blue first. The fallback is logged loudly
// because it can also mean the routing object was never created.
func (c *Controller) resolveColor(ctx context.Context, app string) model.DeploymentColor {
	color, err := c.Orch.RoutingSelector(ctx, app)
	if err != nil {
		log.Printf("cutover: %s: no live color (%v), assuming %s", app, err, model.Green)
		return model.Green
	}
	return color
}
