package cutover

import (
	"context"
	"log"

	"janus/api/model"
)

// apply rolls the image onto the target slot. The in-place patch is
// tried first; only when it fails is the workload created from its
// per-color template. Either branch succeeding satisfies the step.
func (c *Controller) apply(ctx context.Context, app string, target model.DeploymentColor, image string) error {
	patchErr := c.Orch.PatchWorkloadImage(ctx, app, target, image)
	if patchErr == nil {
		return nil
	}

	log.Printf("cutover: %s: patch %s workload failed (%v), creating from template", app, target, patchErr)

	if createErr := c.Orch.CreateWorkload(ctx, app, target, image); createErr != nil {
		return &ApplyError{App: app, Color: target, PatchErr: patchErr, CreateErr: createErr}
	}
	return nil
}
