package cutover

import (
	"fmt"

	"janus/api/model"
)

// ApplyError means both the in-place image patch and the
// create-from-template fallback failed. Routing was not touched.
type ApplyError struct {
	App       string
	Color     model.DeploymentColor
	PatchErr  error
	CreateErr error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s/%s: patch failed (%v), create failed (%v)",
		e.App, e.Color, e.PatchErr, e.CreateErr)
}

func (e *ApplyError) Unwrap() []error {
	return []error{e.PatchErr, e.CreateErr}
}

// RolloutError means the target workload never reached healthy. Traffic
// stays on the previous color, so this failure mode is safe.
type RolloutError struct {
	App     string
	Color   model.DeploymentColor
	Timeout bool
	Err     error
}

func (e *RolloutError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("rollout %s/%s: timed out waiting for healthy", e.App, e.Color)
	}
	if e.Err != nil {
		return fmt.Sprintf("rollout %s/%s: %v", e.App, e.Color, e.Err)
	}
	return fmt.Sprintf("rollout %s/%s: orchestrator reported failure", e.App, e.Color)
}

func (e *RolloutError) Unwrap() error { return e.Err }

// SwitchError means the atomic selector patch failed after the target
// workload became healthy. The new workload is running but receives no
// traffic; re-running the cutover (or patching the selector by hand)
// recovers.
type SwitchError struct {
	App   string
	Color model.DeploymentColor
	Err   error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("switch %s to %s: %v", e.App, e.Color, e.Err)
}

func (e *SwitchError) Unwrap() error { return e.Err }
