package cutover

import (
	"context"
	"errors"

	"janus/api/model"
)

// RolloutStatus is the orchestrator's view of a workload's progress
// toward running all desired replicas.
type RolloutStatus string

const (
	RolloutPending     RolloutStatus = "pending"
	RolloutProgressing RolloutStatus = "progressing"
	RolloutHealthy     RolloutStatus = "healthy"
	RolloutFailed      RolloutStatus = "failed"
)

// ErrNotFound is returned by Orchestrator implementations when the
// requested routing selector or workload does not exist.
var ErrNotFound = errors.New("not found")

// Workload is the per-slot deployment as reported by the orchestrator.
type Workload struct {
	App             string
	Color           model.DeploymentColor
	Image           string
	DesiredReplicas int32
	ReadyReplicas   int32
	Status          RolloutStatus
}

// Orchestrator is the cluster-management surface the cutover controller
// drives. All cluster state lives behind it; the controller holds none.
// Conflicting concurrent writes are reported as plain errors by the
// implementation and surface as ApplyError/SwitchError here.
type Orchestrator interface {
	// RoutingSelector returns the color the app's routing object points
	// at, or ErrNotFound when the routing object does not exist or has
	// no color selector yet.
	RoutingSelector(ctx context.Context, app string) (model.DeploymentColor, error)

	// Workload returns the slot's workload, or ErrNotFound.
	Workload(ctx context.Context, app string, color model.DeploymentColor) (*Workload, error)

	// PatchWorkloadImage updates the image of the slot's existing workload.
	PatchWorkloadImage(ctx context.Context, app string, color model.DeploymentColor, image string) error

	// CreateWorkload materializes the slot's workload from its static
	// per-color template, running the given image.
	CreateWorkload(ctx context.Context, app string, color model.DeploymentColor, image string) error

	// RolloutStatus reports the slot's current rollout progress.
	RolloutStatus(ctx context.Context, app string, color model.DeploymentColor) (RolloutStatus, error)

	// PatchRoutingSelector atomically repoints the routing object at the
	// given color. Readers never observe an intermediate state.
	PatchRoutingSelector(ctx context.Context, app string, color model.DeploymentColor) error

	// DeleteWorkload removes the slot's workload. Returns ErrNotFound
	// when it is already gone.
	DeleteWorkload(ctx context.Context, app string, color model.DeploymentColor) error
}
