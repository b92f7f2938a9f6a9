package cutover

import (
	"context"
	"time"

	"janus/api/model"
)

// State is the controller's position in a single cutover cycle.
type State string

const (
	StateIdle           State = "idle"
	StateResolvingColor State = "resolving_color"
	StateDeploying      State = "deploying"
	StateMonitoring     State = "monitoring"
	StateSwitching      State = "switching"
	StateReaping        State = "reaping"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Request is the only external input to a cutover cycle.
type Request struct {
	App   string
	Image string
}

// Result records what a cycle did: the color that was live when it
// started, the color it targeted, and the terminal state.
type Result struct {
	From  model.DeploymentColor `json:"from"`
	To    model.DeploymentColor `json:"to"`
	State State                 `json:"state"`
}

// Controller runs blue-green cutover cycles against an injected
// Orchestrator. A cycle is a single sequential flow; the rollout wait is
// its only suspension point. The controller provides no mutual exclusion:
// callers must not run two cycles for the same app concurrently.
type Controller struct {
	Orch     Orchestrator
	Timeout  time.Duration // rollout wait bound, default 5m
	Interval time.Duration // rollout poll interval, default 2s

	// Notify, when set, observes every state transition.
	Notify func(app string, state State)
}

const (
	defaultTimeout  = 5 * time.Minute
	defaultInterval = 2 * time.Second
)

// Run executes one cutover cycle. On success the routing selector points
// at the toggled color and the previous slot's workload has been
// best-effort removed. On failure routing is untouched except when the
// returned error is a *SwitchError, which means the target workload is
// healthy but unreferenced and needs a re-run or operator action.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{State: StateIdle}

	c.transition(res, req.App, StateResolvingColor)
	current := c.resolveColor(ctx, req.App)
	res.From = current
	res.To = current.Toggle()

	c.transition(res, req.App, StateDeploying)
	if err := c.apply(ctx, req.App, res.To, req.Image); err != nil {
		c.transition(res, req.App, StateFailed)
		return res, err
	}

	c.transition(res, req.App, StateMonitoring)
	if err := c.await(ctx, req.App, res.To); err != nil {
		c.transition(res, req.App, StateFailed)
		return res, err
	}

	c.transition(res, req.App, StateSwitching)
	if err := c.switchTraffic(ctx, req.App, res.To); err != nil {
		c.transition(res, req.App, StateFailed)
		return res, err
	}

	// Reap failures never affect the cycle's outcome.
	c.transition(res, req.App, StateReaping)
	c.reap(ctx, req.App, res.From)

	c.transition(res, req.App, StateDone)
	return res, nil
}

func (c *Controller) transition(res *Result, app string, next State) {
	res.State = next
	if c.Notify != nil {
		c.Notify(app, next)
	}
}

func (c *Controller) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c *Controller) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return defaultInterval
}
