// Package pipeline runs the per-app CI flow: checkout → build image →
// push image → blue-green deploy. Steps run in order and the pipeline
// stops at the first failure; only the deploy step touches the cluster.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"janus/api/cutover"
	"janus/api/hub"
	"janus/api/model"
	"janus/api/storage"
	"janus/api/store"
)

type Pipeline struct {
	DB          *store.DB
	WS          *hub.Hub
	Cutover     *cutover.Controller
	S3          *storage.Client
	AppsDir     string
	RegistryURL string
	GitToken    string
	GitSSHKey   string
}

type step struct {
	name string
	fn   func(ctx context.Context, d *model.Deployment, s *model.AppSpec) (string, error)
}

func (p *Pipeline) Run(deploy *model.Deployment, spec *model.AppSpec) {
	ctx := context.Background()
	steps := []step{
		{name: "checkout", fn: p.checkout},
		{name: "build", fn: p.build},
		{name: "push", fn: p.push},
		{name: "deploy", fn: p.deploy},
	}

	defer func() {
		if deploy.WorkDir != "" {
			os.RemoveAll(deploy.WorkDir)
		}
	}()

	for _, s := range steps {
		deploy.Status = statusForStep(s.name)
		p.DB.UpdateDeployment(ctx, deploy)
		p.WS.Broadcast(hub.Event{Type: "deploy.step", AppID: deploy.App, Payload: map[string]string{
			"step":   s.name,
			"status": string(deploy.Status),
		}})

		start := time.Now()
		output, err := s.fn(ctx, deploy, spec)
		elapsed := time.Since(start).Milliseconds()

		stepStatus := model.StatusDeployed
		if err != nil {
			stepStatus = model.StatusFailed
			output = err.Error()
		}

		deploy.Steps = append(deploy.Steps, model.StepLog{
			Step:       s.name,
			Status:     stepStatus,
			DurationMs: elapsed,
			Output:     output,
		})

		if err != nil {
			deploy.Status = model.StatusFailed
			deploy.Error = fmt.Sprintf("%s: %v", s.name, err)
			p.DB.UpdateDeployment(ctx, deploy)
			p.WS.Broadcast(hub.Event{Type: "deploy.failed", AppID: deploy.App, Payload: deploy})
			p.archive(ctx, deploy)
			return
		}
	}

	deploy.Status = model.StatusDeployed
	p.DB.UpdateDeployment(ctx, deploy)
	p.WS.Broadcast(hub.Event{Type: "deploy.completed", AppID: deploy.App, Payload: deploy})
	p.archive(ctx, deploy)
}

// deploy hands off to the cutover controller. From/to colors land on the
// deployment record even when the cycle fails partway.
func (p *Pipeline) deploy(ctx context.Context, d *model.Deployment, s *model.AppSpec) (string, error) {
	res, err := p.Cutover.Run(ctx, cutover.Request{App: d.App, Image: d.ImageTag})
	if res != nil {
		d.FromColor = res.From
		d.ToColor = res.To
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("switched traffic from %s to %s (%s)", res.From, res.To, d.ImageTag), nil
}

func (p *Pipeline) archive(ctx context.Context, d *model.Deployment) {
	if p.S3 == nil {
		return
	}
	if err := p.S3.ArchiveDeployment(ctx, d); err != nil {
		log.Printf("pipeline: archive %s: %v", d.ID, err)
	}
}

func statusForStep(name string) model.DeployStatus {
	switch name {
	case "checkout":
		return model.StatusCheckingOut
	case "build":
		return model.StatusBuilding
	case "push":
		return model.StatusPushing
	case "deploy":
		return model.StatusDeploying
	default:
		return model.StatusQueued
	}
}
