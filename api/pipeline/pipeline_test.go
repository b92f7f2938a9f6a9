package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"janus/api/cutover"
	"janus/api/model"
)

func TestStatusForStep(t *testing.T) {
	tests := []struct {
		step string
		want model.DeployStatus
	}{
		{"checkout", model.StatusCheckingOut},
		{"build", model.StatusBuilding},
		{"push", model.StatusPushing},
		{"deploy", model.StatusDeploying},
		{"unknown", model.StatusQueued},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			if got := statusForStep(tt.step); got != tt.want {
				t.Errorf("statusForStep(%q) = %q, want %q", tt.step, got, tt.want)
			}
		})
	}
}

func TestIsSSHURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"git@github.com:org/repo.git", true},
		{"ssh://git@example.com/repo.git", true},
		{"https://github.com/org/repo.git", false},
		{"http://git.internal/repo.git", false},
	}

	for _, tt := range tests {
		if got := isSSHURL(tt.url); got != tt.want {
			t.Errorf("isSSHURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

// stubOrch satisfies cutover.Orchestrator with a fixed live color and
// always-healthy rollouts.
type stubOrch struct {
	live      model.DeploymentColor
	switchErr error
}

func (s *stubOrch) RoutingSelector(ctx context.Context, app string) (model.DeploymentColor, error) {
	return s.live, nil
}
func (s *stubOrch) Workload(ctx context.Context, app string, c model.DeploymentColor) (*cutover.Workload, error) {
	return nil, cutover.ErrNotFound
}
func (s *stubOrch) PatchWorkloadImage(ctx context.Context, app string, c model.DeploymentColor, image string) error {
	return nil
}
func (s *stubOrch) CreateWorkload(ctx context.Context, app string, c model.DeploymentColor, image string) error {
	return nil
}
func (s *stubOrch) RolloutStatus(ctx context.Context, app string, c model.DeploymentColor) (cutover.RolloutStatus, error) {
	return cutover.RolloutHealthy, nil
}
func (s *stubOrch) PatchRoutingSelector(ctx context.Context, app string, c model.DeploymentColor) error {
	if s.switchErr == nil {
		s.live = c
	}
	return s.switchErr
}
func (s *stubOrch) DeleteWorkload(ctx context.Context, app string, c model.DeploymentColor) error {
	return cutover.ErrNotFound
}

func TestDeployStep_RecordsColors(t *testing.T) {
	p := &Pipeline{
		Cutover: &cutover.Controller{
			Orch:     &stubOrch{live: model.Blue},
			Timeout:  time.Second,
			Interval: 10 * time.Millisecond,
		},
	}
	d := &model.Deployment{App: "web", ImageTag: "web:abc"}

	out, err := p.deploy(context.Background(), d, &model.AppSpec{App: "web"})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if d.FromColor != model.Blue || d.ToColor != model.Green {
		t.Errorf("colors = %s/%s, want blue/green", d.FromColor, d.ToColor)
	}
	if !strings.Contains(out, "green") {
		t.Errorf("output = %q", out)
	}
}

func TestDeployStep_FailureStillRecordsColors(t *testing.T) {
	p := &Pipeline{
		Cutover: &cutover.Controller{
			Orch:     &stubOrch{live: model.Green, switchErr: errors.New("conflict")},
			Timeout:  time.Second,
			Interval: 10 * time.Millisecond,
		},
	}
	d := &model.Deployment{App: "web", ImageTag: "web:abc"}

	_, err := p.deploy(context.Background(), d, &model.AppSpec{App: "web"})
	if err == nil {
		t.Fatal("expected switch failure")
	}
	var se *cutover.SwitchError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SwitchError", err)
	}
	if d.FromColor != model.Green || d.ToColor != model.Blue {
		t.Errorf("colors = %s/%s, want green/blue", d.FromColor, d.ToColor)
	}
}
