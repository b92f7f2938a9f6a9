package pipeline

import (
	"context"
	"fmt"
	"os/exec"

	"janus/api/model"
)

func (p *Pipeline) build(ctx context.Context, d *model.Deployment, spec *model.AppSpec) (string, error) {
	sha := d.CommitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	d.ImageTag = fmt.Sprintf("%s:%s", spec.App, sha)
	if p.RegistryURL != "" {
		d.ImageTag = fmt.Sprintf("%s/%s", p.RegistryURL, d.ImageTag)
	}

	args := []string{"build",
		"--build-arg", fmt.Sprintf("VERSION=%s", d.CommitSHA),
		"-t", d.ImageTag,
	}
	if spec.Build != nil && spec.Build.Dockerfile != "" {
		args = append(args, "-f", spec.Build.Dockerfile)
	}
	args = append(args, d.WorkDir)

	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker build: %s", string(out))
	}
	return fmt.Sprintf("built %s", d.ImageTag), nil
}

func (p *Pipeline) push(ctx context.Context, d *model.Deployment, spec *model.AppSpec) (string, error) {
	if p.RegistryURL == "" {
		return "skipped (no registry configured)", nil
	}
	cmd := exec.CommandContext(ctx, "docker", "push", d.ImageTag)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker push: %s", string(out))
	}
	return fmt.Sprintf("pushed %s", d.ImageTag), nil
}
