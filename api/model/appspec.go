package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// AppSpec describes one deployable application. Each app lives in its own
// directory under the apps dir and carries an appspec.yaml; the optional
// per-color workload templates (workload-blue.yaml / workload-green.yaml)
// sit next to it.
type AppSpec struct {
	App         string            `yaml:"app" json:"app"`
	Port        int               `yaml:"port,omitempty" json:"port,omitempty"`
	Healthcheck string            `yaml:"healthcheck,omitempty" json:"healthcheck,omitempty"`
	Replicas    int               `yaml:"replicas,omitempty" json:"replicas,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Build       *BuildSpec        `yaml:"build,omitempty" json:"build,omitempty"`
	Repo        *RepoSpec         `yaml:"repo,omitempty" json:"repo,omitempty"`
	Hosts       *Hosts            `yaml:"hosts,omitempty" json:"hosts,omitempty"`
	Deploy      bool              `yaml:"deploy,omitempty" json:"deploy,omitempty"` // must be true to appear in janus
}

type BuildSpec struct {
	Dockerfile string `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
}

type RepoSpec struct {
	URL           string `yaml:"url" json:"url"`
	Branch        string `yaml:"branch,omitempty" json:"branch,omitempty"`
	WebhookSecret string `yaml:"webhookSecret,omitempty" json:"-"`
	AutoDeploy    bool   `yaml:"autoDeploy,omitempty" json:"autoDeploy,omitempty"`
}

type Hosts struct {
	External string `yaml:"external,omitempty" json:"external,omitempty"`
	Internal string `yaml:"internal,omitempty" json:"internal,omitempty"`
}

var validAppRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func (s *AppSpec) Validate() error {
	if s.App == "" {
		return fmt.Errorf("appspec: app name is required")
	}
	if !validAppRe.MatchString(s.App) {
		return fmt.Errorf("appspec: invalid app name %q", s.App)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("appspec: invalid port %d", s.Port)
	}
	if s.Replicas < 0 {
		return fmt.Errorf("appspec: invalid replicas %d", s.Replicas)
	}
	return nil
}

// LoadSpec reads <appsDir>/<app>/appspec.yaml.
func LoadSpec(appsDir, app string) (*AppSpec, error) {
	data, err := os.ReadFile(filepath.Join(appsDir, app, "appspec.yaml"))
	if err != nil {
		return nil, err
	}
	var spec AppSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse appspec for %s: %w", app, err)
	}
	if spec.App == "" {
		spec.App = app
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// DiscoverApps scans the apps dir for subdirectories containing an
// appspec.yaml with deploy: true. Directories without a spec are skipped.
func DiscoverApps(appsDir string) ([]*AppSpec, error) {
	entries, err := os.ReadDir(appsDir)
	if err != nil {
		return nil, err
	}

	var specs []*AppSpec
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		spec, err := LoadSpec(appsDir, e.Name())
		if err != nil {
			continue
		}
		if !spec.Deploy {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
