package k8s

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"janus/api/cutover"
	"janus/api/model"
)

const testNS = "default"

func newTestClient(t *testing.T, appsDir string, objs ...runtime.Object) *Client {
	t.Helper()
	return New(fake.NewClientset(objs...), testNS, appsDir)
}

func makeService(app, color string) *corev1.Service {
	selector := map[string]string{"app": app}
	if color != "" {
		selector["color"] = color
	}
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: app, Namespace: testNS},
		Spec:       corev1.ServiceSpec{Selector: selector},
	}
}

func makeDeployment(name, container, image string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNS},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr(int32(1)),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: container, Image: image}},
				},
			},
		},
	}
}

func TestRoutingSelector(t *testing.T) {
	ctx := context.Background()

	t.Run("live color", func(t *testing.T) {
		c := newTestClient(t, "", makeService("web", "blue"))
		color, err := c.RoutingSelector(ctx, "web")
		if err != nil {
			t.Fatalf("RoutingSelector: %v", err)
		}
		if color != model.Blue {
			t.Errorf("color = %q, want blue", color)
		}
	})

	t.Run("missing service", func(t *testing.T) {
		c := newTestClient(t, "")
		_, err := c.RoutingSelector(ctx, "web")
		if !errors.Is(err, cutover.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("selector without color", func(t *testing.T) {
		c := newTestClient(t, "", makeService("web", ""))
		_, err := c.RoutingSelector(ctx, "web")
		if !errors.Is(err, cutover.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("mangled color", func(t *testing.T) {
		c := newTestClient(t, "", makeService("web", "purple"))
		_, err := c.RoutingSelector(ctx, "web")
		if err == nil {
			t.Fatal("expected error for unknown color")
		}
		if errors.Is(err, cutover.ErrNotFound) {
			t.Error("a mangled selector is not the same as an absent one")
		}
	})
}

func TestPatchWorkloadImage(t *testing.T) {
	ctx := context.Background()

	t.Run("updates existing workload", func(t *testing.T) {
		c := newTestClient(t, "", makeDeployment("web-green", "web", "repo:1"))
		if err := c.PatchWorkloadImage(ctx, "web", model.Green, "repo:2"); err != nil {
			t.Fatalf("PatchWorkloadImage: %v", err)
		}
		w, err := c.Workload(ctx, "web", model.Green)
		if err != nil {
			t.Fatalf("Workload: %v", err)
		}
		if w.Image != "repo:2" {
			t.Errorf("image = %q, want repo:2", w.Image)
		}
	})

	t.Run("missing workload", func(t *testing.T) {
		c := newTestClient(t, "")
		err := c.PatchWorkloadImage(ctx, "web", model.Green, "repo:2")
		if !errors.Is(err, cutover.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestPatchRoutingSelector(t *testing.T) {
	ctx := context.Background()

	t.Run("patches existing service", func(t *testing.T) {
		c := newTestClient(t, "", makeService("web", "blue"))
		if err := c.PatchRoutingSelector(ctx, "web", model.Green); err != nil {
			t.Fatalf("PatchRoutingSelector: %v", err)
		}
		color, err := c.RoutingSelector(ctx, "web")
		if err != nil {
			t.Fatalf("RoutingSelector: %v", err)
		}
		if color != model.Green {
			t.Errorf("color = %q, want green", color)
		}
	})

	t.Run("creates service on cold start", func(t *testing.T) {
		dir := t.TempDir()
		appDir := filepath.Join(dir, "web")
		os.MkdirAll(appDir, 0755)
		os.WriteFile(filepath.Join(appDir, "appspec.yaml"), []byte("app: web\nport: 3000\ndeploy: true\n"), 0644)

		c := newTestClient(t, dir)
		if err := c.PatchRoutingSelector(ctx, "web", model.Blue); err != nil {
			t.Fatalf("PatchRoutingSelector: %v", err)
		}
		color, err := c.RoutingSelector(ctx, "web")
		if err != nil {
			t.Fatalf("RoutingSelector: %v", err)
		}
		if color != model.Blue {
			t.Errorf("color = %q, want blue", color)
		}
	})
}

func TestCreateWorkload_Synthesized(t *testing.T) {
	dir := t.TempDir()
	appDir := filepath.Join(dir, "web")
	os.MkdirAll(appDir, 0755)
	spec := "app: web\nport: 3000\nhealthcheck: /healthz\nreplicas: 2\ndeploy: true\nenv:\n  LOG_LEVEL: debug\n"
	os.WriteFile(filepath.Join(appDir, "appspec.yaml"), []byte(spec), 0644)

	c := newTestClient(t, dir)
	ctx := context.Background()
	if err := c.CreateWorkload(ctx, "web", model.Blue, "repo:7"); err != nil {
		t.Fatalf("CreateWorkload: %v", err)
	}

	dep, err := c.cs.AppsV1().Deployments(testNS).Get(ctx, "web-blue", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if *dep.Spec.Replicas != 2 {
		t.Errorf("replicas = %d, want 2", *dep.Spec.Replicas)
	}
	if dep.Labels["color"] != "blue" || dep.Labels["app"] != "web" {
		t.Errorf("labels = %v", dep.Labels)
	}
	ct := dep.Spec.Template.Spec.Containers[0]
	if ct.Image != "repo:7" {
		t.Errorf("image = %q, want repo:7", ct.Image)
	}
	if ct.ReadinessProbe == nil || ct.ReadinessProbe.HTTPGet.Path != "/healthz" {
		t.Errorf("readiness probe = %+v", ct.ReadinessProbe)
	}
	if len(ct.Env) != 1 || ct.Env[0].Name != "LOG_LEVEL" {
		t.Errorf("env = %v", ct.Env)
	}
	if dep.Spec.Selector.MatchLabels["color"] != "blue" {
		t.Errorf("selector = %v", dep.Spec.Selector.MatchLabels)
	}
}

func TestCreateWorkload_FromTemplateFile(t *testing.T) {
	dir := t.TempDir()
	appDir := filepath.Join(dir, "web")
	os.MkdirAll(appDir, 0755)
	tmpl := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: ignored
spec:
  replicas: 3
  template:
    spec:
      containers:
      - name: web
        image: placeholder:latest
`
	os.WriteFile(filepath.Join(appDir, "workload-green.yaml"), []byte(tmpl), 0644)

	c := newTestClient(t, dir)
	ctx := context.Background()
	if err := c.CreateWorkload(ctx, "web", model.Green, "repo:9"); err != nil {
		t.Fatalf("CreateWorkload: %v", err)
	}

	dep, err := c.cs.AppsV1().Deployments(testNS).Get(ctx, "web-green", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if *dep.Spec.Replicas != 3 {
		t.Errorf("replicas = %d, want 3 (from template)", *dep.Spec.Replicas)
	}
	if got := dep.Spec.Template.Spec.Containers[0].Image; got != "repo:9" {
		t.Errorf("image = %q, want repo:9 (placeholder overridden)", got)
	}
	if dep.Labels["color"] != "green" {
		t.Errorf("labels = %v (template labels must be forced)", dep.Labels)
	}
}

func TestDeleteWorkload_NotFound(t *testing.T) {
	c := newTestClient(t, "")
	err := c.DeleteWorkload(context.Background(), "web", model.Blue)
	if !errors.Is(err, cutover.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRolloutStatus(t *testing.T) {
	base := func() *appsv1.Deployment {
		d := makeDeployment("web-blue", "web", "repo:1")
		d.Generation = 2
		d.Status.ObservedGeneration = 2
		return d
	}

	tests := []struct {
		name string
		mod  func(*appsv1.Deployment)
		want cutover.RolloutStatus
	}{
		{
			name: "no replicas observed yet",
			mod:  func(d *appsv1.Deployment) {},
			want: cutover.RolloutPending,
		},
		{
			name: "generation lag",
			mod: func(d *appsv1.Deployment) {
				d.Status.ObservedGeneration = 1
				d.Status.Replicas = 1
			},
			want: cutover.RolloutProgressing,
		},
		{
			name: "replicas not ready",
			mod: func(d *appsv1.Deployment) {
				d.Status.Replicas = 1
				d.Status.UpdatedReplicas = 1
			},
			want: cutover.RolloutProgressing,
		},
		{
			name: "all replicas available",
			mod: func(d *appsv1.Deployment) {
				d.Status.Replicas = 1
				d.Status.UpdatedReplicas = 1
				d.Status.ReadyReplicas = 1
				d.Status.AvailableReplicas = 1
			},
			want: cutover.RolloutHealthy,
		},
		{
			name: "progress deadline exceeded",
			mod: func(d *appsv1.Deployment) {
				d.Status.Conditions = []appsv1.DeploymentCondition{{
					Type:   appsv1.DeploymentProgressing,
					Status: corev1.ConditionFalse,
					Reason: "ProgressDeadlineExceeded",
				}}
			},
			want: cutover.RolloutFailed,
		},
		{
			name: "replica failure",
			mod: func(d *appsv1.Deployment) {
				d.Status.Conditions = []appsv1.DeploymentCondition{{
					Type:   appsv1.DeploymentReplicaFailure,
					Status: corev1.ConditionTrue,
				}}
			},
			want: cutover.RolloutFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mod(d)
			if got := rolloutStatus(d); got != tt.want {
				t.Errorf("rolloutStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkloadName(t *testing.T) {
	if got := workloadName("web", model.Blue); got != "web-blue" {
		t.Errorf("workloadName = %q", got)
	}
	if got := workloadName("api", model.Green); got != "api-green" {
		t.Errorf("workloadName = %q", got)
	}
}
