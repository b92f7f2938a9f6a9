package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"

	"janus/api/model"
)

// workloadTemplate loads the static per-color workload definition for an
// app: workload-<color>.yaml next to the appspec when present, otherwise
// a Deployment synthesized from the appspec. Name, namespace, labels and
// image are forced by the caller either way.
func (c *Client) workloadTemplate(app string, color model.DeploymentColor) (*appsv1.Deployment, error) {
	path := filepath.Join(c.appsDir, app, fmt.Sprintf("workload-%s.yaml", color))
	data, err := os.ReadFile(path)
	if err == nil {
		var dep appsv1.Deployment
		if err := yaml.Unmarshal(data, &dep); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &dep, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	spec, err := model.LoadSpec(c.appsDir, app)
	if err != nil {
		return nil, fmt.Errorf("no workload template for %s/%s and no appspec: %w", app, color, err)
	}
	return synthesizeWorkload(spec, color), nil
}

func synthesizeWorkload(spec *model.AppSpec, color model.DeploymentColor) *appsv1.Deployment {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name: workloadName(spec.App, color),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr(int32(max(spec.Replicas, 1))),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name: spec.App,
						Env:  envVars(spec.Env),
					}},
				},
			},
		},
	}

	if spec.Port > 0 {
		dep.Spec.Template.Spec.Containers[0].Ports = []corev1.ContainerPort{{
			ContainerPort: int32(spec.Port),
		}}
	}

	if spec.Healthcheck != "" && spec.Port > 0 {
		handler := corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: spec.Healthcheck,
				Port: intstr.FromInt32(int32(spec.Port)),
			},
		}
		dep.Spec.Template.Spec.Containers[0].StartupProbe = &corev1.Probe{
			ProbeHandler:     handler,
			PeriodSeconds:    5,
			FailureThreshold: 30, // 5s * 30 = 150s to start
		}
		dep.Spec.Template.Spec.Containers[0].ReadinessProbe = &corev1.Probe{
			ProbeHandler:  handler,
			PeriodSeconds: 10,
		}
		dep.Spec.Template.Spec.Containers[0].LivenessProbe = &corev1.Probe{
			ProbeHandler:     handler,
			PeriodSeconds:    30,
			FailureThreshold: 3,
		}
	}

	return dep
}

func envVars(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return vars
}

func ptr[T any](v T) *T { return &v }
