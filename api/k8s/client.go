// Package k8s implements the cutover.Orchestrator interface against a
// Kubernetes cluster. The routing record is the app's Service (its
// selector carries a "color" key); the per-slot workloads are
// Deployments named <app>-<color>.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"janus/api/cutover"
	"janus/api/model"
)

type Client struct {
	cs        kubernetes.Interface
	namespace string
	appsDir   string
}

// NewClient connects with in-cluster config, falling back to the local
// kubeconfig for development.
func NewClient(namespace, appsDir string) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := filepath.Join(os.Getenv("HOME"), ".kube", "config")
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("k8s config: %w", err)
		}
	}
	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("k8s clientset: %w", err)
	}
	return New(cs, namespace, appsDir), nil
}

// New wraps an existing clientset; tests pass a fake.
func New(cs kubernetes.Interface, namespace, appsDir string) *Client {
	return &Client{cs: cs, namespace: namespace, appsDir: appsDir}
}

func workloadName(app string, color model.DeploymentColor) string {
	return fmt.Sprintf("%s-%s", app, color)
}

func (c *Client) RoutingSelector(ctx context.Context, app string) (model.DeploymentColor, error) {
	svc, err := c.cs.CoreV1().Services(c.namespace).Get(ctx, app, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return "", fmt.Errorf("service %s: %w", app, cutover.ErrNotFound)
		}
		return "", err
	}
	raw, ok := svc.Spec.Selector["color"]
	if !ok || raw == "" {
		return "", fmt.Errorf("service %s has no color selector: %w", app, cutover.ErrNotFound)
	}
	return model.ParseColor(raw)
}

func (c *Client) Workload(ctx context.Context, app string, color model.DeploymentColor) (*cutover.Workload, error) {
	dep, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, workloadName(app, color), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil, fmt.Errorf("workload %s: %w", workloadName(app, color), cutover.ErrNotFound)
		}
		return nil, err
	}

	w := &cutover.Workload{
		App:           app,
		Color:         color,
		ReadyReplicas: dep.Status.ReadyReplicas,
		Status:        rolloutStatus(dep),
	}
	w.DesiredReplicas = 1
	if dep.Spec.Replicas != nil {
		w.DesiredReplicas = *dep.Spec.Replicas
	}
	if len(dep.Spec.Template.Spec.Containers) > 0 {
		w.Image = dep.Spec.Template.Spec.Containers[appContainerIndex(dep, app)].Image
	}
	return w, nil
}

func (c *Client) PatchWorkloadImage(ctx context.Context, app string, color model.DeploymentColor, image string) error {
	name := workloadName(app, color)
	dep, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return fmt.Errorf("workload %s: %w", name, cutover.ErrNotFound)
		}
		return err
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("workload %s has no containers", name)
	}
	dep.Spec.Template.Spec.Containers[appContainerIndex(dep, app)].Image = image
	// Conflicts from concurrent writers propagate to the caller.
	_, err = c.cs.AppsV1().Deployments(c.namespace).Update(ctx, dep, metav1.UpdateOptions{})
	return err
}

func (c *Client) CreateWorkload(ctx context.Context, app string, color model.DeploymentColor, image string) error {
	dep, err := c.workloadTemplate(app, color)
	if err != nil {
		return err
	}

	dep.Name = workloadName(app, color)
	dep.Namespace = c.namespace
	forceLabels(dep, app, color)
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("workload template for %s/%s has no containers", app, color)
	}
	dep.Spec.Template.Spec.Containers[appContainerIndex(dep, app)].Image = image

	_, err = c.cs.AppsV1().Deployments(c.namespace).Create(ctx, dep, metav1.CreateOptions{})
	return err
}

func (c *Client) RolloutStatus(ctx context.Context, app string, color model.DeploymentColor) (cutover.RolloutStatus, error) {
	name := workloadName(app, color)
	dep, err := c.cs.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return "", fmt.Errorf("workload %s: %w", name, cutover.ErrNotFound)
		}
		return "", err
	}
	return rolloutStatus(dep), nil
}

// PatchRoutingSelector repoints the Service selector in a single Patch
// call, so readers never observe an intermediate state. When the Service
// does not exist yet (cold start) it is created pointing at the target.
func (c *Client) PatchRoutingSelector(ctx context.Context, app string, color model.DeploymentColor) error {
	patch := fmt.Sprintf(`{"spec":{"selector":{"color":"%s"}}}`, color)
	_, err := c.cs.CoreV1().Services(c.namespace).Patch(ctx, app, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err == nil {
		return nil
	}
	if !k8serrors.IsNotFound(err) {
		return err
	}

	if err := c.createService(ctx, app, color); err != nil {
		if !k8serrors.IsAlreadyExists(err) {
			return err
		}
		// Lost the creation race; the patch will land on the winner.
		_, err = c.cs.CoreV1().Services(c.namespace).Patch(ctx, app, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
		return err
	}
	return nil
}

func (c *Client) DeleteWorkload(ctx context.Context, app string, color model.DeploymentColor) error {
	name := workloadName(app, color)
	err := c.cs.AppsV1().Deployments(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if k8serrors.IsNotFound(err) {
		return fmt.Errorf("workload %s: %w", name, cutover.ErrNotFound)
	}
	return err
}

func (c *Client) createService(ctx context.Context, app string, color model.DeploymentColor) error {
	port := 80
	if spec, err := model.LoadSpec(c.appsDir, app); err == nil && spec.Port > 0 {
		port = spec.Port
	}
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      app,
			Namespace: c.namespace,
			Labels:    map[string]string{"managed-by": "janus", "app": app},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": app, "color": string(color)},
			Type:     corev1.ServiceTypeClusterIP,
			Ports: []corev1.ServicePort{{
				Port:       80,
				TargetPort: intstr.FromInt32(int32(port)),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
	_, err := c.cs.CoreV1().Services(c.namespace).Create(ctx, svc, metav1.CreateOptions{})
	return err
}

// appContainerIndex returns the container named after the app, or 0.
func appContainerIndex(dep *appsv1.Deployment, app string) int {
	for i, ct := range dep.Spec.Template.Spec.Containers {
		if ct.Name == app {
			return i
		}
	}
	return 0
}

func forceLabels(dep *appsv1.Deployment, app string, color model.DeploymentColor) {
	labels := map[string]string{
		"managed-by": "janus",
		"app":        app,
		"color":      string(color),
	}
	dep.Labels = merge(dep.Labels, labels)
	dep.Spec.Selector = &metav1.LabelSelector{
		MatchLabels: map[string]string{"app": app, "color": string(color)},
	}
	dep.Spec.Template.Labels = merge(dep.Spec.Template.Labels, labels)
}

func merge(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// rolloutStatus condenses a Deployment's status into the coarse rollout
// states the cutover monitor polls on.
func rolloutStatus(dep *appsv1.Deployment) cutover.RolloutStatus {
	for _, cond := range dep.Status.Conditions {
		if cond.Type == appsv1.DeploymentProgressing &&
			cond.Status == corev1.ConditionFalse &&
			cond.Reason == "ProgressDeadlineExceeded" {
			return cutover.RolloutFailed
		}
		if cond.Type == appsv1.DeploymentReplicaFailure && cond.Status == corev1.ConditionTrue {
			return cutover.RolloutFailed
		}
	}

	if dep.Generation > dep.Status.ObservedGeneration {
		return cutover.RolloutProgressing
	}

	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	if dep.Status.Replicas == 0 && desired > 0 {
		return cutover.RolloutPending
	}
	if dep.Status.UpdatedReplicas < desired ||
		dep.Status.ReadyReplicas < desired ||
		dep.Status.AvailableReplicas < desired {
		return cutover.RolloutProgressing
	}
	return cutover.RolloutHealthy
}
