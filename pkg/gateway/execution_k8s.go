package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/datamorph/datamorph/pkg/config"
)

const (
	labelRunID    = "datamorph.io/run-id"
	labelWorkload = "datamorph.io/workload"
)

// KubernetesExecutionBackend runs generated transformation code as a pod:
// one pod per submission, status read back from the pod phase.
type KubernetesExecutionBackend struct {
	k8sClient kubernetes.Interface
	jobImage  string
	namespace string
}

func NewKubernetesExecutionBackend(k8sClient kubernetes.Interface, cfg *config.ExecutionConfig) *KubernetesExecutionBackend {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}
	return &KubernetesExecutionBackend{
		k8sClient: k8sClient,
		jobImage:  cfg.JobImage,
		namespace: namespace,
	}
}

// NewKubernetesClient builds a clientset from in-cluster config or a
// kubeconfig path.
func NewKubernetesClient(cfg *config.ExecutionConfig) (kubernetes.Interface, error) {
	var (
		restConfig *rest.Config
		err        error
	)
	if cfg.InCluster {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
	}
	return kubernetes.NewForConfig(restConfig)
}

func (b *KubernetesExecutionBackend) Submit(ctx context.Context, job Job) (JobHandle, error) {
	pod := b.buildPod(job)

	created, err := b.k8sClient.CoreV1().Pods(b.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		// A name collision means a pod from an earlier submission is still
		// around; reusing it would report the old script's outcome.
		return JobHandle{}, &ExecutionError{Err: fmt.Errorf("failed to create pod: %w", err)}
	}

	return JobHandle{ID: created.Name}, nil
}

func (b *KubernetesExecutionBackend) PollStatus(ctx context.Context, handle JobHandle) (JobState, error) {
	pod, err := b.k8sClient.CoreV1().Pods(b.namespace).Get(ctx, handle.ID, metav1.GetOptions{})
	if err != nil {
		return "", &ExecutionError{Err: fmt.Errorf("failed to get pod %s: %w", handle.ID, err)}
	}

	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return JobSucceeded, nil
	case corev1.PodFailed:
		return JobFailed, nil
	default:
		return JobRunning, nil
	}
}

func (b *KubernetesExecutionBackend) buildPod(job Job) *corev1.Pod {
	// Run ids contain underscores, which DNS-1123 pod names do not allow.
	// The random suffix keeps each submission distinct: a remediated run
	// resubmits under the same run id and must get a fresh pod.
	podName := fmt.Sprintf("dm-etl-%s-%s",
		strings.ReplaceAll(job.RunID, "_", "-"), uuid.NewString()[:8])

	args := []string{}
	if job.ScriptPath != "" {
		args = append(args, job.ScriptPath)
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName,
			Namespace: b.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "datamorph",
				labelRunID:                     job.RunID,
				labelWorkload:                  "true",
			},
			Annotations: map[string]string{
				"datamorph.io/created-at": time.Now().Format(time.RFC3339),
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:  "main",
					Image: b.jobImage,
					Args:  args,
					Env: []corev1.EnvVar{
						{Name: "DATAMORPH_RUN_ID", Value: job.RunID},
						{Name: "DATAMORPH_SCRIPT", Value: job.Script},
					},
				},
			},
		},
	}
}

// Cleanup deletes the pod backing a finished job.
func (b *KubernetesExecutionBackend) Cleanup(ctx context.Context, handle JobHandle) error {
	err := b.k8sClient.CoreV1().Pods(b.namespace).Delete(ctx, handle.ID, metav1.DeleteOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return &ExecutionError{Err: fmt.Errorf("failed to delete pod %s: %w", handle.ID, err)}
	}
	return nil
}
