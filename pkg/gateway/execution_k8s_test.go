package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/datamorph/datamorph/pkg/config"
)

func TestKubernetesBackendSubmitCreatesPod(t *testing.T) {
	client := fake.NewSimpleClientset()
	backend := NewKubernetesExecutionBackend(client, &config.ExecutionConfig{
		JobImage:  "datamorph/etl-runner:latest",
		Namespace: "pipelines",
	})

	handle, err := backend.Submit(context.Background(), Job{
		RunID:      "20240115_093042_a1b2c3d4",
		ScriptPath: "s3://bucket/glue/codes/run.py",
	})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if strings.Contains(handle.ID, "_") {
		t.Fatalf("pod name must be DNS-1123 compliant, got %q", handle.ID)
	}

	pod, err := client.CoreV1().Pods("pipelines").Get(context.Background(), handle.ID, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected pod created: %v", err)
	}
	if pod.Labels[labelRunID] != "20240115_093042_a1b2c3d4" {
		t.Fatalf("unexpected run id label %q", pod.Labels[labelRunID])
	}
	if pod.Spec.Containers[0].Image != "datamorph/etl-runner:latest" {
		t.Fatalf("unexpected image %q", pod.Spec.Containers[0].Image)
	}
	if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
		t.Fatal("expected RestartPolicy Never")
	}
}

func TestKubernetesBackendResubmitGetsFreshPod(t *testing.T) {
	client := fake.NewSimpleClientset()
	backend := NewKubernetesExecutionBackend(client, &config.ExecutionConfig{
		JobImage:  "datamorph/etl-runner:latest",
		Namespace: "pipelines",
	})

	first, err := backend.Submit(context.Background(), Job{RunID: "run-1", Script: "df = load()"})
	if err != nil {
		t.Fatalf("first submit error: %v", err)
	}

	// The first attempt finishes before remediation resubmits the run.
	pod, _ := client.CoreV1().Pods("pipelines").Get(context.Background(), first.ID, metav1.GetOptions{})
	pod.Status.Phase = corev1.PodSucceeded
	if _, err := client.CoreV1().Pods("pipelines").Update(context.Background(), pod, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update pod: %v", err)
	}

	second, err := backend.Submit(context.Background(), Job{RunID: "run-1", Script: "df = load_fixed()"})
	if err != nil {
		t.Fatalf("second submit error: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("resubmission reused pod %q", first.ID)
	}

	pod, err = client.CoreV1().Pods("pipelines").Get(context.Background(), second.ID, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected second pod created: %v", err)
	}
	var script string
	for _, env := range pod.Spec.Containers[0].Env {
		if env.Name == "DATAMORPH_SCRIPT" {
			script = env.Value
		}
	}
	if script != "df = load_fixed()" {
		t.Fatalf("second pod carries stale script %q", script)
	}

	state, err := backend.PollStatus(context.Background(), second)
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if state != JobRunning {
		t.Fatalf("second submission must not inherit the first pod's status, got %s", state)
	}
}

func TestKubernetesBackendPollStatus(t *testing.T) {
	client := fake.NewSimpleClientset()
	backend := NewKubernetesExecutionBackend(client, &config.ExecutionConfig{Namespace: "pipelines"})

	handle, err := backend.Submit(context.Background(), Job{RunID: "run-1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	state, err := backend.PollStatus(context.Background(), handle)
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if state != JobRunning {
		t.Fatalf("expected running before terminal phase, got %s", state)
	}

	pod, _ := client.CoreV1().Pods("pipelines").Get(context.Background(), handle.ID, metav1.GetOptions{})
	pod.Status.Phase = corev1.PodSucceeded
	if _, err := client.CoreV1().Pods("pipelines").Update(context.Background(), pod, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update pod: %v", err)
	}

	state, err = backend.PollStatus(context.Background(), handle)
	if err != nil {
		t.Fatalf("poll error: %v", err)
	}
	if state != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", state)
	}
}

func TestKubernetesBackendCleanup(t *testing.T) {
	client := fake.NewSimpleClientset()
	backend := NewKubernetesExecutionBackend(client, &config.ExecutionConfig{Namespace: "pipelines"})

	handle, err := backend.Submit(context.Background(), Job{RunID: "run-1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	if err := backend.Cleanup(context.Background(), handle); err != nil {
		t.Fatalf("cleanup error: %v", err)
	}

	// Deleting an already-deleted pod is not an error.
	if err := backend.Cleanup(context.Background(), handle); err != nil {
		t.Fatalf("cleanup of missing pod should be nil, got %v", err)
	}
}

func TestGatewayCleansUpPodAfterTerminalState(t *testing.T) {
	client := fake.NewSimpleClientset()
	backend := NewKubernetesExecutionBackend(client, &config.ExecutionConfig{Namespace: "pipelines"})
	gw := NewExecutionGateway(backend, time.Millisecond, time.Second, zap.NewNop())

	handle, err := gw.Submit(context.Background(), Job{RunID: "run-1"})
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}

	pod, _ := client.CoreV1().Pods("pipelines").Get(context.Background(), handle.ID, metav1.GetOptions{})
	pod.Status.Phase = corev1.PodSucceeded
	if _, err := client.CoreV1().Pods("pipelines").Update(context.Background(), pod, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update pod: %v", err)
	}

	result, err := gw.WaitForCompletion(context.Background(), handle)
	if err != nil {
		t.Fatalf("wait error: %v", err)
	}
	if result.State != JobSucceeded {
		t.Fatalf("expected succeeded, got %s", result.State)
	}

	_, err = client.CoreV1().Pods("pipelines").Get(context.Background(), handle.ID, metav1.GetOptions{})
	if !k8serrors.IsNotFound(err) {
		t.Fatalf("expected pod deleted after terminal state, got %v", err)
	}
}
