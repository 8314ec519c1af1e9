package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/globalcomix/claude-agent/pkg/envelope"
	"github.com/globalcomix/claude-agent/pkg/orchestrator"
)

func newTestOrchestrator() (*orchestrator.Orchestrator, *fake.Clientset) {
	client := fake.NewSimpleClientset()
	o := orchestrator.NewForClient(client, orchestrator.Config{
		Namespace:   "claude-agent",
		WorkerImage: "registry.example.com/agentworker:latest",
	})
	return o, client
}

func TestSpawnJob_CreatesJobWithQueueIDLabel(t *testing.T) {
	t.Parallel()
	o, client := newTestOrchestrator()
	ctx := context.Background()

	item := envelope.NewItem(envelope.NewReview(envelope.Review{
		Project: "group/project",
		MRIID:   "42",
	}))

	name, err := o.SpawnJob(ctx, item)
	require.NoError(t, err)
	assert.Contains(t, name, "claude-review")

	job, err := client.BatchV1().Jobs("claude-agent").Get(ctx, name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, item.ID, job.Labels["queue-id"])
	assert.Equal(t, "registry.example.com/agentworker:latest", job.Spec.Template.Spec.Containers[0].Image)
}

func TestJobPhase_NotFound(t *testing.T) {
	t.Parallel()
	o, _ := newTestOrchestrator()

	phase, err := o.JobPhase(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseNotFound, phase)
}

func TestJobPhase_Succeeded(t *testing.T) {
	t.Parallel()
	o, client := newTestOrchestrator()
	ctx := context.Background()

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "claude-review-42-abcd1234", Namespace: "claude-agent"},
		Status:     batchv1.JobStatus{Succeeded: 1},
	}
	_, err := client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	phase, err := o.JobPhase(ctx, "claude-review-42-abcd1234")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseSucceeded, phase)
}

func TestHasActiveJob(t *testing.T) {
	t.Parallel()
	o, client := newTestOrchestrator()
	ctx := context.Background()

	active, err := o.HasActiveJob(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "claude-review-42-abcd1234",
			Namespace: "claude-agent",
			Labels:    map[string]string{"app": "claude-review"},
		},
		Status: batchv1.JobStatus{Active: 1},
	}
	_, err = client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	active, err = o.HasActiveJob(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestActiveQueueIDs(t *testing.T) {
	t.Parallel()
	o, client := newTestOrchestrator()
	ctx := context.Background()

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "claude-review-42-abcd1234",
			Namespace: "claude-agent",
			Labels:    map[string]string{"app": "claude-review", "queue-id": "item-1"},
		},
	}
	_, err := client.BatchV1().Jobs("claude-agent").Create(ctx, job, metav1.CreateOptions{})
	require.NoError(t, err)

	ids, err := o.ActiveQueueIDs(ctx)
	require.NoError(t, err)
	assert.True(t, ids["item-1"])
	assert.False(t, ids["item-2"])
}

func TestDeleteJob_MissingIsNotAnError(t *testing.T) {
	t.Parallel()
	o, _ := newTestOrchestrator()

	err := o.DeleteJob(context.Background(), "does-not-exist")
	assert.NoError(t, err)
}
