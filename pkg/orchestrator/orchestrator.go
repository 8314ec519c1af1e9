// Package orchestrator materializes queue items as Kubernetes Jobs and
// tracks their lifecycle. It is the Go side of the original's scheduler,
// generalized from a single-platform MR review job into one that carries
// whichever envelope kind the queue handed it, and parameterized by
// namespace/image rather than hardcoding them.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/globalcomix/claude-agent/pkg/envelope"
)

// ErrNotFound names the case of a workload with no matching Job in the
// cluster. No Orchestrator method returns it: JobPhase reports a missing
// Job as PhaseNotFound, and DeleteJob treats one as already deleted.
var ErrNotFound = errors.New("orchestrator: job not found")

const (
	labelApp  = "app"
	appValue  = "claude-review"
	labelItem = "queue-id"

	secretName = "claude-agent-secrets"
)

// Phase reports the lifecycle state of a spawned Job.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseSucceeded
	PhaseFailed
	PhaseNotFound
)

// Config parameterizes every Job this orchestrator spawns.
type Config struct {
	Namespace   string
	WorkerImage string

	// TTLSecondsAfterFinished controls how long Kubernetes keeps a
	// completed Job around before garbage collecting it.
	TTLSecondsAfterFinished int32
	// JobTimeout bounds how long a single job is allowed to run before
	// the scheduler gives up on it and deletes it.
	JobTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "claude-agent"
	}
	if c.TTLSecondsAfterFinished == 0 {
		c.TTLSecondsAfterFinished = 900
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = 15 * time.Minute
	}
	return c
}

// Orchestrator wraps a Kubernetes client scoped to one namespace.
type Orchestrator struct {
	client kubernetes.Interface
	cfg    Config
}

// New builds an Orchestrator using in-cluster credentials, matching the
// original's Client::try_default(). There is no out-of-cluster constructor
// because dispatchd only ever runs as a cluster workload itself.
func New(cfg Config) (*Orchestrator, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load in-cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build clientset: %w", err)
	}
	return &Orchestrator{client: clientset, cfg: cfg.withDefaults()}, nil
}

// NewForClient builds an Orchestrator around an existing clientset,
// letting tests substitute k8s.io/client-go/kubernetes/fake.
func NewForClient(client kubernetes.Interface, cfg Config) *Orchestrator {
	return &Orchestrator{client: client, cfg: cfg.withDefaults()}
}

// HasActiveJob reports whether a worker Job is currently running, used by
// the scheduler to enforce single-flight processing.
func (o *Orchestrator) HasActiveJob(ctx context.Context) (bool, error) {
	jobs, err := o.client.BatchV1().Jobs(o.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelApp + "=" + appValue,
	})
	if err != nil {
		return false, fmt.Errorf("orchestrator: list jobs: %w", err)
	}
	for _, job := range jobs.Items {
		if job.Status.Active > 0 {
			return true, nil
		}
	}
	return false, nil
}

// jobName derives a Job name from a queue item, matching the original's
// "claude-review-<mriid>-<id prefix>" naming so existing cluster tooling
// that greps job names by prefix keeps working.
func jobName(item envelope.Item) string {
	id := item.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s", item.Payload.JobPrefix(), sanitizeName(item.Payload.IssueID()), id)
}

func sanitizeName(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "job"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}

// SpawnJob creates a Kubernetes Job that runs one worker pod against the
// given queue item's envelope.
func (o *Orchestrator) SpawnJob(ctx context.Context, item envelope.Item) (string, error) {
	payload, err := item.Payload.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("orchestrator: marshal payload: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	name := jobName(item)
	backoffLimit := int32(0)
	ttl := o.cfg.TTLSecondsAfterFinished

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: o.cfg.Namespace,
			Labels: map[string]string{
				labelApp:  appValue,
				labelItem: item.ID,
			},
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttl,
			BackoffLimit:            &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{labelApp: appValue},
				},
				Spec: o.podSpec(encoded),
			},
		},
	}

	if _, err := o.client.BatchV1().Jobs(o.cfg.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("orchestrator: create job: %w", err)
	}
	return name, nil
}

func (o *Orchestrator) podSpec(payloadBase64 string) corev1.PodSpec {
	runAs := int64(1000)

	secretEnv := func(envName, key string, optional bool) corev1.EnvVar {
		return corev1.EnvVar{
			Name: envName,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
					Key:                  key,
					Optional:             &optional,
				},
			},
		}
	}

	return corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		SecurityContext: &corev1.PodSecurityContext{
			RunAsUser:  &runAs,
			RunAsGroup: &runAs,
			FSGroup:    &runAs,
		},
		Containers: []corev1.Container{
			{
				Name:  "worker",
				Image: o.cfg.WorkerImage,
				Env: []corev1.EnvVar{
					{Name: "REVIEW_PAYLOAD", Value: payloadBase64},
					secretEnv("ANTHROPIC_API_KEY", "anthropic-api-key", false),
					secretEnv("GITLAB_TOKEN", "gitlab-token", true),
					secretEnv("GITHUB_TOKEN", "github-token", true),
					secretEnv("SENTRY_AUTH_TOKEN", "sentry-auth-token", true),
					secretEnv("JIRA_ACCESS_TOKEN", "jira-access-token", true),
				},
				VolumeMounts: []corev1.VolumeMount{
					{Name: "workdir", MountPath: "/work"},
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("512Mi"),
						corev1.ResourceCPU:    resource.MustParse("500m"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("4Gi"),
						corev1.ResourceCPU:    resource.MustParse("2000m"),
					},
				},
			},
		},
		Volumes: []corev1.Volume{
			{
				Name: "workdir",
				VolumeSource: corev1.VolumeSource{
					EmptyDir: &corev1.EmptyDirVolumeSource{
						SizeLimit: ptrQuantity(resource.MustParse("2Gi")),
					},
				},
			},
		},
	}
}

func ptrQuantity(q resource.Quantity) *resource.Quantity { return &q }

// JobPhase reports the current lifecycle phase of a spawned Job.
func (o *Orchestrator) JobPhase(ctx context.Context, name string) (Phase, error) {
	job, err := o.client.BatchV1().Jobs(o.cfg.Namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return PhaseNotFound, nil
	}
	if err != nil {
		return PhaseRunning, fmt.Errorf("orchestrator: get job %s: %w", name, err)
	}
	if job.Status.Succeeded > 0 {
		return PhaseSucceeded, nil
	}
	if job.Status.Failed > 0 {
		return PhaseFailed, nil
	}
	return PhaseRunning, nil
}

// DeleteJob removes a Job and its pods (foreground propagation), used by
// the scheduler when a job times out.
func (o *Orchestrator) DeleteJob(ctx context.Context, name string) error {
	policy := metav1.DeletePropagationForeground
	err := o.client.BatchV1().Jobs(o.cfg.Namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// ActiveQueueIDs lists the queue-id label of every Job
// currently tracked by Kubernetes (running, or completed but not yet
// garbage collected), used by the orphan reaper to tell a genuinely
// abandoned processing-set entry from one whose Job just hasn't been
// polled to completion yet.
func (o *Orchestrator) ActiveQueueIDs(ctx context.Context) (map[string]bool, error) {
	jobs, err := o.client.BatchV1().Jobs(o.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelApp + "=" + appValue,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list jobs: %w", err)
	}
	ids := make(map[string]bool, len(jobs.Items))
	for _, job := range jobs.Items {
		if id := job.Labels[labelItem]; id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}
