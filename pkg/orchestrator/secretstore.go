package orchestrator

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/globalcomix/claude-agent/pkg/jiratoken"
)

const (
	jiraTokensSecretName = "claude-agent-jira-tokens"

	keyAccessToken  = "access-token"
	keyRefreshToken = "refresh-token"
)

// JiraSecretStore implements pkg/jiratoken.SecretStore backed by a
// Kubernetes Secret named claude-agent-jira-tokens. A dynamic secret
// holds whatever refresh token the last exchange rotated in; when it
// doesn't exist yet, bootstrapRefreshToken (from a sealed secret set up
// at install time) seeds the very first exchange.
type JiraSecretStore struct {
	client                kubernetes.Interface
	namespace             string
	bootstrapRefreshToken string
}

var _ jiratoken.SecretStore = (*JiraSecretStore)(nil)

// NewJiraSecretStore builds a JiraSecretStore scoped to namespace.
func NewJiraSecretStore(client kubernetes.Interface, namespace, bootstrapRefreshToken string) *JiraSecretStore {
	return &JiraSecretStore{client: client, namespace: namespace, bootstrapRefreshToken: bootstrapRefreshToken}
}

// ReadRefreshToken reads the dynamic secret first, falling back to the
// bootstrap token on its first-ever run (before any exchange has
// happened, the dynamic secret doesn't exist yet).
func (s *JiraSecretStore) ReadRefreshToken(ctx context.Context) (string, error) {
	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, jiraTokensSecretName, metav1.GetOptions{})
	if err == nil {
		if token := secret.Data[keyRefreshToken]; len(token) > 0 {
			return string(token), nil
		}
	} else if !apierrors.IsNotFound(err) {
		return "", fmt.Errorf("orchestrator: read jira secret: %w", err)
	}

	if s.bootstrapRefreshToken != "" {
		return s.bootstrapRefreshToken, nil
	}
	return "", jiratoken.ErrNoRefreshToken
}

// PersistTokens applies (create-or-update) the dynamic secret with the
// latest access/refresh token pair.
func (s *JiraSecretStore) PersistTokens(ctx context.Context, accessToken, refreshToken string) error {
	secrets := s.client.CoreV1().Secrets(s.namespace)

	existing, err := secrets.Get(ctx, jiraTokensSecretName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		secret := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      jiraTokensSecretName,
				Namespace: s.namespace,
			},
			Type: corev1.SecretTypeOpaque,
			Data: map[string][]byte{
				keyAccessToken:  []byte(accessToken),
				keyRefreshToken: []byte(refreshToken),
			},
		}
		_, err := secrets.Create(ctx, secret, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("orchestrator: create jira secret: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("orchestrator: read jira secret before update: %w", err)
	}

	if existing.Data == nil {
		existing.Data = map[string][]byte{}
	}
	existing.Data[keyAccessToken] = []byte(accessToken)
	existing.Data[keyRefreshToken] = []byte(refreshToken)

	if _, err := secrets.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("orchestrator: update jira secret: %w", err)
	}
	return nil
}
