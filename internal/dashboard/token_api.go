package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	dserrors "github.com/systmms/envmanage/internal/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientFactory builds a Kubernetes client from a kubeconfig path
type ClientFactory func(kubeconfig string) (kubernetes.Interface, error)

// APITokenFetcher reads the admin token through the Kubernetes API instead
// of scraping kubectl output. It applies the same name filter as
// KubectlTokenFetcher.
type APITokenFetcher struct {
	newClient ClientFactory
}

// NewAPITokenFetcher creates a fetcher. A nil factory builds clients from the
// kubeconfig file.
func NewAPITokenFetcher(factory ClientFactory) *APITokenFetcher {
	if factory == nil {
		factory = clientFromKubeconfig
	}
	return &APITokenFetcher{newClient: factory}
}

// FetchToken implements TokenFetcher
func (f *APITokenFetcher) FetchToken(ctx context.Context, kubeconfig string) (string, error) {
	client, err := f.newClient(kubeconfig)
	if err != nil {
		return "", dserrors.UserError{
			Message:    "Failed to load kubeconfig",
			Details:    err.Error(),
			Suggestion: "Check that --kubeconfig/$KUBECONFIG points at a valid kubeconfig file",
			Err:        err,
		}
	}

	secrets, err := client.CoreV1().Secrets(Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", dserrors.ServiceError{
			Service:    "kubernetes",
			Operation:  "list secrets",
			Suggestion: "Check that your cluster credentials are valid and allow listing secrets in " + Namespace,
			Err:        err,
		}
	}

	items := secrets.Items
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	for _, secret := range items {
		if !strings.Contains(secret.Name, AdminSecretMarker) {
			continue
		}
		token := strings.TrimSpace(string(secret.Data["token"]))
		if token == "" {
			return "", dserrors.UserError{
				Message:    fmt.Sprintf("Secret '%s' has no token", secret.Name),
				Suggestion: fmt.Sprintf("Inspect it with 'kubectl -n %s describe secret %s'", Namespace, secret.Name),
			}
		}
		return token, nil
	}

	return "", noAdminSecretError(kubeconfig)
}

func clientFromKubeconfig(kubeconfig string) (kubernetes.Interface, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(config)
}
