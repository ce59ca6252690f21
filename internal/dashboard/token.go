// Package dashboard opens the Kubernetes dashboard of an environment's
// cluster: it fetches the admin service account token, prints it for the
// operator to paste into the login page, and runs a local kubectl proxy.
package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/pkg/exec"
)

const (
	// Namespace holds the dashboard service and the admin service account.
	Namespace = "kube-system"
	// AdminSecretMarker identifies the admin service account token secret.
	AdminSecretMarker = "eks-admin"
)

// TokenFetcher retrieves the bearer token used to log into the dashboard.
type TokenFetcher interface {
	FetchToken(ctx context.Context, kubeconfig string) (string, error)
}

// KubectlTokenFetcher scrapes the token out of kubectl output
type KubectlTokenFetcher struct {
	executor exec.CommandExecutor
	binary   string
}

// NewKubectlTokenFetcher creates a fetcher that runs kubectl through executor
func NewKubectlTokenFetcher(executor exec.CommandExecutor) *KubectlTokenFetcher {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	return &KubectlTokenFetcher{
		executor: executor,
		binary:   "kubectl",
	}
}

// FetchToken lists the kube-system secrets, picks the one whose name contains
// AdminSecretMarker and extracts the token field from its description.
func (f *KubectlTokenFetcher) FetchToken(ctx context.Context, kubeconfig string) (string, error) {
	listing, err := f.run(ctx, "get secret", "--kubeconfig", kubeconfig, "-n", Namespace, "get", "secret")
	if err != nil {
		return "", err
	}

	secretName, ok := ParseAdminSecretName(listing, AdminSecretMarker)
	if !ok {
		return "", noAdminSecretError(kubeconfig)
	}

	description, err := f.run(ctx, "describe secret", "--kubeconfig", kubeconfig, "-n", Namespace, "describe", "secret", secretName)
	if err != nil {
		return "", err
	}

	token, ok := ParseToken(description)
	if !ok {
		return "", dserrors.UserError{
			Message:    fmt.Sprintf("Secret '%s' has no token", secretName),
			Suggestion: fmt.Sprintf("Inspect it with 'kubectl -n %s describe secret %s'", Namespace, secretName),
		}
	}
	return token, nil
}

func (f *KubectlTokenFetcher) run(ctx context.Context, operation string, args ...string) (string, error) {
	stdout, stderr, err := f.executor.Execute(ctx, f.binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", dserrors.WrapCommandNotFound(f.binary, err)
		}
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", dserrors.ServiceError{
			Service:    "kubernetes",
			Operation:  operation,
			Suggestion: "Check that --kubeconfig/$KUBECONFIG points at this environment's cluster and your credentials are valid",
			Err:        err,
		}
	}
	return string(stdout), nil
}

// ParseAdminSecretName returns the first column of the first line of a
// 'kubectl get secret' listing that contains marker.
func ParseAdminSecretName(listing, marker string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, marker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		return fields[0], true
	}
	return "", false
}

// ParseToken extracts the value of the line starting with "token" from a
// 'kubectl describe secret' output. The text after the first colon is taken
// and every space removed.
func ParseToken(description string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(description))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "token") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}
		token := strings.TrimSpace(strings.ReplaceAll(parts[1], " ", ""))
		if token == "" {
			continue
		}
		return token, true
	}
	return "", false
}

func noAdminSecretError(kubeconfig string) error {
	return dserrors.UserError{
		Message: fmt.Sprintf("No secret containing '%s' found in namespace %s", AdminSecretMarker, Namespace),
		Details: "kubeconfig: " + kubeconfig,
		Suggestion: fmt.Sprintf("Check that the kubeconfig points at this environment's cluster and that the %s service account exists",
			AdminSecretMarker),
	}
}
