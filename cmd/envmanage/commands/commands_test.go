package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/envmanage/internal/awsenv"
	"github.com/systmms/envmanage/internal/dashboard"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/tests/fakes"
	"github.com/systmms/envmanage/tests/testutil"
)

type harness struct {
	t    *testing.T
	ssm  *fakes.FakeSSMClient
	asg  *fakes.FakeAutoScalingClient
	ec2  *fakes.FakeEC2Client
	exec *testutil.MockCommandExecutor

	mu     sync.Mutex
	opened []string
}

// newHarness builds fake AWS clients and a mock executor for the command
// tree and clears every environment fallback. t.Setenv keeps tests using it
// serial.
func newHarness(t *testing.T) *harness {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	testutil.UnsetTestEnv(t,
		"PRODUCT", "ENV", "AWS_PROFILE", "AWS_REGION", "ENVMANAGE_FORMAT",
		"KUBECONFIG", "ENVMANAGE_ROLE_ARN", "ENVMANAGE_BEST_EFFORT", "ENVMANAGE_CONFIG")

	return &harness{
		t:    t,
		ssm:  fakes.NewFakeSSMClient(),
		asg:  fakes.NewFakeAutoScalingClient(),
		ec2:  fakes.NewFakeEC2Client(),
		exec: testutil.NewMockCommandExecutor(),
	}
}

func (h *harness) options() []Option {
	return []Option{
		WithClientOptions(
			awsenv.WithSSMClient(h.ssm),
			awsenv.WithAutoScalingClient(h.asg),
			awsenv.WithEC2Client(h.ec2),
		),
		WithTunnelOptions(
			dashboard.WithExecutor(h.exec),
			dashboard.WithBrowser(func(url string) error {
				h.mu.Lock()
				defer h.mu.Unlock()
				h.opened = append(h.opened, url)
				return nil
			}),
		),
	}
}

func (h *harness) browserOpened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...)
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()

	root := NewRootCommand("test", h.options()...)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

var scoped = []string{"--no-color", "-p", "shop", "-e", "dev"}

func args(extra ...string) []string {
	return append(append([]string{}, scoped...), extra...)
}

func inScope() map[string]string {
	return map[string]string{"Environment": "dev", "Product": "shop"}
}

func TestListSecrets(t *testing.T) {
	h := newHarness(t)
	h.ssm.AddSecureStringParameter("/shop/dev/db_password", "hunter2")
	h.ssm.AddStringParameter("/shop/dev/log_level", "debug")
	h.ssm.AddStringParameter("/shop/prod/db_password", "other")

	t.Run("text", func(t *testing.T) {
		stdout, _, err := h.run(args("list-secrets")...)
		require.NoError(t, err)

		assert.Equal(t, "PRODUCT : shop\nENVIRONMENT : dev\n\n"+
			"db_password (SecureString)\n"+
			"log_level (String)\n", stdout)
		assert.NotContains(t, stdout, "hunter2")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := h.run(args("list-secrets", "-f", "json")...)
		require.NoError(t, err)

		var got []awsenv.Secret
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "db_password", got[0].Name)
		assert.Equal(t, awsenv.KindEncrypted, got[0].Kind)
		assert.Equal(t, "hunter2", got[0].Value)
		assert.Equal(t, "log_level", got[1].Name)
	})

	t.Run("scope from environment variables", func(t *testing.T) {
		testutil.SetupTestEnv(t, map[string]string{"PRODUCT": "shop", "ENV": "prod"})

		stdout, _, err := h.run("--no-color", "list-secrets")
		require.NoError(t, err)
		assert.Contains(t, stdout, "ENVIRONMENT : prod")
		assert.Contains(t, stdout, "db_password (String)")
	})
}

func TestMissingScope(t *testing.T) {
	h := newHarness(t)

	stdout, _, err := h.run("-e", "dev", "list-secrets")

	var ue dserrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "Product is required")
	assert.Empty(t, stdout)
	assert.Zero(t, h.ssm.GetParametersByPathCalls)
}

func TestInvalidScopeName(t *testing.T) {
	h := newHarness(t)
	h.ssm.AddStringParameter("/shop/dev/secret/key", "x")

	stdout, _, err := h.run("-p", "shop", "-e", "dev/secret", "list-secrets")

	var ue dserrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "is not a valid name")
	assert.Empty(t, stdout)
	assert.Zero(t, h.ssm.GetParametersByPathCalls)
}

func TestRootOptionsAreScopedToOneTree(t *testing.T) {
	first := newHarness(t)
	first.ssm.AddStringParameter("/shop/dev/only_first", "1")
	second := newHarness(t)
	second.ssm.AddStringParameter("/shop/dev/only_second", "2")

	stdout, _, err := first.run(args("list-secrets")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "only_first")
	assert.NotContains(t, stdout, "only_second")

	stdout, _, err = second.run(args("list-secrets")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "only_second")
	assert.NotContains(t, stdout, "only_first")

	assert.Equal(t, 1, first.ssm.GetParametersByPathCalls)
	assert.Equal(t, 1, second.ssm.GetParametersByPathCalls)
}

func TestListSecretsServiceError(t *testing.T) {
	h := newHarness(t)
	h.ssm.AddError("/shop/dev/", errors.New("connection reset"))

	t.Run("fails by default", func(t *testing.T) {
		stdout, _, err := h.run(args("list-secrets")...)
		require.Error(t, err)
		assert.True(t, dserrors.IsServiceError(err))
		assert.Empty(t, stdout)
	})

	t.Run("best effort prints what was gathered", func(t *testing.T) {
		stdout, stderr, err := h.run(args("list-secrets", "--best-effort", "-f", "json")...)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, stdout)
		assert.Contains(t, stderr, "connection reset")
	})
}

func TestShowSecret(t *testing.T) {
	h := newHarness(t)
	h.ssm.AddSecureStringParameter("/shop/dev/db_password", "hunter2")

	t.Run("found", func(t *testing.T) {
		stdout, _, err := h.run(args("show-secret", "-n", "db_password")...)
		require.NoError(t, err)
		assert.Contains(t, stdout, "db_password (SecureString) = hunter2\n")
	})

	t.Run("not found", func(t *testing.T) {
		stdout, _, err := h.run(args("show-secret", "-n", "missing")...)

		var ue dserrors.UserError
		require.ErrorAs(t, err, &ue)
		assert.ErrorIs(t, err, awsenv.ErrSecretNotFound)
		assert.Contains(t, ue.Message, "shop/dev")
		assert.Empty(t, stdout)
	})

	t.Run("name is required", func(t *testing.T) {
		_, _, err := h.run(args("show-secret")...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestSetSecret(t *testing.T) {
	h := newHarness(t)

	t.Run("encrypted by default", func(t *testing.T) {
		_, stderr, err := h.run(args("set-secret", "-n", "api_key", "-v", "s3cr3t-value")...)
		require.NoError(t, err)

		param := h.ssm.Parameters["/shop/dev/api_key"]
		require.NotNil(t, param)
		assert.Equal(t, ssmtypes.ParameterTypeSecureString, param.Type)
		assert.Equal(t, "s3cr3t-value", aws.ToString(param.Value))
		assert.Contains(t, stderr, "Set /shop/dev/api_key (SecureString)")
		assert.NotContains(t, stderr, "s3cr3t-value")
	})

	t.Run("no-encrypt overwrites as plain", func(t *testing.T) {
		_, _, err := h.run(args("set-secret", "-n", "api_key", "-v", "public", "--no-encrypt")...)
		require.NoError(t, err)

		param := h.ssm.Parameters["/shop/dev/api_key"]
		assert.Equal(t, ssmtypes.ParameterTypeString, param.Type)
		assert.Equal(t, "public", aws.ToString(param.Value))
	})

	t.Run("value is redacted from errors", func(t *testing.T) {
		h.ssm.PutParameterFunc = func(ctx context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			return nil, fmt.Errorf("rejected value %s", aws.ToString(params.Value))
		}
		t.Cleanup(func() { h.ssm.PutParameterFunc = nil })

		_, _, err := h.run(args("set-secret", "-n", "api_key", "-v", "topsecret")...)
		require.Error(t, err)
		testutil.AssertSecretRedacted(t, err.Error(), "topsecret")
	})
}

func TestDeleteSecret(t *testing.T) {
	h := newHarness(t)
	h.ssm.AddStringParameter("/shop/dev/old", "x")

	_, stderr, err := h.run(args("delete-secret", "-n", "old")...)
	require.NoError(t, err)
	assert.NotContains(t, h.ssm.Parameters, "/shop/dev/old")
	assert.Contains(t, stderr, "Deleted /shop/dev/old")

	_, _, err = h.run(args("delete-secret", "-n", "old")...)
	assert.NoError(t, err)
}

func TestScaleCommands(t *testing.T) {
	t.Run("scale-up defaults", func(t *testing.T) {
		h := newHarness(t)
		h.asg.AddGroup("shop-dev-web", 0, 0, 0, inScope())

		_, _, err := h.run(args("scale-up", "-a", "shop-dev-web")...)
		require.NoError(t, err)

		require.Len(t, h.asg.UpdateCalls, 1)
		update := h.asg.UpdateCalls[0]
		assert.Equal(t, "shop-dev-web", aws.ToString(update.AutoScalingGroupName))
		assert.Equal(t, int32(1), aws.ToInt32(update.MinSize))
		assert.Equal(t, int32(1), aws.ToInt32(update.MaxSize))
		assert.Equal(t, int32(1), aws.ToInt32(update.DesiredCapacity))
	})

	t.Run("scale-down defaults", func(t *testing.T) {
		h := newHarness(t)
		h.asg.AddGroup("shop-dev-web", 1, 3, 2, inScope())

		_, _, err := h.run(args("scale-down", "-a", "shop-dev-web")...)
		require.NoError(t, err)

		require.Len(t, h.asg.UpdateCalls, 1)
		assert.Equal(t, int32(0), aws.ToInt32(h.asg.UpdateCalls[0].MaxSize))
	})

	t.Run("explicit sizes", func(t *testing.T) {
		h := newHarness(t)
		h.asg.AddGroup("shop-dev-web", 0, 0, 0, inScope())

		_, _, err := h.run(args("scale-up", "-a", "shop-dev-web", "--min", "2", "--max", "6", "-d", "4")...)
		require.NoError(t, err)

		require.Len(t, h.asg.UpdateCalls, 1)
		assert.Equal(t, int32(2), aws.ToInt32(h.asg.UpdateCalls[0].MinSize))
		assert.Equal(t, int32(6), aws.ToInt32(h.asg.UpdateCalls[0].MaxSize))
		assert.Equal(t, int32(4), aws.ToInt32(h.asg.UpdateCalls[0].DesiredCapacity))
	})

	t.Run("out of scope group is refused", func(t *testing.T) {
		h := newHarness(t)
		h.asg.AddGroup("blog-prod-web", 1, 1, 1, map[string]string{"Environment": "prod", "Product": "blog"})

		_, _, err := h.run(args("scale-down", "-a", "blog-prod-web")...)

		var ue dserrors.UserError
		require.ErrorAs(t, err, &ue)
		assert.Empty(t, h.asg.UpdateCalls)

		_, _, err = h.run(args("scale-down", "-a", "blog-prod-web", "--force")...)
		require.NoError(t, err)
		assert.Len(t, h.asg.UpdateCalls, 1)
	})

	t.Run("invalid capacity", func(t *testing.T) {
		h := newHarness(t)
		h.asg.AddGroup("shop-dev-web", 0, 0, 0, inScope())

		_, _, err := h.run(args("scale-up", "-a", "shop-dev-web", "--min", "3", "--max", "1")...)
		require.Error(t, err)
		assert.Empty(t, h.asg.UpdateCalls)
	})
}

func TestShowEnv(t *testing.T) {
	h := newHarness(t)
	launch := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.ec2.AddInstance("i-0abc", "10.0.1.5", launch, map[string]string{"Environment": "dev", "Product": "shop", "Name": "shop-dev-web"})
	h.ec2.AddInstance("i-0def", "10.0.9.9", launch, map[string]string{"Environment": "prod", "Product": "shop"})
	h.asg.AddGroup("shop-dev-web", 1, 3, 2, inScope())
	h.asg.AddGroup("shop-prod-web", 1, 3, 2, map[string]string{"Environment": "prod", "Product": "shop"})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := h.run(args("show-env", "--format", "json")...)
		require.NoError(t, err)

		var got map[string][]map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Len(t, got, 2)
		require.Len(t, got["instances"], 1)
		require.Len(t, got["asgs"], 1)
		assert.Equal(t, "i-0abc", got["instances"][0]["id"])
		assert.Equal(t, "shop-dev-web", got["asgs"][0]["name"])
	})

	t.Run("text", func(t *testing.T) {
		stdout, _, err := h.run(args("show-env")...)
		require.NoError(t, err)

		assert.Contains(t, stdout, "PRODUCT : shop")
		assert.Contains(t, stdout, "i-0abc")
		assert.Contains(t, stdout, "shop-dev-web")
		assert.NotContains(t, stdout, "i-0def")
		assert.NotContains(t, stdout, "shop-prod-web")
	})
}

func TestShowEnvServiceError(t *testing.T) {
	h := newHarness(t)
	h.asg.AddGroup("shop-dev-web", 1, 3, 2, inScope())
	h.ec2.DescribeInstancesFunc = func(ctx context.Context, params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return nil, errors.New("request timeout")
	}

	t.Run("fails by default", func(t *testing.T) {
		stdout, _, err := h.run(args("show-env")...)
		require.Error(t, err)
		assert.True(t, dserrors.IsServiceError(err))
		assert.Empty(t, stdout)
	})

	t.Run("best effort", func(t *testing.T) {
		t.Setenv("ENVMANAGE_BEST_EFFORT", "true")

		stdout, stderr, err := h.run(args("show-env", "-f", "json")...)
		require.NoError(t, err)
		assert.JSONEq(t, `{"instances": [], "asgs": [{
			"name": "shop-dev-web", "min": 1, "max": 3, "desired": 2,
			"azs": ["us-east-1a", "us-east-1b"], "instances": 0
		}]}`, stdout)
		assert.Contains(t, stderr, "request timeout")
	})
}

func TestShowDashboard(t *testing.T) {
	t.Run("without kubeconfig nothing runs", func(t *testing.T) {
		h := newHarness(t)

		_, _, err := h.run("show-dashboard")

		var ue dserrors.UserError
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Suggestion, "KUBECONFIG")
		assert.Equal(t, 0, h.exec.CallCount())
		assert.Empty(t, h.browserOpened())
	})

	t.Run("invalid token source", func(t *testing.T) {
		h := newHarness(t)

		_, _, err := h.run("--kubeconfig", "/tmp/kc", "show-dashboard", "--token-source", "vault")

		var ce dserrors.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 0, h.exec.CallCount())
	})

	t.Run("token then proxy", func(t *testing.T) {
		h := newHarness(t)
		t.Setenv("KUBECONFIG", "/tmp/kc")
		kubectl := testutil.KubectlMockResponses{}
		h.exec.AddResponse("kubectl --kubeconfig /tmp/kc -n kube-system get secret",
			kubectl.GetSecrets("default-token-x1", "eks-admin-token-abcde"))
		h.exec.AddResponse("kubectl --kubeconfig /tmp/kc -n kube-system describe secret eks-admin-token-abcde",
			kubectl.DescribeSecret("eks-admin-token-abcde", "eyJhbGciOi.payload.sig"))

		stdout, _, err := h.run("show-dashboard", "--port", "8002")
		require.NoError(t, err)

		assert.Contains(t, stdout, "HERE IS YOUR KUBERNETES DASHBOARD TOKEN: eyJhbGciOi.payload.sig")
		want := []string{"http://localhost:8002/api/v1/namespaces/kube-system/services/https:kubernetes-dashboard:/proxy/"}
		assert.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(want, h.browserOpened())
		}, 2*time.Second, 10*time.Millisecond)

		calls := h.exec.GetCalls("kubectl")
		require.Len(t, calls, 3)
		assert.True(t, calls[2].Streamed)
		assert.Equal(t, []string{"--kubeconfig", "/tmp/kc", "proxy", "-p", "8002"}, calls[2].Args)
	})
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(args("list-secrets", "-f", "xml")...)

	var ce dserrors.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, h.ssm.GetParametersByPathCalls)
}

func TestCompletion(t *testing.T) {
	h := newHarness(t)

	t.Run("scripts name envmanage", func(t *testing.T) {
		for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
			stdout, _, err := h.run("completion", shell)
			require.NoError(t, err, shell)
			assert.Contains(t, stdout, "envmanage", shell)
		}
	})

	t.Run("help names install paths", func(t *testing.T) {
		stdout, _, err := h.run("completion", "--help")
		require.NoError(t, err)

		for _, path := range []string{
			"~/.local/share/bash-completion/completions/envmanage",
			"/etc/bash_completion.d/envmanage",
			"~/.zsh/completions/_envmanage",
			"~/.config/fish/completions/envmanage.fish",
			"$PROFILE",
		} {
			assert.Contains(t, stdout, path)
		}
		assert.NotContains(t, stdout, "dsops")
	})

	t.Run("unknown shell", func(t *testing.T) {
		_, _, err := h.run("completion", "tcsh")
		assert.Error(t, err)
	})
}
