package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/browser"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
	"github.com/systmms/envmanage/pkg/exec"
)

// DefaultPort is the local port kubectl proxy listens on
const DefaultPort = 8001

// State is the lifecycle stage of a tunnel
type State int

const (
	Idle State = iota
	TokenFetched
	ProxyRunning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TokenFetched:
		return "token-fetched"
	case ProxyRunning:
		return "proxy-running"
	default:
		return "unknown"
	}
}

// Tunnel is one dashboard session: a token for the login page and a local
// proxy to the cluster API.
type Tunnel struct {
	Kubeconfig string
	Port       int
	Token      string

	state       State
	fetcher     TokenFetcher
	executor    exec.CommandExecutor
	openBrowser func(url string) error
	printToken  func(token string)
	stdout      io.Writer
	stderr      io.Writer
	logger      *logging.Logger
}

// Option is a functional option for configuring a tunnel
type Option func(*Tunnel)

// WithTokenFetcher sets how the dashboard token is obtained
func WithTokenFetcher(fetcher TokenFetcher) Option {
	return func(t *Tunnel) {
		t.fetcher = fetcher
	}
}

// WithExecutor sets the executor used to run kubectl proxy
func WithExecutor(executor exec.CommandExecutor) Option {
	return func(t *Tunnel) {
		t.executor = executor
	}
}

// WithPort overrides DefaultPort
func WithPort(port int) Option {
	return func(t *Tunnel) {
		t.Port = port
	}
}

// WithBrowser sets the function used to open the dashboard URL. It is
// called on its own goroutine.
func WithBrowser(open func(url string) error) Option {
	return func(t *Tunnel) {
		t.openBrowser = open
	}
}

// WithTokenPrinter sets how the token is shown to the operator
func WithTokenPrinter(print func(token string)) Option {
	return func(t *Tunnel) {
		t.printToken = print
	}
}

// WithOutput sets where proxy output goes
func WithOutput(stdout, stderr io.Writer) Option {
	return func(t *Tunnel) {
		t.stdout = stdout
		t.stderr = stderr
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tunnel) {
		t.logger = logger
	}
}

// New creates a tunnel for the cluster described by kubeconfig. An empty
// kubeconfig is a user error and nothing is started.
func New(kubeconfig string, opts ...Option) (*Tunnel, error) {
	if kubeconfig == "" {
		return nil, dserrors.UserError{
			Message:    "No kubeconfig configured for the dashboard",
			Suggestion: "Use --kubeconfig <path> or set $KUBECONFIG to your environment's kubeconfig file",
		}
	}

	t := &Tunnel{
		Kubeconfig: kubeconfig,
		Port:       DefaultPort,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.openBrowser == nil {
		// The opener's own chatter would interleave with the proxy output.
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
		t.openBrowser = browser.OpenURL
	}

	if t.executor == nil {
		t.executor = exec.DefaultExecutor()
	}
	if t.fetcher == nil {
		t.fetcher = NewKubectlTokenFetcher(t.executor)
	}
	if t.logger == nil {
		t.logger = logging.New(false, false)
	}
	if t.printToken == nil {
		t.printToken = func(token string) {
			fmt.Fprintf(t.stdout, "HERE IS YOUR KUBERNETES DASHBOARD TOKEN: %s\n", token)
		}
	}

	return t, nil
}

// State returns the current lifecycle stage
func (t *Tunnel) State() State {
	return t.state
}

// DashboardURL is the dashboard address served through the local proxy
func (t *Tunnel) DashboardURL() string {
	return fmt.Sprintf("http://localhost:%d/api/v1/namespaces/%s/services/https:kubernetes-dashboard:/proxy/",
		t.Port, Namespace)
}

// Open fetches and prints the token, starts opening the dashboard in the
// browser and runs kubectl proxy in the foreground until it exits or ctx is
// cancelled. The proxy does not wait for the browser. Cancellation ends the
// session normally.
func (t *Tunnel) Open(ctx context.Context) error {
	token, err := t.fetcher.FetchToken(ctx, t.Kubeconfig)
	if err != nil {
		return err
	}
	t.Token = token
	t.state = TokenFetched
	t.printToken(token)

	go t.launchBrowser(t.DashboardURL())

	t.state = ProxyRunning
	t.logger.Debug("Starting kubectl proxy on port %d", t.Port)

	err = t.executor.Stream(ctx, t.stdout, t.stderr,
		"kubectl", "--kubeconfig", t.Kubeconfig, "proxy", "-p", strconv.Itoa(t.Port))
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return dserrors.WrapCommandNotFound("kubectl", err)
	}
	if err != nil {
		return dserrors.ServiceError{
			Service:    "kubernetes",
			Operation:  "proxy",
			Suggestion: fmt.Sprintf("Check that port %d is free, or pick another with --port", t.Port),
			Err:        err,
		}
	}
	return nil
}

// launchBrowser opens url, logging any error at debug level
func (t *Tunnel) launchBrowser(url string) {
	if err := t.openBrowser(url); err != nil {
		t.logger.Debug("Could not open browser for %s: %v", url, err)
	}
}
