// Package testutil provides testing utilities for envmanage.
package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MockCommandExecutor provides a configurable mock for code that shells out
// to CLI tools. It satisfies pkg/exec.CommandExecutor.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string]MockResponse

	// RecordedCalls stores all calls made to Execute and Stream for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	Err      error
	ExitCode int // Used to simulate exit codes when Err is nil
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command  string
	Args     []string
	Streamed bool
	Context  context.Context
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    args,
		Context: ctx,
	})

	resp, err := m.lookup(name, args)
	if err != nil {
		return nil, nil, err
	}
	return resp.Stdout, resp.Stderr, resp.Err
}

// Stream writes the mocked response to the given writers and returns its error.
func (m *MockCommandExecutor) Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command:  name,
		Args:     args,
		Streamed: true,
		Context:  ctx,
	})

	resp, err := m.lookup(name, args)
	if err != nil {
		return err
	}
	if len(resp.Stdout) > 0 {
		_, _ = stdout.Write(resp.Stdout)
	}
	if len(resp.Stderr) > 0 {
		_, _ = stderr.Write(resp.Stderr)
	}
	return resp.Err
}

func (m *MockCommandExecutor) lookup(name string, args []string) (MockResponse, error) {
	key := m.buildKey(name, args)

	// Try exact match first
	if resp, ok := m.Responses[key]; ok {
		return resp, nil
	}

	// Longest matching pattern wins so that overlapping prefixes are deterministic
	best := ""
	for pattern := range m.Responses {
		if m.matchesPattern(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return m.Responses[best], nil
	}

	if m.StrictMode {
		return MockResponse{}, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	// Non-strict mode returns empty success
	return MockResponse{Stdout: []byte{}, Stderr: []byte{}}, nil
}

// buildKey creates a lookup key from command and arguments.
func (m *MockCommandExecutor) buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// matchesPattern checks if the command key matches a pattern.
// Supports simple prefix matching for flexible response configuration.
func (m *MockCommandExecutor) matchesPattern(key, pattern string) bool {
	if strings.Contains(pattern, "*") {
		return strings.HasPrefix(key, strings.Split(pattern, "*")[0])
	}
	return strings.HasPrefix(key, pattern)
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddErrorResponse adds an error response for a command pattern.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout:   []byte{},
		Stderr:   []byte(errMsg),
		Err:      fmt.Errorf("exit status %d: %s", exitCode, errMsg),
		ExitCode: exitCode,
	})
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Execute or Stream was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// KubectlMockResponses provides pre-configured responses for kubectl.
type KubectlMockResponses struct{}

// GetSecrets returns a mock 'kubectl -n kube-system get secret' listing.
func (KubectlMockResponses) GetSecrets(names ...string) MockResponse {
	var b strings.Builder
	b.WriteString("NAME                                  TYPE                                  DATA   AGE\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%-37s kubernetes.io/service-account-token   3      42d\n", name)
	}
	return MockResponse{Stdout: []byte(b.String())}
}

// DescribeSecret returns a mock 'kubectl describe secret' output carrying token.
func (KubectlMockResponses) DescribeSecret(name, token string) MockResponse {
	return MockResponse{
		Stdout: []byte(fmt.Sprintf(`Name:         %s
Namespace:    kube-system
Labels:       <none>
Annotations:  kubernetes.io/service-account.name: eks-admin

Type:  kubernetes.io/service-account-token

Data
====
ca.crt:     1025 bytes
namespace:  11 bytes
token:      %s
`, name, token)),
	}
}
