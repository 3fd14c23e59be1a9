package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	pkgexec "github.com/systmms/acctexport/pkg/exec"
)

// MockCommandExecutor is a scripted pkg/exec.CommandExecutor.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps a command line ("pass show acme") to its result. A
	// response also matches any longer command line it prefixes.
	Responses map[string]MockResponse

	// Paths lists the programs LookPath finds.
	Paths map[string]string

	// Calls records every executed command line.
	Calls []string
}

// MockResponse is the scripted result of one command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

var _ pkgexec.CommandExecutor = (*MockCommandExecutor)(nil)

// NewMockCommandExecutor returns an executor that knows no commands.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// Execute returns the response registered for the longest matching
// command line. Unknown commands fail.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := strings.Join(append([]string{name}, args...), " ")
	m.Calls = append(m.Calls, line)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	patterns := make([]string, 0, len(m.Responses))
	for p := range m.Responses {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool { return len(patterns[i]) > len(patterns[j]) })
	for _, p := range patterns {
		if line == p || strings.HasPrefix(line, p+" ") {
			resp := m.Responses[p]
			return resp.Stdout, resp.Stderr, resp.Err
		}
	}
	return nil, nil, fmt.Errorf("mock: no response configured for %q", line)
}

// LookPath reports programs registered with AddPath.
func (m *MockCommandExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

// AddPath makes LookPath find name.
func (m *MockCommandExecutor) AddPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paths[name] = path
}

// AddOutput registers a successful command.
func (m *MockCommandExecutor) AddOutput(commandLine, stdout string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandLine] = MockResponse{Stdout: []byte(stdout)}
}

// AddFailure registers a command that exits with code and writes stderr.
func (m *MockCommandExecutor) AddFailure(commandLine, stderr string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandLine] = MockResponse{
		Stderr: []byte(stderr),
		Err:    fmt.Errorf("exit status %d", code),
	}
}

// CallCount returns the number of executed commands.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
