// Package exec runs external programs behind an interface so that stores
// built on command-line tools (pass) can be tested without the tools.
package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor runs a program and returns what it wrote.
type CommandExecutor interface {
	// Execute runs name with args and waits for it to exit. Cancelling ctx
	// kills the process.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// LookPath reports where name is found on PATH.
	LookPath(name string) (string, error)
}

// RealCommandExecutor runs programs with os/exec.
type RealCommandExecutor struct {
	// Env, when set, replaces the child's environment.
	Env []string
}

// Execute implements CommandExecutor.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// LookPath implements CommandExecutor.
func (r *RealCommandExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// DefaultExecutor returns an executor that inherits the process environment.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
