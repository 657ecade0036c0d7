package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long a killed plugin may keep its output pipes open.
const waitDelay = 2 * time.Second

// ExecPlugin runs an external executable. The encoded changeset is written
// to its standard input and its working directory is the plugin directory.
type ExecPlugin struct {
	id      ID
	name    string
	bundle  string
	dir     string
	command []string
	env     []string
	timeout time.Duration
}

// NewExecPlugin creates a plugin that runs command inside dir.
func NewExecPlugin(id ID, bundle, name, dir string, command []string) *ExecPlugin {
	return &ExecPlugin{
		id:      id,
		name:    name,
		bundle:  bundle,
		dir:     dir,
		command: command,
	}
}

// WithEnv returns a copy that adds KEY=VALUE pairs to the process environment.
func (p *ExecPlugin) WithEnv(env ...string) *ExecPlugin {
	clone := *p
	clone.env = append(append([]string(nil), p.env...), env...)

	return &clone
}

// WithTimeout returns a copy limited to d instead of the invoker default.
func (p *ExecPlugin) WithTimeout(d time.Duration) *ExecPlugin {
	clone := *p
	clone.timeout = d

	return &clone
}

// Timeout implements TimeoutProvider.
func (p *ExecPlugin) Timeout() time.Duration { return p.timeout }

// ID implements Plugin.
func (p *ExecPlugin) ID() ID { return p.id }

// Name implements Plugin.
func (p *ExecPlugin) Name() string { return p.name }

// Bundle implements Plugin.
func (p *ExecPlugin) Bundle() string { return p.bundle }

// Dir returns the plugin directory.
func (p *ExecPlugin) Dir() string { return p.dir }

// PreCommit implements Plugin. Exit statuses are returned in the Outcome;
// only a failure to start or wait for the process is an error.
func (p *ExecPlugin) PreCommit(ctx context.Context, input []byte) (Outcome, error) {
	if len(p.command) == 0 {
		return Outcome{}, fmt.Errorf("%w: %s has no command", ErrInvocation, p.name)
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...) //nolint:gosec // plugins are user-installed executables.
	cmd.Dir = p.dir
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), p.env...)

	err := cmd.Run()

	outcome := Outcome{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()

		return outcome, nil
	}

	if err != nil {
		return outcome, fmt.Errorf("%w: %w", ErrInvocation, err)
	}

	return outcome, nil
}
