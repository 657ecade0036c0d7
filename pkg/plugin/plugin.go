// Package plugin defines the plugin execution contract and runs plugins
// against a changeset.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvocation marks a plugin whose execution contract could not be honored
// (missing command, timeout). Such failures are folded into a Result.
var ErrInvocation = errors.New("plugin invocation failed")

// ExitInvocationFailed is the exit code recorded when a plugin never
// produced an exit status of its own.
const ExitInvocationFailed = -1

// ID is the opaque handle the registry assigns each installed plugin.
// Results are keyed on it, never on the plugin name.
type ID int

// String renders the handle for logs.
func (id ID) String() string {
	return fmt.Sprintf("#%d", int(id))
}

// Outcome is what a plugin returns: its exit status and captured streams.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Plugin is an installed check bound to the execution contract.
type Plugin interface {
	ID() ID
	Name() string
	Bundle() string
	// PreCommit runs the check with the encoded changeset as input.
	// A non-zero exit code is a normal outcome, not an error.
	PreCommit(ctx context.Context, input []byte) (Outcome, error)
}

// Result is the recorded outcome of one plugin for one run.
type Result struct {
	ID       ID
	Name     string
	Bundle   string
	ExitCode int
	Output   ParsedOutput
	Stderr   string
	Duration time.Duration
	// Err is set when the invocation itself failed; it wraps ErrInvocation.
	Err error
}

// Failed reports whether the plugin could not be invoked.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Passed reports whether the plugin ran and exited zero.
func (r Result) Passed() bool {
	return r.Err == nil && r.ExitCode == 0
}
