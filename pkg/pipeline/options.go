// Package pipeline runs the pre-commit checks for one commit end to end:
// update check, changeset resolution, plugin runs, collation, rendering and
// the commit decision.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/jig/pkg/render"
	"github.com/Sumatoshi-tech/jig/pkg/terminal"
	"github.com/Sumatoshi-tech/jig/pkg/updategate"
	"github.com/Sumatoshi-tech/jig/pkg/updater"
)

// Options selects what a single run checks.
type Options struct {
	// RepoPath is any path inside the repository.
	RepoPath string
	// Plugin limits the run to the plugin with this name.
	Plugin string
	// RevRange is an "A..B" expression; empty means staged changes.
	RevRange string
	// Interactive enables the update and commit prompts.
	Interactive bool
	// IndexFile replaces the repository's index when checking staged
	// changes. Git sets it for hooks run by "commit -a" and "commit PATHS".
	IndexFile string
}

// PromptSession is an open terminal the run can ask questions on.
type PromptSession interface {
	Prompt(ctx context.Context, question string) (string, error)
	Close() error
}

// Recorder receives the run's metrics.
type Recorder interface {
	RecordPluginRun(ctx context.Context, plugin, status string, duration time.Duration)
	RecordFindings(ctx context.Context, severity string, count int)
	RecordDecision(ctx context.Context, decision string)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTracer sets the tracer for the run span.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithRecorder attaches metrics.
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) { o.recorder = rec }
}

// WithRenderer replaces the report renderer.
func WithRenderer(r render.Renderer) Option {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithTerminal replaces how the interactive session is opened.
func WithTerminal(open func() (PromptSession, error)) Option {
	return func(o *Orchestrator) { o.openTerminal = open }
}

// WithUpdater replaces the plugin updater built from the checked
// repository's root and the plugin directories.
func WithUpdater(build func(root string, dirs []string) updategate.Updater) Option {
	return func(o *Orchestrator) { o.newUpdater = build }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func openTTY() (PromptSession, error) {
	return terminal.OpenTTY()
}

func (o *Orchestrator) gitUpdater(root string, dirs []string) updategate.Updater {
	return updater.New(dirs, o.logger).Excluding(root)
}
