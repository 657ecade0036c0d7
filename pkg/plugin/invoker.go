package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/jig/pkg/changeset"
)

const tracerName = "jig.plugin"

// Run statuses reported to a Recorder.
const (
	StatusPass     = "pass"
	StatusFindings = "findings"
	StatusError    = "error"
)

// Recorder receives one observation per plugin invocation.
type Recorder interface {
	RecordPluginRun(ctx context.Context, plugin, status string, duration time.Duration)
}

// TimeoutProvider is implemented by plugins that carry their own time limit.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// Invoker runs plugins against a changeset.
type Invoker struct {
	// Timeout bounds each invocation; zero means no limit.
	Timeout time.Duration
	// Workers is the number of plugins run at once; values below 1 mean 1.
	Workers int

	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	now      func() time.Time
}

// NewInvoker creates an Invoker that runs plugins sequentially.
func NewInvoker(timeout time.Duration, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Invoker{
		Timeout: timeout,
		Workers: 1,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// SetRecorder attaches a metrics recorder.
func (inv *Invoker) SetRecorder(rec Recorder) {
	inv.recorder = rec
}

// Invoke runs one plugin against cs. The returned Result always describes
// the plugin: invocation failures are encoded in it rather than returned.
func (inv *Invoker) Invoke(ctx context.Context, p Plugin, cs changeset.ChangeSet) Result {
	input, err := changeset.Encode(cs)
	if err != nil {
		return failedResult(p, fmt.Errorf("%w: %w", ErrInvocation, err), 0)
	}

	return inv.invoke(ctx, p, input)
}

// RunAll invokes every plugin and returns their results in the order the
// plugins were given, however many run concurrently. It fails only when ctx
// is cancelled, in which case no results are returned.
func (inv *Invoker) RunAll(ctx context.Context, plugins []Plugin, cs changeset.ChangeSet) ([]Result, error) {
	input, err := changeset.Encode(cs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(plugins))

	var group errgroup.Group

	group.SetLimit(max(1, inv.Workers))

	for i, p := range plugins {
		group.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			results[i] = inv.invoke(ctx, p, input)

			return nil
		})
	}

	waitErr := group.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("plugin run aborted: %w", ctx.Err())
	}

	if waitErr != nil {
		return nil, waitErr
	}

	return results, nil
}

func (inv *Invoker) invoke(ctx context.Context, p Plugin, input []byte) Result {
	ctx, span := inv.tracer.Start(ctx, "jig.plugin.invoke", trace.WithAttributes(
		attribute.String("plugin.name", p.Name()),
		attribute.String("plugin.bundle", p.Bundle()),
	))
	defer span.End()

	runCtx := ctx
	timeout := inv.timeoutFor(p)

	if timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := inv.now()
	outcome, err := p.PreCommit(runCtx, input)
	elapsed := inv.now().Sub(start)

	var result Result

	switch {
	case err == nil:
		result = Result{
			ID:       p.ID(),
			Name:     p.Name(),
			Bundle:   p.Bundle(),
			ExitCode: outcome.ExitCode,
			Output:   ParseOutput(outcome.Stdout),
			Stderr:   outcome.Stderr,
			Duration: elapsed,
		}
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		result = failedResult(p, fmt.Errorf("%w: timed out after %s", ErrInvocation, timeout), elapsed)
	case errors.Is(err, ErrInvocation):
		result = failedResult(p, err, elapsed)
	default:
		result = failedResult(p, fmt.Errorf("%w: %w", ErrInvocation, err), elapsed)
	}

	status := statusOf(result)
	span.SetAttributes(attribute.Int("plugin.exit_code", result.ExitCode), attribute.String("plugin.status", status))

	if result.Failed() {
		span.SetStatus(codes.Error, result.Err.Error())
		inv.logger.WarnContext(ctx, "plugin invocation failed",
			"plugin", p.Name(), "bundle", p.Bundle(), "error", result.Err)
	} else {
		inv.logger.DebugContext(ctx, "plugin finished",
			"plugin", p.Name(), "exit_code", result.ExitCode,
			"output", result.Output.Kind().String(), "duration", elapsed)
	}

	if inv.recorder != nil {
		inv.recorder.RecordPluginRun(ctx, p.Name(), status, elapsed)
	}

	return result
}

func (inv *Invoker) timeoutFor(p Plugin) time.Duration {
	if tp, ok := p.(TimeoutProvider); ok && tp.Timeout() > 0 {
		return tp.Timeout()
	}

	return inv.Timeout
}

func failedResult(p Plugin, err error, elapsed time.Duration) Result {
	return Result{
		ID:       p.ID(),
		Name:     p.Name(),
		Bundle:   p.Bundle(),
		ExitCode: ExitInvocationFailed,
		Output:   RawOutput(""),
		Stderr:   err.Error(),
		Duration: elapsed,
		Err:      err,
	}
}

func statusOf(r Result) string {
	switch {
	case r.Failed():
		return StatusError
	case r.ExitCode == 0:
		return StatusPass
	default:
		return StatusFindings
	}
}
