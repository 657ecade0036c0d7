package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPluginRuns     = "jig.plugin.runs.total"
	metricPluginDuration = "jig.plugin.duration.seconds"
	metricFindings       = "jig.findings.total"
	metricDecisions      = "jig.decisions.total"

	attrPlugin   = "plugin"
	attrStatus   = "status"
	attrSeverity = "severity"
	attrDecision = "decision"
)

// durationBucketBoundaries covers 10ms to 300s, the range of a linter
// started from a hook.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// CheckMetrics holds the instruments recorded during a pre-commit check.
type CheckMetrics struct {
	pluginRuns     metric.Int64Counter
	pluginDuration metric.Float64Histogram
	findings       metric.Int64Counter
	decisions      metric.Int64Counter
}

// NewCheckMetrics creates the check instruments from the given meter.
func NewCheckMetrics(mt metric.Meter) (*CheckMetrics, error) {
	runs, err := mt.Int64Counter(metricPluginRuns,
		metric.WithDescription("Plugin invocations by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPluginRuns, err)
	}

	duration, err := mt.Float64Histogram(metricPluginDuration,
		metric.WithDescription("Plugin invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPluginDuration, err)
	}

	findings, err := mt.Int64Counter(metricFindings,
		metric.WithDescription("Messages reported by plugins, by severity"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFindings, err)
	}

	decisions, err := mt.Int64Counter(metricDecisions,
		metric.WithDescription("Commit gate decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDecisions, err)
	}

	return &CheckMetrics{
		pluginRuns:     runs,
		pluginDuration: duration,
		findings:       findings,
		decisions:      decisions,
	}, nil
}

// RecordPluginRun records one plugin invocation.
func (cm *CheckMetrics) RecordPluginRun(ctx context.Context, plugin, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrPlugin, plugin),
		attribute.String(attrStatus, status),
	)

	cm.pluginRuns.Add(ctx, 1, attrs)
	cm.pluginDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrPlugin, plugin)))
}

// RecordFindings adds count messages of the given severity. Zero is ignored.
func (cm *CheckMetrics) RecordFindings(ctx context.Context, severity string, count int) {
	if count <= 0 {
		return
	}

	cm.findings.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrSeverity, severity)))
}

// RecordDecision counts one commit gate decision.
func (cm *CheckMetrics) RecordDecision(ctx context.Context, decision string) {
	cm.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String(attrDecision, decision)))
}
