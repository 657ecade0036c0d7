package observability_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.NotNil(t, providers.Shutdown)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_NoopSpanIsValid(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	ctx, span := providers.Tracer.Start(context.Background(), "test-op")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestInit_LoggerWritesToConfiguredOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogOutput = &buf
	cfg.Mode = observability.ModeHook

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.InfoContext(context.Background(), "below threshold")
	assert.Empty(t, buf.String())

	providers.Logger.WarnContext(context.Background(), "plugin slow")
	assert.Contains(t, buf.String(), `"msg":"plugin slow"`)
	assert.Contains(t, buf.String(), `"mode":"hook"`)
}

func TestInit_ShutdownIdempotent(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_MetricsTextfileWrittenOnShutdown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jig.prom")

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.MetricsTextfile = path

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	metrics, err := observability.NewCheckMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordPluginRun(ctx, "lint", "findings", 250*time.Millisecond)
	metrics.RecordDecision(ctx, "blocked")

	require.NoError(t, providers.Shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "jig_plugin_runs")
	assert.Contains(t, text, `plugin="lint"`)
	assert.Contains(t, text, "jig_decisions")
	assert.Contains(t, text, `decision="blocked"`)
}

func TestWriteMetricsTextfile_BadPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "jig.prom")

	err := observability.WriteMetricsTextfile(path, prometheus.NewRegistry())
	require.Error(t, err)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", nil},
		{"single", "key=value", map[string]string{"key": "value"}},
		{"multiple", "k1=v1,k2=v2", map[string]string{"k1": "v1", "k2": "v2"}},
		{"spaces", " k1 = v1 , k2 = v2 ", map[string]string{"k1": "v1", "k2": "v2"}},
		{"no_equals", "invalid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.input))
		})
	}
}
