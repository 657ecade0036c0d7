// Package commands implements the jig command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/jig/pkg/config"
	"github.com/Sumatoshi-tech/jig/pkg/observability"
	"github.com/Sumatoshi-tech/jig/pkg/version"
)

// ErrCommitBlocked is returned when the checks stop the commit. The process
// exits 1 without printing it.
var ErrCommitBlocked = errors.New("commit blocked")

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Debug      bool
}

// Env is the loaded configuration and observability of one command run.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.CheckMetrics

	shutdown func(ctx context.Context) error
}

// Close flushes telemetry.
func (e *Env) Close() {
	if e.shutdown == nil {
		return
	}

	err := e.shutdown(context.Background())
	if err != nil {
		e.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// NewRootCommand assembles the jig command tree.
func NewRootCommand() *cobra.Command {
	opts := &GlobalOptions{}

	root := &cobra.Command{
		Use:   "jig",
		Short: "Run pre-commit plugins against staged changes",
		Long: `jig runs a set of installed plugins against the changes of a commit
and decides, from what they report, whether the commit may go ahead.

Commands:
  init      Prepare a repository and install the pre-commit hook
  runnow    Run the plugins against the staged changes now
  plugin    Manage installed plugins
  report    Show the last report again`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: .jig.yaml in the current or home directory)")
	root.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "debug logging to stderr")

	root.AddCommand(
		NewRunNowCommand(opts),
		NewHookCommand(opts),
		NewInitCommand(opts),
		NewPluginCommand(opts),
		NewInstallCommand(opts),
		NewReportCommand(opts),
		NewVersionCommand(),
	)

	return root
}

// LoadEnv reads the configuration and starts observability for mode.
func LoadEnv(opts *GlobalOptions, mode observability.AppMode) (*Env, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.MetricsTextfile = cfg.Telemetry.MetricsTextfile
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON

	if opts.Debug {
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewCheckMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &Env{
		Config:   cfg,
		Logger:   providers.Logger,
		Tracer:   providers.Tracer,
		Metrics:  metrics,
		shutdown: providers.Shutdown,
	}, nil
}
