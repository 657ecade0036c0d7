package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jig/pkg/commitgate"
	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/observability"
	"github.com/Sumatoshi-tech/jig/pkg/pipeline"
)

// Runner performs one check.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (commitgate.Decision, error)
}

type runnerFactory func(env *Env, out io.Writer) Runner

type envLoader func(opts *GlobalOptions, mode observability.AppMode) (*Env, error)

func newPipelineRunner(env *Env, out io.Writer) Runner {
	return pipeline.New(env.Config, out,
		pipeline.WithLogger(env.Logger),
		pipeline.WithTracer(env.Tracer),
		pipeline.WithRecorder(env.Metrics),
	)
}

// RunNowCommand holds the flags of runnow.
type RunNowCommand struct {
	global        *GlobalOptions
	gitRepo       string
	plugin        string
	revRange      string
	noInteractive bool

	loadEnv   envLoader
	newRunner runnerFactory
}

// NewRunNowCommand creates the runnow command.
func NewRunNowCommand(global *GlobalOptions) *cobra.Command {
	return newRunNowCommandWithDeps(global, LoadEnv, newPipelineRunner)
}

func newRunNowCommandWithDeps(global *GlobalOptions, loadEnv envLoader, newRunner runnerFactory) *cobra.Command {
	rc := &RunNowCommand{global: global, loadEnv: loadEnv, newRunner: newRunner}

	cmd := &cobra.Command{
		Use:   "runnow",
		Short: "Run the plugins against the staged changes",
		Long: `Run every installed plugin, or the one named with --plugin, against the
staged changes or against the commits of --rev-range.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.gitRepo, "gitrepo", ".", "Path to the Git repository")
	cmd.Flags().StringVar(&rc.plugin, "plugin", "", "Only run the plugin with this name")
	cmd.Flags().StringVar(&rc.revRange, "rev-range", "", "Check the changes between two revisions (REV1..REV2)")
	cmd.Flags().BoolVar(&rc.noInteractive, "no-interactive", false, "Never prompt; block only on stop messages")

	return cmd
}

func (rc *RunNowCommand) run(cmd *cobra.Command, _ []string) error {
	return check(cmd, rc.global, rc.loadEnv, rc.newRunner, observability.ModeCLI, pipeline.Options{
		RepoPath:    rc.gitRepo,
		Plugin:      rc.plugin,
		RevRange:    rc.revRange,
		Interactive: !rc.noInteractive,
	})
}

func check(
	cmd *cobra.Command,
	global *GlobalOptions,
	loadEnv envLoader,
	newRunner runnerFactory,
	mode observability.AppMode,
	opts pipeline.Options,
) error {
	env, err := loadEnv(global, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	if opts.RevRange == "" {
		opts.IndexFile = os.Getenv(gitlib.IndexFileEnv)
	}

	decision, err := newRunner(env, cmd.OutOrStdout()).Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if decision.ExitCode() != 0 {
		return ErrCommitBlocked
	}

	return nil
}
