package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jig/pkg/config"
	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/observability"
	"github.com/Sumatoshi-tech/jig/pkg/pipeline"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
	"github.com/Sumatoshi-tech/jig/pkg/render"
)

// ReportCommand holds the flags of report.
type ReportCommand struct {
	global  *GlobalOptions
	gitRepo string
	format  string

	loadEnv envLoader
	now     func() time.Time
}

// NewReportCommand creates the report command.
func NewReportCommand(global *GlobalOptions) *cobra.Command {
	return newReportCommandWithDeps(global, LoadEnv, time.Now)
}

func newReportCommandWithDeps(global *GlobalOptions, loadEnv envLoader, now func() time.Time) *cobra.Command {
	rc := &ReportCommand{global: global, loadEnv: loadEnv, now: now}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last report again",
		Args:  cobra.NoArgs,
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.gitRepo, "gitrepo", ".", "Path to the Git repository")
	cmd.Flags().StringVar(&rc.format, "format", "", "Output format: text or json (default from config)")

	return cmd
}

func (rc *ReportCommand) run(cmd *cobra.Command, _ []string) error {
	env, err := rc.loadEnv(rc.global, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := *env.Config
	if rc.format != "" {
		cfg.Output.Format = rc.format
	}

	err = cfg.Validate()
	if err != nil {
		return err
	}

	root, err := gitlib.Discover(rc.gitRepo)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", rc.gitRepo, err)
	}

	if !registry.Initialized(root) {
		return registry.ErrNotInitialized
	}

	doc, err := render.NewArchive(registry.Dir(root)).Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if cfg.Output.Format == config.FormatText {
		err = render.WriteProvenance(out, doc, rc.now())
		if err != nil {
			return err
		}
	}

	return pipeline.DefaultRenderer(&cfg, out).Render(doc)
}
