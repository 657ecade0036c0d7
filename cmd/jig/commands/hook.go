package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jig/pkg/observability"
	"github.com/Sumatoshi-tech/jig/pkg/pipeline"
)

// NewHookCommand creates the command run by the installed pre-commit hook.
func NewHookCommand(global *GlobalOptions) *cobra.Command {
	return newHookCommandWithDeps(global, LoadEnv, newPipelineRunner)
}

func newHookCommandWithDeps(global *GlobalOptions, loadEnv envLoader, newRunner runnerFactory) *cobra.Command {
	return &cobra.Command{
		Use:    "hook PATH",
		Short:  "Entry point for the pre-commit hook",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(cmd, global, loadEnv, newRunner, observability.ModeHook, pipeline.Options{
				RepoPath:    args[0],
				Interactive: true,
			})
		},
	}
}
