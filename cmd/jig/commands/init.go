package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/hook"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
)

type executableFunc func() (string, error)

// NewInitCommand creates the init command.
func NewInitCommand(_ *GlobalOptions) *cobra.Command {
	return newInitCommandWithDeps(os.Executable)
}

func newInitCommandWithDeps(executable executableFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "init [PATH]",
		Short: "Prepare a repository and install the pre-commit hook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runInit(cmd, path, executable)
		},
	}
}

func runInit(cmd *cobra.Command, path string, executable executableFunc) error {
	out := cmd.OutOrStdout()

	root, err := gitlib.Discover(path)
	if err != nil {
		return fmt.Errorf("%w: %s", hook.ErrNotGitRepo, path)
	}

	created, err := registry.Init(root)
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(out, "Initialized jig in %s\n", registry.Dir(root))
	} else {
		fmt.Fprintf(out, "jig is already initialized in %s\n", registry.Dir(root))
	}

	exe, err := executable()
	if err != nil {
		return fmt.Errorf("locate jig executable: %w", err)
	}

	hookPath, err := hook.Install(root, exe)
	if errors.Is(err, hook.ErrHookExists) {
		fmt.Fprintf(out, "Leaving the existing hook alone: %v\n", err)

		return nil
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Installed pre-commit hook in %s\n", hookPath)

	return nil
}
