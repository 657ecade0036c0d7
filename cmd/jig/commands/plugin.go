package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/install"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
)

// NewPluginCommand creates the plugin command group.
func NewPluginCommand(_ *GlobalOptions) *cobra.Command {
	var gitRepo string

	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage installed plugins",
	}

	cmd.PersistentFlags().StringVar(&gitRepo, "gitrepo", ".", "Path to the Git repository")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List installed plugins",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRegistry(gitRepo, func(reg *registry.Registry) error {
					return listPlugins(cmd.OutOrStdout(), reg)
				})
			},
		},
		newPluginAddCommand(&gitRepo, "add LOCATION"),
		&cobra.Command{
			Use:   "remove NAME",
			Short: "Uninstall a plugin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRegistry(gitRepo, func(reg *registry.Registry) error {
					entry, err := reg.Remove(args[0])
					if err != nil {
						return err
					}

					err = reg.Save()
					if err != nil {
						return err
					}

					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s/%s\n", entry.Bundle, entry.Name)

					return nil
				})
			},
		},
	)

	return cmd
}

// ErrInstallFailed is returned by install when any source of the list failed.
var ErrInstallFailed = errors.New("some plugins could not be installed")

// NewInstallCommand creates install, which adds the plugins of a list file.
func NewInstallCommand(_ *GlobalOptions) *cobra.Command {
	var gitRepo string

	cmd := &cobra.Command{
		Use:   "install FILE",
		Short: "Install the plugins listed in FILE",
		Long: `Install plugins from a list file. Each line names one location:
PATH, URL or URL@BRANCH. Blank lines and lines starting with # are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := readSources(args[0])
			if err != nil {
				return err
			}

			return withRegistry(gitRepo, func(reg *registry.Registry) error {
				return installList(cmd, reg, sources)
			})
		},
	}

	cmd.Flags().StringVar(&gitRepo, "gitrepo", ".", "Path to the Git repository")

	return cmd
}

func readSources(path string) ([]install.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin list: %w", err)
	}
	defer file.Close()

	return install.ReadList(file)
}

func installList(cmd *cobra.Command, reg *registry.Registry, sources []install.Source) error {
	out := cmd.OutOrStdout()
	failed := 0

	for _, res := range install.New(reg, nil).InstallAll(cmd.Context(), sources) {
		fmt.Fprintf(out, "From %s:\n", res.Source)

		if res.Err != nil {
			failed++

			fmt.Fprintf(out, " - %v\n", res.Err)

			continue
		}

		for _, e := range res.Entries {
			fmt.Fprintf(out, " - Added plugin %s in bundle %s\n", e.Name, e.Bundle)
		}
	}

	err := reg.Save()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, useRunNow)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d sources failed", ErrInstallFailed, failed, len(sources))
	}

	return nil
}

// useRunNow tells the user how to try the new plugins.
const useRunNow = "Run jig runnow to check your staged changes with them."

func newPluginAddCommand(gitRepo *string, use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Install the plugins at LOCATION (PATH, URL or URL@BRANCH)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := install.ParseSource(args[0])
			if err != nil {
				return err
			}

			return withRegistry(*gitRepo, func(reg *registry.Registry) error {
				entries, installErr := install.New(reg, nil).Install(cmd.Context(), src)
				if installErr != nil {
					return installErr
				}

				saveErr := reg.Save()
				if saveErr != nil {
					return saveErr
				}

				for _, entry := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s/%s from %s\n", entry.Bundle, entry.Name, entry.Path)
				}

				return nil
			})
		},
	}
}

func withRegistry(path string, fn func(reg *registry.Registry) error) error {
	root, err := gitlib.Discover(path)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", path, err)
	}

	reg, err := registry.Open(root)
	if err != nil {
		return err
	}

	return fn(reg)
}

func listPlugins(out io.Writer, reg *registry.Registry) error {
	if reg.Len() == 0 {
		_, err := fmt.Fprintln(out, "No plugins installed.")

		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.AppendHeader(table.Row{"Bundle", "Name", "Description", "Path"})

	for _, e := range reg.Entries() {
		tw.AppendRow(table.Row{e.Bundle, e.Name, e.Description, e.Path})
	}

	tw.Render()

	return nil
}
