// Package updater keeps plugins that live in Git clones up to date with
// their upstream branches.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
)

// Git checks and fast-forwards the clones that hold plugin directories.
// Directories outside a Git repository, clones whose branch has no
// upstream, and excluded repositories are never updated.
type Git struct {
	dirs     []string
	excluded []string
	logger   *slog.Logger
}

// New creates an updater for the given plugin directories.
func New(dirs []string, logger *slog.Logger) *Git {
	if logger == nil {
		logger = slog.Default()
	}

	return &Git{dirs: dirs, logger: logger}
}

// Excluding keeps the repository at root out of every update, along with
// any clone whose work tree contains it. A plugin directory that lives in
// the checked repository without its own clone is therefore skipped.
func (g *Git) Excluding(root string) *Git {
	if root != "" {
		g.excluded = append(g.excluded, canonical(root))
	}

	return g
}

// Clones returns the distinct repository roots holding the plugins.
func (g *Git) Clones() []string {
	var roots []string

	for _, dir := range g.dirs {
		root, err := gitlib.Discover(dir)
		if err != nil {
			g.logger.Debug("plugin is not in a git clone", "dir", dir)

			continue
		}

		if g.isExcluded(root) {
			g.logger.Debug("plugin clone is the checked repository", "dir", dir, "clone", root)

			continue
		}

		if !slices.Contains(roots, root) {
			roots = append(roots, root)
		}
	}

	return roots
}

func (g *Git) isExcluded(root string) bool {
	clone := canonical(root)

	for _, excluded := range g.excluded {
		if within(excluded, clone) {
			return true
		}
	}

	return false
}

// within reports whether path is parent or lies below it.
func within(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return filepath.Clean(abs)
	}

	return resolved
}

// HasUpdates fetches every clone and reports whether any is behind its
// upstream.
func (g *Git) HasUpdates(ctx context.Context) (bool, error) {
	behind, err := g.behind(ctx)

	return len(behind) > 0, err
}

// Install fetches and fast-forwards every clone that is behind.
func (g *Git) Install(ctx context.Context) error {
	behind, err := g.behind(ctx)
	if err != nil {
		return err
	}

	for _, root := range behind {
		err = g.withRepo(root, func(repo *gitlib.Repository) error {
			return repo.FastForward()
		})
		if err != nil {
			return fmt.Errorf("update %s: %w", root, err)
		}

		g.logger.InfoContext(ctx, "plugins updated", "clone", root)
	}

	return nil
}

func (g *Git) behind(ctx context.Context) ([]string, error) {
	var behind []string

	for _, root := range g.Clones() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var status gitlib.TrackingStatus

		err := g.withRepo(root, func(repo *gitlib.Repository) error {
			fetchErr := repo.FetchRemotes(ctx)
			if fetchErr != nil {
				return fetchErr
			}

			var trackErr error

			status, trackErr = repo.Tracking()

			return trackErr
		})

		switch {
		case errors.Is(err, gitlib.ErrNoUpstream):
			g.logger.DebugContext(ctx, "clone has no upstream", "clone", root)

			continue
		case err != nil:
			return nil, fmt.Errorf("check %s: %w", root, err)
		}

		if status.Behind() {
			behind = append(behind, root)
		}
	}

	return behind, nil
}

func (g *Git) withRepo(root string, fn func(*gitlib.Repository) error) error {
	repo, err := gitlib.OpenRepository(root)
	if err != nil {
		return err
	}
	defer repo.Free()

	return fn(repo)
}
