// Package install adds plugins to a repository's registry from local
// directories or from Git URLs, one source at a time or from a list file.
package install

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
)

// ErrInvalidSource is returned for a location that cannot be parsed.
var ErrInvalidSource = errors.New("invalid plugin location")

const (
	branchSeparator = "@"
	commentPrefix   = "#"
	clonePerm       = 0o755
)

// scpLike matches "user@host:path" remotes.
var scpLike = regexp.MustCompile(`^[\w.-]+@[\w.-]+:`)

// Source is one place plugins are installed from.
type Source struct {
	// Location is a directory or a clone URL.
	Location string
	// Branch is checked out after cloning; empty means the default branch.
	Branch string
	// Remote is true when Location is cloned rather than used in place.
	Remote bool
}

// String renders the source the way it is written: PATH, URL or URL@BRANCH.
func (s Source) String() string {
	if s.Branch == "" {
		return s.Location
	}

	return s.Location + branchSeparator + s.Branch
}

// ParseSource parses PATH, URL or URL@BRANCH.
func ParseSource(expr string) (Source, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrInvalidSource)
	}

	if !isURL(expr) {
		return Source{Location: expr}, nil
	}

	src := Source{Location: expr, Remote: true}

	at := strings.LastIndex(expr, branchSeparator)
	if at > 0 && isURL(expr[:at]) && hasRepoPath(expr[:at]) {
		src.Location = expr[:at]
		src.Branch = expr[at+1:]

		if src.Branch == "" {
			return Source{}, fmt.Errorf("%w: %q has an empty branch", ErrInvalidSource, expr)
		}
	}

	return src, nil
}

func isURL(s string) bool {
	return strings.Contains(s, "://") || scpLike.MatchString(s)
}

// hasRepoPath reports whether a URL names a repository path, so that an "@"
// inside the user part is not taken for a branch.
func hasRepoPath(url string) bool {
	if _, rest, found := strings.Cut(url, "://"); found {
		return strings.Contains(rest, "/")
	}

	_, rest, _ := strings.Cut(url, ":")

	return rest != ""
}

// ReadList reads one source per line. Blank lines and lines starting with
// "#" are skipped.
func ReadList(r io.Reader) ([]Source, error) {
	var sources []Source

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		src, err := ParseSource(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		sources = append(sources, src)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read plugin list: %w", err)
	}

	return sources, nil
}

// Installer adds plugins to one registry. The caller saves the registry.
type Installer struct {
	reg    *registry.Registry
	clone  func(ctx context.Context, url, dir, branch string) error
	logger *slog.Logger
}

// New creates an installer that clones with libgit2.
func New(reg *registry.Registry, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Installer{reg: reg, clone: gitClone, logger: logger}
}

func gitClone(ctx context.Context, url, dir, branch string) error {
	repo, err := gitlib.Clone(ctx, url, dir, branch)
	if err != nil {
		return err
	}

	repo.Free()

	return nil
}

// Install adds every plugin of src. Remote sources are cloned into the
// registry's clones directory first. On failure nothing from src stays
// installed and the clone is removed.
func (in *Installer) Install(ctx context.Context, src Source) ([]registry.Entry, error) {
	dir := src.Location

	if src.Remote {
		cloned, err := in.cloneSource(ctx, src)
		if err != nil {
			return nil, err
		}

		dir = cloned
	}

	entries, err := in.addAll(dir)
	if err != nil {
		if src.Remote {
			in.discard(dir)
		}

		return nil, err
	}

	return entries, nil
}

// Result is the outcome of one source of a list.
type Result struct {
	Source  Source
	Entries []registry.Entry
	Err     error
}

// InstallAll installs each source independently. A failed source does not
// stop the others.
func (in *Installer) InstallAll(ctx context.Context, sources []Source) []Result {
	results := make([]Result, 0, len(sources))

	for _, src := range sources {
		entries, err := in.Install(ctx, src)
		results = append(results, Result{Source: src, Entries: entries, Err: err})
	}

	return results
}

func (in *Installer) addAll(dir string) ([]registry.Entry, error) {
	dirs, err := registry.FindPlugins(dir)
	if err != nil {
		return nil, err
	}

	added := make([]registry.Entry, 0, len(dirs))

	for _, d := range dirs {
		entry, addErr := in.reg.Add(d)
		if addErr != nil {
			for _, e := range added {
				_, _ = in.reg.Remove(e.Name)
			}

			return nil, addErr
		}

		added = append(added, entry)
	}

	return added, nil
}

func (in *Installer) cloneSource(ctx context.Context, src Source) (string, error) {
	parent := registry.ClonesDir(in.reg.Repo())

	err := os.MkdirAll(parent, clonePerm)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", parent, err)
	}

	dir := freeDir(parent, cloneName(src.Location))

	in.logger.InfoContext(ctx, "cloning plugins", "url", src.Location, "branch", src.Branch, "dir", dir)

	err = in.clone(ctx, src.Location, dir, src.Branch)
	if err != nil {
		in.discard(dir)

		return "", err
	}

	return dir, nil
}

func (in *Installer) discard(dir string) {
	err := os.RemoveAll(dir)
	if err != nil {
		in.logger.Warn("could not remove clone", "dir", dir, "error", err)
	}
}

// cloneName derives a directory name from the last path element of a URL.
func cloneName(url string) string {
	if _, rest, found := strings.Cut(url, "://"); found {
		url = rest
	} else if _, rest, found := strings.Cut(url, ":"); found {
		url = rest
	}

	name := strings.TrimSuffix(path.Base(strings.TrimRight(url, "/")), ".git")
	if name == "" || name == "." || name == "/" {
		return "plugins"
	}

	return name
}

// freeDir returns parent/name, or parent/name-N for the first free N.
func freeDir(parent, name string) string {
	dir := filepath.Join(parent, name)

	for n := 2; ; n++ {
		_, err := os.Lstat(dir)
		if errors.Is(err, os.ErrNotExist) {
			return dir
		}

		dir = filepath.Join(parent, name+"-"+strconv.Itoa(n))
	}
}
