// Package changeset resolves the file-level changes a commit check runs
// against: either the staged index against HEAD, or the difference between
// two named revisions.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
)

// Sentinel errors.
var (
	// ErrVCS wraps every failure to read the repository or resolve a revision.
	ErrVCS = errors.New("version control error")
	// ErrInvalidRevisionRange is returned for malformed range expressions.
	ErrInvalidRevisionRange = fmt.Errorf("%w: invalid revision range", ErrVCS)
	// ErrEmptyRepository signals that HEAD has no commits yet. It is not a
	// failure: callers let the first commit through without running plugins.
	ErrEmptyRepository = errors.New("repository has no commits")
)

// rangeSeparator separates the two sides of a revision range expression.
const rangeSeparator = ".."

// Kind is the kind of change made to a file.
type Kind string

// Change kinds, as presented to plugins.
const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindRenamed  Kind = "renamed"
)

// FileChange is one file of a ChangeSet.
type FileChange struct {
	Path     string
	OldPath  string
	Kind     Kind
	Language string
	Binary   bool
	Vendored bool
	// Submodule marks a gitlink change. It carries a patch but no line view.
	Submodule bool
	Patch     string
	Lines     []Line
}

// ChangeSet is the ordered, immutable list of file changes under evaluation.
type ChangeSet []FileChange

// Paths returns the changed paths in order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, len(cs))
	for i, fc := range cs {
		paths[i] = fc.Path
	}

	return paths
}

// RevisionRange names two revisions to diff instead of the index.
type RevisionRange struct {
	From string
	To   string
}

// String renders the range in A..B form.
func (r RevisionRange) String() string {
	return r.From + rangeSeparator + r.To
}

// ParseRevisionRange parses an "A..B" expression.
func ParseRevisionRange(expr string) (*RevisionRange, error) {
	trimmed := strings.TrimSpace(expr)

	from, to, found := strings.Cut(trimmed, rangeSeparator)
	if !found || from == "" || to == "" ||
		strings.Count(trimmed, rangeSeparator) != 1 || strings.Contains(trimmed, "...") {
		return nil, fmt.Errorf("%w: %q (expected REV1..REV2)", ErrInvalidRevisionRange, expr)
	}

	return &RevisionRange{From: from, To: to}, nil
}

// Repo is the version control capability the resolver consumes.
type Repo interface {
	ResolveCommit(rev string) (gitlib.Hash, error)
	DiffIndexToHead(ctx context.Context) (gitlib.Changes, error)
	DiffCommits(ctx context.Context, from, to gitlib.Hash) (gitlib.Changes, error)
	BlobContents(ctx context.Context, hash gitlib.Hash) ([]byte, error)
}

// Resolver turns an optional revision range into a ChangeSet.
type Resolver struct {
	repo Repo
	// ContextLines is the number of unchanged lines kept around each edit
	// in the per-line view.
	ContextLines int
}

// NewResolver creates a resolver reading from repo.
func NewResolver(repo Repo) *Resolver {
	return &Resolver{repo: repo, ContextLines: DefaultContextLines}
}

// Resolve computes the ChangeSet. With a nil range the staged index is
// compared against HEAD and ErrEmptyRepository is returned when there is no
// HEAD commit. With a range the two revisions are compared directly.
func (r *Resolver) Resolve(ctx context.Context, rng *RevisionRange) (ChangeSet, error) {
	changes, err := r.changes(ctx, rng)
	if err != nil {
		return nil, err
	}

	cs := make(ChangeSet, 0, len(changes))

	for _, change := range changes {
		fc, fcErr := r.fileChange(ctx, change)
		if fcErr != nil {
			return nil, fcErr
		}

		cs = append(cs, fc)
	}

	return cs, nil
}

func (r *Resolver) changes(ctx context.Context, rng *RevisionRange) (gitlib.Changes, error) {
	if rng == nil {
		changes, err := r.repo.DiffIndexToHead(ctx)
		if errors.Is(err, gitlib.ErrUnbornHead) {
			return nil, ErrEmptyRepository
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVCS, err)
		}

		return changes, nil
	}

	from, err := r.repo.ResolveCommit(rng.From)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVCS, err)
	}

	to, err := r.repo.ResolveCommit(rng.To)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVCS, err)
	}

	changes, err := r.repo.DiffCommits(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVCS, err)
	}

	return changes, nil
}

func (r *Resolver) fileChange(ctx context.Context, change *gitlib.Change) (FileChange, error) {
	fc := FileChange{
		Path:     change.Path(),
		Kind:     kindOf(change.Action),
		Patch:    change.Patch,
		Vendored: enry.IsVendor(change.Path()),
	}

	if change.Action == gitlib.Rename {
		fc.OldPath = change.From.Name
	}

	if change.Submodule() {
		fc.Submodule = true
		fc.Binary = true

		return fc, nil
	}

	oldData, err := r.repo.BlobContents(ctx, change.From.Hash)
	if err != nil {
		return FileChange{}, fmt.Errorf("%w: %w", ErrVCS, err)
	}

	newData, err := r.repo.BlobContents(ctx, change.To.Hash)
	if err != nil {
		return FileChange{}, fmt.Errorf("%w: %w", ErrVCS, err)
	}

	sample := newData
	if change.Action == gitlib.Delete {
		sample = oldData
	}

	fc.Binary = change.Binary || enry.IsBinary(sample)
	fc.Language = enry.GetLanguage(path.Base(fc.Path), sample)

	if !fc.Binary {
		fc.Lines = lineDiff(string(oldData), string(newData), r.ContextLines)
	}

	return fc, nil
}

func kindOf(action gitlib.ChangeAction) Kind {
	switch action {
	case gitlib.Insert:
		return KindAdded
	case gitlib.Delete:
		return KindDeleted
	case gitlib.Rename:
		return KindRenamed
	case gitlib.Modify:
		return KindModified
	default:
		return KindModified
	}
}
