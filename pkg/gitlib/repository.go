package gitlib

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrUnbornHead is returned when HEAD points at a branch with no commits yet.
var ErrUnbornHead = errors.New("HEAD has no commits")

// IndexFileEnv is the variable git sets for hooks when the commit is built
// from an index other than $GIT_DIR/index (commit -a, commit PATHS).
const IndexFileEnv = "GIT_INDEX_FILE"

// Repository wraps a libgit2 repository.
type Repository struct {
	repo      *git2go.Repository
	path      string
	indexFile string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Discover finds the repository containing path and returns its working
// directory, or its git directory when the repository is bare.
func Discover(path string) (string, error) {
	gitDir, err := git2go.Discover(path, false, nil)
	if err != nil {
		return "", fmt.Errorf("discover repository: %w", err)
	}

	repo, err := git2go.OpenRepository(gitDir)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	if repo.IsBare() {
		return gitDir, nil
	}

	return filepath.Clean(repo.Workdir()), nil
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the working directory, empty for bare repositories.
func (r *Repository) Workdir() string {
	return r.repo.Workdir()
}

// GitDir returns the repository's .git directory.
func (r *Repository) GitDir() string {
	return filepath.Clean(r.repo.Path())
}

// SetIndexFile makes DiffIndexToHead read the index at path instead of the
// repository's own. A relative path is resolved against the working
// directory, which is where git runs hooks.
func (r *Repository) SetIndexFile(path string) {
	if path != "" && !filepath.IsAbs(path) {
		base := r.repo.Workdir()
		if base == "" {
			base = r.repo.Path()
		}

		path = filepath.Join(base, path)
	}

	r.indexFile = path
}

// IndexFile returns the index path set with SetIndexFile, empty when the
// repository's own index is used.
func (r *Repository) IndexFile() string {
	return r.indexFile
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

// HeadUnborn reports whether HEAD points at a branch without commits.
func (r *Repository) HeadUnborn() (bool, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return false, fmt.Errorf("check HEAD: %w", err)
	}

	return unborn, nil
}

// Head returns the commit HEAD points at.
func (r *Repository) Head() (Hash, error) {
	unborn, err := r.HeadUnborn()
	if err != nil {
		return Hash{}, err
	}

	if unborn {
		return Hash{}, ErrUnbornHead
	}

	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// ResolveCommit resolves a revision expression (sha, branch, tag, HEAD~2)
// to the commit it names.
func (r *Repository) ResolveCommit(rev string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: %w", rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q to a commit: %w", rev, err)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

// DiffIndexToHead computes the staged changes: HEAD's tree against the index.
// Returns ErrUnbornHead when the repository has no commits.
func (r *Repository) DiffIndexToHead(_ context.Context) (Changes, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	tree, err := r.commitTree(head)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	index, err := r.index()
	if err != nil {
		return nil, err
	}
	defer index.Free()

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToIndex(tree, index, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff HEAD to index: %w", err)
	}

	return collectChanges(diff)
}

// DiffCommits computes the changes between the trees of two commits.
// The working directory and index are not consulted.
func (r *Repository) DiffCommits(_ context.Context, from, to Hash) (Changes, error) {
	oldTree, err := r.commitTree(from)
	if err != nil {
		return nil, err
	}
	defer oldTree.Free()

	newTree, err := r.commitTree(to)
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	if oldTree.Id().Equal(newTree.Id()) {
		return make(Changes, 0), nil
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return collectChanges(diff)
}

// BlobContents returns the contents of the blob with the given hash.
// The zero hash yields no content.
func (r *Repository) BlobContents(_ context.Context, hash Hash) ([]byte, error) {
	if hash.IsZero() {
		return nil, nil
	}

	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob %s: %w", hash.Short(), err)
	}
	defer blob.Free()

	contents := blob.Contents()
	out := make([]byte, len(contents))
	copy(out, contents)

	return out, nil
}

func (r *Repository) index() (*git2go.Index, error) {
	if r.indexFile == "" {
		index, err := r.repo.Index()
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}

		return index, nil
	}

	index, err := git2go.OpenIndex(r.indexFile)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", r.indexFile, err)
	}

	return index, nil
}

func (r *Repository) commitTree(hash Hash) (*git2go.Tree, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree of %s: %w", hash.Short(), err)
	}

	return tree, nil
}
