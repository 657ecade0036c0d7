// Package gitlibtest builds throwaway libgit2 repositories for tests.
package gitlibtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
)

// Repo is a scratch repository rooted in a test temp dir.
type Repo struct {
	t      testing.TB
	Path   string
	Native *git2go.Repository
	clock  time.Time
}

// NewRepo initializes an empty repository. It is freed on test cleanup.
func NewRepo(t testing.TB) *Repo {
	t.Helper()

	return InitAt(t, t.TempDir())
}

// InitAt initializes a repository in dir.
func InitAt(t testing.TB, dir string) *Repo {
	t.Helper()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(native.Free)

	return &Repo{
		t:      t,
		Path:   dir,
		Native: native,
		clock:  time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WriteFile creates or overwrites a file in the working directory.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
}

// RemoveFile deletes a file from the working directory.
func (r *Repo) RemoveFile(name string) {
	r.t.Helper()

	require.NoError(r.t, os.Remove(filepath.Join(r.Path, name)))
}

// Stage adds (or removes, if absent on disk) the given paths in the index.
func (r *Repo) Stage(names ...string) {
	r.t.Helper()

	index, err := r.Native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	for _, name := range names {
		_, statErr := os.Stat(filepath.Join(r.Path, name))
		if os.IsNotExist(statErr) {
			require.NoError(r.t, index.RemoveByPath(name))

			continue
		}

		require.NoError(r.t, index.AddByPath(name))
	}

	require.NoError(r.t, index.Write())
}

// StageFile writes a file and stages it.
func (r *Repo) StageFile(name, content string) {
	r.t.Helper()

	r.WriteFile(name, content)
	r.Stage(name)
}

// Commit writes the index as a new commit on HEAD. Each commit is one
// minute newer than the previous so committer dates are ordered.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	index, err := r.Native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.Native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	r.clock = r.clock.Add(time.Minute)
	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  r.clock,
	}

	var parents []*git2go.Commit

	unborn, err := r.Native.IsHeadUnborn()
	require.NoError(r.t, err)

	if !unborn {
		head, headErr := r.Native.Head()
		require.NoError(r.t, headErr)

		parent, lookupErr := r.Native.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)

		head.Free()

		parents = append(parents, parent)
	}

	oid, err := r.Native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// Branch creates a local branch pointing at commit without checking it out.
func (r *Repo) Branch(name string, commit gitlib.Hash) {
	r.t.Helper()

	target, err := r.Native.LookupCommit(commit.ToOid())
	require.NoError(r.t, err)

	defer target.Free()

	branch, err := r.Native.CreateBranch(name, target, false)
	require.NoError(r.t, err)

	branch.Free()
}

// CommitFile writes, stages and commits a single file.
func (r *Repo) CommitFile(name, content, message string) gitlib.Hash {
	r.t.Helper()

	r.StageFile(name, content)

	return r.Commit(message)
}

// Clone makes a clone of source whose checked out branch tracks source.
func Clone(t testing.TB, source *Repo) *Repo {
	t.Helper()

	return CloneInto(t, source, t.TempDir())
}

// CloneInto clones source into dir, which may sit inside another work tree.
func CloneInto(t testing.TB, source *Repo, dir string) *Repo {
	t.Helper()

	native, err := git2go.Clone(source.Path, dir, &git2go.CloneOptions{
		CheckoutOptions: git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe},
	})
	require.NoError(t, err)

	t.Cleanup(native.Free)

	return &Repo{
		t:      t,
		Path:   dir,
		Native: native,
		clock:  source.clock,
	}
}

// StageInIndexFile stages content under name in the index file at
// indexPath, the way git prepares a temporary index for "commit -a". The
// file starts as a copy of the repository's own index.
func (r *Repo) StageInIndexFile(indexPath, name, content string) {
	r.t.Helper()

	_, statErr := os.Stat(indexPath)
	if os.IsNotExist(statErr) {
		data, err := os.ReadFile(filepath.Join(r.Native.Path(), "index"))
		require.NoError(r.t, err)
		require.NoError(r.t, os.WriteFile(indexPath, data, 0o644))
	}

	oid, err := r.Native.CreateBlobFromBuffer([]byte(content))
	require.NoError(r.t, err)

	r.addEntry(indexPath, &git2go.IndexEntry{
		Mode: git2go.FilemodeBlob,
		Size: uint32(len(content)),
		Id:   oid,
		Path: name,
	})
}

// StageGitlink records a submodule entry at name pointing at commit. The
// commit does not need to exist in this repository.
func (r *Repo) StageGitlink(name string, commit gitlib.Hash) {
	r.t.Helper()

	r.addEntry(filepath.Join(r.Native.Path(), "index"), &git2go.IndexEntry{
		Mode: git2go.FilemodeCommit,
		Id:   commit.ToOid(),
		Path: name,
	})
}

func (r *Repo) addEntry(indexPath string, entry *git2go.IndexEntry) {
	r.t.Helper()

	index, err := git2go.OpenIndex(indexPath)
	require.NoError(r.t, err)

	defer index.Free()

	require.NoError(r.t, index.Add(entry))
	require.NoError(r.t, index.Write())
}
