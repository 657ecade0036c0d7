package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/gitlib/gitlibtest"
)

func openRepo(t *testing.T, path string) *gitlib.Repository {
	t.Helper()

	repo, err := gitlib.OpenRepository(path)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	return repo
}

func TestOpenRepository(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	repo := openRepo(t, tr.Path)

	assert.Equal(t, tr.Path, repo.Path())
	assert.NotNil(t, repo.Native())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepositoryFree(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)

	repo, err := gitlib.OpenRepository(tr.Path)
	require.NoError(t, err)

	// Free multiple times should be safe.
	repo.Free()
	repo.Free()
}

func TestHead_Unborn(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	repo := openRepo(t, tr.Path)

	unborn, err := repo.HeadUnborn()
	require.NoError(t, err)
	assert.True(t, unborn)

	_, err = repo.Head()
	require.ErrorIs(t, err, gitlib.ErrUnbornHead)
}

func TestHead_AfterCommit(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	expected := tr.CommitFile("a.txt", "a\n", "initial")

	repo := openRepo(t, tr.Path)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, expected, head)
}

func TestResolveCommit(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	first := tr.CommitFile("a.txt", "a\n", "first")
	second := tr.CommitFile("b.txt", "b\n", "second")

	repo := openRepo(t, tr.Path)

	got, err := repo.ResolveCommit("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = repo.ResolveCommit(second.String())
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = repo.ResolveCommit("no-such-branch")
	require.Error(t, err)
}

func TestDiffIndexToHead_UnbornHead(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.StageFile("a.txt", "a\n")

	repo := openRepo(t, tr.Path)

	_, err := repo.DiffIndexToHead(context.Background())
	require.ErrorIs(t, err, gitlib.ErrUnbornHead)
}

func TestDiffIndexToHead_StagedChanges(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.CommitFile("keep.txt", "one\n", "initial")
	tr.StageFile("keep.txt", "one\ntwo\n")
	tr.StageFile("new.txt", "fresh\n")
	// Unstaged edits are not part of the index diff.
	tr.WriteFile("untracked.txt", "ignored\n")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffIndexToHead(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 2)

	byPath := map[string]*gitlib.Change{}
	for _, change := range changes {
		byPath[change.Path()] = change
	}

	require.Contains(t, byPath, "keep.txt")
	assert.Equal(t, gitlib.Modify, byPath["keep.txt"].Action)
	assert.Contains(t, byPath["keep.txt"].Patch, "+two")

	require.Contains(t, byPath, "new.txt")
	assert.Equal(t, gitlib.Insert, byPath["new.txt"].Action)
	assert.False(t, byPath["new.txt"].To.Hash.IsZero())
}

func TestDiffIndexToHead_NoChanges(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.CommitFile("a.txt", "a\n", "initial")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffIndexToHead(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffCommits_Delete(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.StageFile("a.txt", "a\n")
	first := tr.CommitFile("b.txt", "b\n", "first")
	tr.RemoveFile("a.txt")
	tr.Stage("a.txt")
	second := tr.Commit("remove a")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffCommits(context.Background(), first, second)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, gitlib.Delete, changes[0].Action)
	assert.Equal(t, "a.txt", changes[0].Path())
}

func TestDiffCommits_SameTree(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	first := tr.CommitFile("a.txt", "a\n", "first")
	second := tr.Commit("empty")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffCommits(context.Background(), first, second)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestBlobContents(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	first := tr.CommitFile("a.txt", "a\n", "first")
	second := tr.CommitFile("a.txt", "a\nb\n", "second")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffCommits(context.Background(), first, second)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	oldData, err := repo.BlobContents(context.Background(), changes[0].From.Hash)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(oldData))

	newData, err := repo.BlobContents(context.Background(), changes[0].To.Hash)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(newData))

	none, err := repo.BlobContents(context.Background(), gitlib.Hash{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHash_RoundTrip(t *testing.T) {
	t.Parallel()

	const hexStr = "0123456789abcdef0123456789abcdef01234567"

	hash := gitlib.NewHash(hexStr)

	assert.Equal(t, hexStr, hash.String())
	assert.Equal(t, "0123456", hash.Short())
	assert.False(t, hash.IsZero())
	assert.Equal(t, hash, gitlib.HashFromOid(hash.ToOid()))
	assert.True(t, gitlib.NewHash("not-hex").IsZero())
}

func TestChangeAction_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "added", gitlib.Insert.String())
	assert.Equal(t, "deleted", gitlib.Delete.String())
	assert.Equal(t, "modified", gitlib.Modify.String())
	assert.Equal(t, "renamed", gitlib.Rename.String())
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.WriteFile("nested/dir/file.txt", "x")

	root, err := gitlib.Discover(filepath.Join(tr.Path, "nested", "dir"))
	require.NoError(t, err)
	assert.Equal(t, tr.Path, root)

	_, err = gitlib.Discover(t.TempDir())
	require.Error(t, err)
}

func TestTrackingAndFastForward(t *testing.T) {
	t.Parallel()

	upstream := gitlibtest.NewRepo(t)
	upstream.CommitFile("a.txt", "one\n", "first")

	clone := gitlibtest.Clone(t, upstream)
	repo := openRepo(t, clone.Path)

	status, err := repo.Tracking()
	require.NoError(t, err)
	assert.False(t, status.Behind())

	newer := upstream.CommitFile("a.txt", "two\n", "second")

	require.NoError(t, repo.FetchRemotes(context.Background()))

	status, err = repo.Tracking()
	require.NoError(t, err)
	assert.True(t, status.Behind())
	assert.Equal(t, newer, status.Upstream)

	require.NoError(t, repo.FastForward())

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, newer, head)

	content, err := os.ReadFile(filepath.Join(clone.Path, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(content))
}

func TestTracking_NoUpstream(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.CommitFile("a.txt", "a", "first")

	_, err := openRepo(t, tr.Path).Tracking()
	require.ErrorIs(t, err, gitlib.ErrNoUpstream)
}

func TestDiffIndexToHead_IndexFile(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.CommitFile("a.txt", "a\n", "initial")
	tr.StageInIndexFile(filepath.Join(tr.Path, ".git", "index.lock"), "a.txt", "changed\n")

	repo := openRepo(t, tr.Path)

	changes, err := repo.DiffIndexToHead(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)

	repo.SetIndexFile(filepath.Join(".git", "index.lock"))
	assert.Equal(t, filepath.Join(tr.Path, ".git", "index.lock"), filepath.Clean(repo.IndexFile()))

	changes, err = repo.DiffIndexToHead(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "a.txt", changes[0].Path())
	assert.Equal(t, gitlib.Modify, changes[0].Action)
	assert.Contains(t, changes[0].Patch, "+changed")
}

func TestDiffIndexToHead_Gitlink(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.NewRepo(t)
	tr.CommitFile("a.txt", "a\n", "initial")

	sub := gitlib.NewHash("1111111111111111111111111111111111111111")
	tr.StageGitlink("vendor/lib", sub)

	changes, err := openRepo(t, tr.Path).DiffIndexToHead(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)

	change := changes[0]
	assert.Equal(t, "vendor/lib", change.Path())
	assert.True(t, change.Submodule())
	assert.True(t, change.To.IsSubmodule())
	assert.Equal(t, sub, change.To.Hash)
	assert.False(t, change.From.IsSubmodule())
}

func TestFastForward_Diverged(t *testing.T) {
	t.Parallel()

	upstream := gitlibtest.NewRepo(t)
	upstream.CommitFile("a.txt", "one\n", "first")

	clone := gitlibtest.Clone(t, upstream)
	local := clone.CommitFile("local.txt", "mine\n", "local work")
	upstream.CommitFile("a.txt", "two\n", "second")

	repo := openRepo(t, clone.Path)
	require.NoError(t, repo.FetchRemotes(context.Background()))

	status, err := repo.Tracking()
	require.NoError(t, err)
	assert.False(t, status.Behind())

	require.ErrorIs(t, repo.FastForward(), gitlib.ErrNotFastForward)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, local, head)
}

func TestFastForward_KeepsLocalEdits(t *testing.T) {
	t.Parallel()

	upstream := gitlibtest.NewRepo(t)
	upstream.CommitFile("a.txt", "one\n", "first")

	clone := gitlibtest.Clone(t, upstream)
	upstream.CommitFile("a.txt", "two\n", "second")

	clone.WriteFile("a.txt", "edited\n")

	repo := openRepo(t, clone.Path)
	require.NoError(t, repo.FetchRemotes(context.Background()))

	original, err := repo.Head()
	require.NoError(t, err)

	require.Error(t, repo.FastForward())

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, original, head)

	content, err := os.ReadFile(filepath.Join(clone.Path, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "edited\n", string(content))
}
