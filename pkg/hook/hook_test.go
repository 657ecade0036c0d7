package hook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib/gitlibtest"
	"github.com/Sumatoshi-tech/jig/pkg/hook"
)

func TestInstall(t *testing.T) {
	t.Parallel()

	repo := gitlibtest.NewRepo(t)

	path, err := hook.Install(repo.Path, "/opt/it's/jig")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo.Path, ".git", "hooks", "pre-commit"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "#!/bin/sh\n")
	assert.Contains(t, string(content), `exec '/opt/it'\''s/jig' hook "$(git rev-parse --show-toplevel)"`)
}

func TestInstall_RefusesToOverwrite(t *testing.T) {
	t.Parallel()

	repo := gitlibtest.NewRepo(t)
	existing := filepath.Join(repo.Path, ".git", "hooks", "pre-commit")

	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	_, err := hook.Install(repo.Path, "/usr/bin/jig")
	require.ErrorIs(t, err, hook.ErrHookExists)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nexit 0\n", string(content))
}

func TestInstall_NotGitRepo(t *testing.T) {
	t.Parallel()

	_, err := hook.Install(t.TempDir(), "/usr/bin/jig")
	require.ErrorIs(t, err, hook.ErrNotGitRepo)
}
