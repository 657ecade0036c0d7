package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/plugin"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
)

func writePlugin(t *testing.T, manifest string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.ManifestFile), []byte(manifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, registry.DefaultCommand), []byte("#!/bin/sh\nexit 0\n"), 0o755))

	return dir
}

func initRepo(t *testing.T) string {
	t.Helper()

	repo := t.TempDir()

	created, err := registry.Init(repo)
	require.NoError(t, err)
	require.True(t, created)

	return repo
}

func TestOpen_NotInitialized(t *testing.T) {
	t.Parallel()

	_, err := registry.Open(t.TempDir())

	require.ErrorIs(t, err, registry.ErrNotInitialized)
}

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)

	created, err := registry.Init(repo)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, registry.Initialized(repo))
	assert.FileExists(t, filepath.Join(repo, registry.DirName, "plugins.yaml"))

	reg, err := registry.Open(repo)
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
	assert.Empty(t, reg.Plugins())
}

func TestAdd_SaveAndReopen(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	first := writePlugin(t, "name: lint\nbundle: core\ndescription: lints\ntimeout: 30s\n")
	second := writePlugin(t, "name: secrets\nbundle: core\nargs: [--strict]\n")

	reg, err := registry.Open(repo)
	require.NoError(t, err)

	entry, err := reg.Add(first)
	require.NoError(t, err)
	assert.Equal(t, "lint", entry.Name)
	assert.Equal(t, 30*time.Second, entry.Timeout)
	assert.Equal(t, []string{filepath.Join(first, registry.DefaultCommand)}, entry.Command)

	_, err = reg.Add(second)
	require.NoError(t, err)
	require.NoError(t, reg.Save())

	reopened, err := registry.Open(repo)
	require.NoError(t, err)
	assert.Equal(t, reg.Entries(), reopened.Entries())

	plugins := reopened.Plugins()
	require.Len(t, plugins, 2)
	assert.Equal(t, plugin.ID(0), plugins[0].ID())
	assert.Equal(t, "lint", plugins[0].Name())
	assert.Equal(t, plugin.ID(1), plugins[1].ID())
	assert.Equal(t, "core", plugins[1].Bundle())

	exec, ok := plugins[0].(*plugin.ExecPlugin)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, exec.Timeout())
	assert.Equal(t, first, exec.Dir())
}

func TestAdd_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg, err := registry.Open(initRepo(t))
	require.NoError(t, err)

	_, err = reg.Add(writePlugin(t, "name: lint\nbundle: core\n"))
	require.NoError(t, err)

	_, err = reg.Add(writePlugin(t, "name: lint\nbundle: core\n"))
	require.ErrorIs(t, err, registry.ErrDuplicate)
	assert.Equal(t, 1, reg.Len())
}

func TestAdd_InvalidManifest(t *testing.T) {
	t.Parallel()

	reg, err := registry.Open(initRepo(t))
	require.NoError(t, err)

	tests := map[string]string{
		"missing bundle": "name: lint\n",
		"unknown key":    "name: lint\nbundle: core\nflavor: mint\n",
		"bad timeout":    "name: lint\nbundle: core\ntimeout: soon\n",
		"not a mapping":  "- lint\n",
		"missing exe":    "name: lint\nbundle: core\ncommand: nope\n",
	}

	for name, manifest := range tests {
		_, addErr := reg.Add(writePlugin(t, manifest))
		require.ErrorIs(t, addErr, registry.ErrInvalidManifest, name)
	}

	_, err = reg.Add(t.TempDir())
	require.ErrorIs(t, err, registry.ErrInvalidManifest)
}

func TestAdd_NotExecutable(t *testing.T) {
	t.Parallel()

	dir := writePlugin(t, "name: lint\nbundle: core\n")
	require.NoError(t, os.Chmod(filepath.Join(dir, registry.DefaultCommand), 0o644))

	reg, err := registry.Open(initRepo(t))
	require.NoError(t, err)

	_, err = reg.Add(dir)
	require.ErrorIs(t, err, registry.ErrInvalidManifest)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	reg, err := registry.Open(initRepo(t))
	require.NoError(t, err)

	_, err = reg.Add(writePlugin(t, "name: a\nbundle: core\n"))
	require.NoError(t, err)
	_, err = reg.Add(writePlugin(t, "name: b\nbundle: core\n"))
	require.NoError(t, err)

	removed, err := reg.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Name)

	_, ok := reg.Lookup("a")
	assert.False(t, ok)

	plugins := reg.Plugins()
	require.Len(t, plugins, 1)
	assert.Equal(t, plugin.ID(0), plugins[0].ID())
	assert.Equal(t, "b", plugins[0].Name())

	_, err = reg.Remove("a")
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStateStore(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	store := registry.NewStateStore(repo)

	last, err := store.LastChecked()
	require.NoError(t, err)
	assert.True(t, last.Equal(time.Unix(0, 0)))

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastChecked(now))

	state, err := registry.NewStateStore(repo).Load()
	require.NoError(t, err)
	assert.True(t, state.LastCheckedForUpdates.Equal(now))
	assert.FileExists(t, filepath.Join(repo, registry.DirName, "state.json"))
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	reg, err := registry.Open(initRepo(t))
	require.NoError(t, err)

	_, err = reg.Add(writePlugin(t, "name: whitespace\nbundle: core\n"))
	require.NoError(t, err)

	assert.Equal(t, ` (did you mean "whitespace"?)`, reg.Suggest("whitespce"))
	assert.Empty(t, reg.Suggest("spelling"))

	_, err = reg.Remove("Whitespace ")
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.Contains(t, err.Error(), `did you mean "whitespace"`)
}

func TestFindPlugins(t *testing.T) {
	t.Parallel()

	single := writePlugin(t, "name: lint\nbundle: core\n")

	found, err := registry.FindPlugins(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, found)

	bundle := t.TempDir()
	for _, name := range []string{"style", "spell"} {
		dir := filepath.Join(bundle, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, registry.ManifestFile), []byte("name: "+name+"\n"), 0o600))
	}

	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "docs"), 0o755))

	found, err = registry.FindPlugins(bundle)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(bundle, "spell"), filepath.Join(bundle, "style")}, found)

	_, err = registry.FindPlugins(t.TempDir())
	require.ErrorIs(t, err, registry.ErrNoPlugins)

	_, err = registry.FindPlugins(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
