// Package registry keeps track of the plugins installed for a repository
// and of the per-repository state stored next to them in .jig/.
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/jig/pkg/levenshtein"
	"github.com/Sumatoshi-tech/jig/pkg/persist"
	"github.com/Sumatoshi-tech/jig/pkg/plugin"
)

// DirName is the per-repository directory holding jig's files.
const DirName = ".jig"

const (
	pluginsBasename = "plugins"
	yamlExtension   = ".yaml"
	dirPerm         = 0o755
)

// Registry errors.
var (
	ErrNotInitialized = errors.New("this repository has not been initialized, run jig init")
	ErrDuplicate      = errors.New("plugin already installed")
	ErrNotFound       = errors.New("plugin not installed")
	ErrNoPlugins      = errors.New("no plugins found")
)

// clonesDirName holds plugin clones under .jig.
const clonesDirName = "plugins"

// Dir returns the .jig directory of a repository.
func Dir(repo string) string {
	return filepath.Join(repo, DirName)
}

// ClonesDir returns the directory plugin clones are made in.
func ClonesDir(repo string) string {
	return filepath.Join(Dir(repo), clonesDirName)
}

// FindPlugins returns the plugin directories in dir: dir itself when it
// has a manifest, otherwise every immediate subdirectory that has one, in
// name order.
func FindPlugins(dir string) ([]string, error) {
	if hasManifest(dir) {
		return []string{dir}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin location: %w", err)
	}

	var found []string

	for _, e := range entries {
		sub := filepath.Join(dir, e.Name())
		if e.IsDir() && hasManifest(sub) {
			found = append(found, sub)
		}
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPlugins, dir)
	}

	return found, nil
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFile))

	return err == nil && info.Mode().IsRegular()
}

// Initialized reports whether repo has a .jig directory.
func Initialized(repo string) bool {
	info, err := os.Stat(Dir(repo))

	return err == nil && info.IsDir()
}

// Init creates the .jig directory and an empty registry. It reports whether
// anything was created.
func Init(repo string) (bool, error) {
	if Initialized(repo) {
		return false, nil
	}

	err := os.MkdirAll(Dir(repo), dirPerm)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", DirName, err)
	}

	reg := &Registry{repo: repo}

	err = reg.Save()
	if err != nil {
		return false, err
	}

	return true, nil
}

// Entry is one installed plugin.
type Entry struct {
	Name        string        `yaml:"name"`
	Bundle      string        `yaml:"bundle"`
	Description string        `yaml:"description,omitempty"`
	Path        string        `yaml:"path"`
	Command     []string      `yaml:"command"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

type registryFile struct {
	Plugins []Entry `yaml:"plugins"`
}

// Registry is the ordered list of plugins installed in one repository.
// Order is registration order and determines plugin handles.
type Registry struct {
	repo    string
	entries []Entry
}

// Open loads the registry of repo.
func Open(repo string) (*Registry, error) {
	if !Initialized(repo) {
		return nil, ErrNotInitialized
	}

	var file registryFile

	err := persist.LoadState(Dir(repo), pluginsBasename, yamlCodec{}, &file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load plugin registry: %w", err)
	}

	return &Registry{repo: repo, entries: file.Plugins}, nil
}

// Repo returns the repository the registry belongs to.
func (r *Registry) Repo() string { return r.repo }

// Entries returns a copy of the installed plugins in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of installed plugins.
func (r *Registry) Len() int { return len(r.entries) }

// Lookup finds a plugin by name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}

	return Entry{}, false
}

// Add installs the plugin found in dir. The manifest must be valid and the
// executable must exist. Nothing is written until Save.
func (r *Registry) Add(dir string) (Entry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve plugin directory: %w", err)
	}

	manifest, err := LoadManifest(abs)
	if err != nil {
		return Entry{}, err
	}

	timeout, err := manifest.TimeoutDuration()
	if err != nil {
		return Entry{}, err
	}

	command := manifest.CommandLine(abs)

	info, err := os.Stat(command[0])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return Entry{}, fmt.Errorf("%w: %s is not executable", ErrInvalidManifest, command[0])
	}

	// Names select plugins on the command line, so they are unique across bundles.
	for _, e := range r.entries {
		if e.Name == manifest.Name {
			return Entry{}, fmt.Errorf("%w: %s from %s", ErrDuplicate, e.Name, e.Bundle)
		}
	}

	entry := Entry{
		Name:        manifest.Name,
		Bundle:      manifest.Bundle,
		Description: manifest.Description,
		Path:        abs,
		Command:     command,
		Timeout:     timeout,
	}

	r.entries = append(r.entries, entry)

	return entry, nil
}

// Remove uninstalls a plugin by name. Later plugins get new handles.
func (r *Registry) Remove(name string) (Entry, error) {
	for i, e := range r.entries {
		if e.Name == name {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)

			return e, nil
		}
	}

	return Entry{}, fmt.Errorf("%w: %s%s", ErrNotFound, name, r.Suggest(name))
}

// suggestDistance is how many edits a mistyped name may be from a real one.
const suggestDistance = 2

// Suggest returns a " (did you mean ...?)" hint for a mistyped plugin name,
// or "" when no installed name is close.
func (r *Registry) Suggest(name string) string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}

	closest, ok := levenshtein.Closest(name, names, suggestDistance)
	if !ok {
		return ""
	}

	return fmt.Sprintf(" (did you mean %q?)", closest)
}

// Save writes the registry to .jig/plugins.yaml.
func (r *Registry) Save() error {
	err := persist.SaveState(Dir(r.repo), pluginsBasename, yamlCodec{}, registryFile{Plugins: r.entries})
	if err != nil {
		return fmt.Errorf("save plugin registry: %w", err)
	}

	return nil
}

// Plugins binds every entry to the exec contract. Handles are registry
// indexes. Each plugin learns the repository through JIG_GIT_REPO.
func (r *Registry) Plugins() []plugin.Plugin {
	plugins := make([]plugin.Plugin, 0, len(r.entries))

	for i, e := range r.entries {
		p := plugin.NewExecPlugin(plugin.ID(i), e.Bundle, e.Name, e.Path, e.Command).
			WithEnv("JIG_GIT_REPO=" + r.repo).
			WithTimeout(e.Timeout)
		plugins = append(plugins, p)
	}

	return plugins
}

type yamlCodec struct{}

func (yamlCodec) Encode(w io.Writer, state any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(state)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	return enc.Close()
}

func (yamlCodec) Decode(r io.Reader, state any) error {
	err := yaml.NewDecoder(r).Decode(state)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml decode: %w", err)
	}

	return nil
}

func (yamlCodec) Extension() string { return yamlExtension }
