package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file every plugin directory must contain.
const ManifestFile = "plugin.yaml"

// DefaultCommand is the executable run when a manifest names none.
const DefaultCommand = "pre-commit"

// ErrInvalidManifest is returned for a plugin directory that cannot be used.
var ErrInvalidManifest = errors.New("invalid plugin manifest")

//go:embed manifest-schema.json
var manifestSchema []byte

// Manifest describes a plugin directory.
type Manifest struct {
	Name        string   `yaml:"name"`
	Bundle      string   `yaml:"bundle"`
	Description string   `yaml:"description,omitempty"`
	Command     string   `yaml:"command,omitempty"`
	Args        []string `yaml:"args,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
}

// LoadManifest reads and validates dir/plugin.yaml.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var doc any

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(manifestSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, verr.String())
		}

		return Manifest{}, fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(problems, "; "))
	}

	var m Manifest

	err = yaml.Unmarshal(data, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	return m, nil
}

// TimeoutDuration parses the manifest timeout; zero when unset.
func (m Manifest) TimeoutDuration() (time.Duration, error) {
	if m.Timeout == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout: %w", ErrInvalidManifest, err)
	}

	return d, nil
}

// CommandLine returns the absolute executable followed by its arguments.
func (m Manifest) CommandLine(dir string) []string {
	exe := m.Command
	if exe == "" {
		exe = DefaultCommand
	}

	if !filepath.IsAbs(exe) {
		exe = filepath.Join(dir, exe)
	}

	return append([]string{exe}, m.Args...)
}
