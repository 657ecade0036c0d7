// Package hook installs the Git pre-commit script that runs jig.
package hook

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
)

// Installer errors.
var (
	ErrNotGitRepo = errors.New("not a Git repository")
	ErrHookExists = errors.New("pre-commit hook already exists")
)

const (
	hookName = "pre-commit"
	hookPerm = 0o755
	dirPerm  = 0o755
)

var script = template.Must(template.New("pre-commit").Parse(`#!/bin/sh
# Installed by jig. Runs the plugins configured in .jig/plugins.yaml.
exec {{ .Executable }} hook "$(git rev-parse --show-toplevel)"
`))

// Install writes an executable pre-commit hook into the repository at
// repoPath. The hook runs executable, normally the jig binary itself.
// An existing hook is never overwritten. It returns the hook path.
func Install(repoPath, executable string) (string, error) {
	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, repoPath)
	}
	defer repo.Free()

	hooksDir := filepath.Join(repo.GitDir(), "hooks")
	path := filepath.Join(hooksDir, hookName)

	_, statErr := os.Stat(path)
	if statErr == nil {
		return "", fmt.Errorf("%w: %s", ErrHookExists, path)
	}

	err = os.MkdirAll(hooksDir, dirPerm)
	if err != nil {
		return "", fmt.Errorf("create hooks directory: %w", err)
	}

	var buf bytes.Buffer

	err = script.Execute(&buf, struct{ Executable string }{Executable: shellQuote(executable)})
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	// O_EXCL keeps a hook that appeared since the check.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, hookPerm)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrHookExists, path)
	}

	if err != nil {
		return "", fmt.Errorf("create hook: %w", err)
	}

	_, err = file.Write(buf.Bytes())
	closeErr := file.Close()

	if err = errors.Join(err, closeErr); err != nil {
		return "", fmt.Errorf("write hook: %w", err)
	}

	// The umask may have dropped execute bits.
	err = os.Chmod(path, hookPerm)
	if err != nil {
		return "", fmt.Errorf("make hook executable: %w", err)
	}

	return path, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
