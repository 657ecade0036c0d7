package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified.
	Modify
	// Rename indicates a file was moved, possibly with edits.
	Rename
)

// String returns the lowercase name used on the plugin wire format.
func (a ChangeAction) String() string {
	switch a {
	case Insert:
		return "added"
	case Delete:
		return "deleted"
	case Modify:
		return "modified"
	case Rename:
		return "renamed"
	default:
		return "unknown"
	}
}

// Change represents a single file change between two snapshots.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
	Binary bool
	// Patch is the unified diff of this file as produced by libgit2.
	Patch string
}

// ChangeEntry represents one side of a change (old or new file).
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
	Mode uint16
}

// IsSubmodule reports whether the entry is a gitlink. Its hash names a
// commit in the submodule, not a blob in this repository.
func (e ChangeEntry) IsSubmodule() bool {
	return git2go.Filemode(e.Mode) == git2go.FilemodeCommit
}

// Submodule reports whether either side of the change is a gitlink.
func (c *Change) Submodule() bool {
	return c.From.IsSubmodule() || c.To.IsSubmodule()
}

// Path returns the path the change should be reported under.
func (c *Change) Path() string {
	if c.Action == Delete {
		return c.From.Name
	}

	return c.To.Name
}

// Changes is a collection of Change objects.
type Changes []*Change

// collectChanges converts a libgit2 diff into Changes and frees the diff.
func collectChanges(diff *git2go.Diff) (Changes, error) {
	defer diff.Free() //nolint:errcheck // Free only reports double-free.

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return nil, fmt.Errorf("get find options: %w", err)
	}

	findErr := diff.FindSimilar(&findOpts)
	if findErr != nil {
		return nil, fmt.Errorf("detect renames: %w", findErr)
	}

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		// The patch is built first: libgit2 only flags binary deltas once
		// their content has been loaded.
		patch, patchErr := patchText(diff, i)
		if patchErr != nil {
			return nil, patchErr
		}

		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("read delta %d: %w", i, deltaErr)
		}

		change, ok := changeFromDelta(delta)
		if !ok {
			continue
		}

		change.Patch = patch
		changes = append(changes, change)
	}

	return changes, nil
}

func changeFromDelta(delta git2go.DiffDelta) (*Change, bool) {
	change := &Change{
		Binary: delta.Flags&git2go.DiffFlagBinary != 0,
	}

	switch delta.Status {
	case git2go.DeltaAdded:
		change.Action = Insert
		change.To = entryFromFile(delta.NewFile)
	case git2go.DeltaDeleted:
		change.Action = Delete
		change.From = entryFromFile(delta.OldFile)
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		change.Action = Modify
		change.From = entryFromFile(delta.OldFile)
		change.To = entryFromFile(delta.NewFile)
	case git2go.DeltaRenamed, git2go.DeltaCopied:
		change.Action = Rename
		change.From = entryFromFile(delta.OldFile)
		change.To = entryFromFile(delta.NewFile)
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return nil, false
	default:
		return nil, false
	}

	return change, true
}

func entryFromFile(file git2go.DiffFile) ChangeEntry {
	return ChangeEntry{
		Name: file.Path,
		Hash: HashFromOid(file.Oid),
		Size: int64(file.Size),
		Mode: file.Mode,
	}
}

func patchText(diff *git2go.Diff, index int) (string, error) {
	patch, err := diff.Patch(index)
	if err != nil {
		return "", fmt.Errorf("build patch %d: %w", index, err)
	}
	defer patch.Free() //nolint:errcheck // Free only reports double-free.

	text, err := patch.String()
	if err != nil {
		return "", fmt.Errorf("render patch %d: %w", index, err)
	}

	return text, nil
}
