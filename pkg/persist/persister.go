package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// SaveState writes state to dir/basename+ext. The file is written to a
// temporary sibling, flushed to disk and renamed into place, so readers
// never observe a partial file, even after a crash.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.CreateTemp(dir, "."+basename+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	tmp := file.Name()

	err = codec.Encode(file, state)
	if err != nil {
		file.Close()
		os.Remove(tmp)

		return fmt.Errorf("encode state: %w", err)
	}

	err = file.Sync()
	if err != nil {
		file.Close()
		os.Remove(tmp)

		return fmt.Errorf("sync state file: %w", err)
	}

	err = file.Close()
	if err != nil {
		os.Remove(tmp)

		return fmt.Errorf("close state file: %w", err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		os.Remove(tmp)

		return fmt.Errorf("replace state file: %w", err)
	}

	return syncDir(dir)
}

// syncDir flushes the directory entry of a rename. Filesystems that cannot
// sync directories report EINVAL, which is ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	defer d.Close()

	err = d.Sync()
	if err != nil && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("sync state dir: %w", err)
	}

	return nil
}

// LoadState decodes dir/basename+ext into state, which must be a pointer.
// A missing file yields an error matching fs.ErrNotExist.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the file the persister reads and writes in dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes state to dir.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.basename, p.codec, state)
}

// Load reads state from dir. found is false when nothing was saved yet.
func (p *Persister[T]) Load(dir string) (state T, found bool, err error) {
	err = LoadState(dir, p.basename, p.codec, &state)
	if errors.Is(err, fs.ErrNotExist) {
		var zero T

		return zero, false, nil
	}

	if err != nil {
		return state, false, err
	}

	return state, true, nil
}
