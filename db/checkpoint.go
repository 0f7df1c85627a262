package db

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dumper serializes a database snapshot; the on-disk format is an
// external collaborator's concern.
type Dumper interface {
	Dump(s *Store, w *os.File) error
}

// Loader constructs a database from its serialized form.
type Loader interface {
	Load(path string) (*Store, error)
}

// Checkpoint writes a dump atomically: serialize to a temp file in the
// destination directory, fsync, then rename over the target.
func Checkpoint(s *Store, d Dumper, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := d.Dump(s, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
