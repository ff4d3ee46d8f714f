package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/google/uuid"
)

// OpenFile splits an OS path into a filesystem rooted at its directory and
// the file name inside it
func OpenFile(filename string) (billy.Filesystem, string) {
	dir, name := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	return osfs.New(dir), name
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeJSONAtomic writes v to a temporary sibling of name, syncs it when the
// file supports it and renames it over name, so readers never observe a
// partially written file
func writeJSONAtomic(fs billy.Filesystem, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("while encoding: %w", err)
	}
	tempFile := path.Join(path.Dir(name), fmt.Sprintf(".%s.%s.tmp", path.Base(name), uuid.New()))
	f, err := fs.Create(tempFile)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if err != nil {
		f.Close()
		fs.Remove(tempFile)
		return err
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			fs.Remove(tempFile)
			return err
		}
	}
	err = f.Close()
	if err != nil {
		fs.Remove(tempFile)
		return err
	}
	err = fs.Rename(tempFile, name)
	if err != nil {
		fs.Remove(tempFile)
		return err
	}
	return nil
}
