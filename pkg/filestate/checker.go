package filestate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// State describes a backing file at the moment it was checked
type State struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"modTime,omitempty"`
	Size    int64     `json:"size,omitempty"`
}

// Checker reports whether a document path exists, when it last changed and
// whether another process holds it open for writing.
type Checker interface {
	Stat(path string) (State, error)
	IsLocked(path string) (bool, error)
}

// OSChecker checks files on the local filesystem
type OSChecker struct{}

// NewOSChecker creates a checker backed by the local filesystem
func NewOSChecker() *OSChecker {
	return &OSChecker{}
}

// Stat returns the state of path. A missing file is not an error.
func (c *OSChecker) Stat(path string) (State, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{Path: path}, nil
		}
		return State{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return State{}, fmt.Errorf("%s is a directory", path)
	}

	return State{
		Path:    path,
		Exists:  true,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// IsLocked reports whether another application holds path. Office owner
// files next to the document count as a lock, then an advisory flock
// is attempted.
func (c *OSChecker) IsLocked(path string) (bool, error) {
	for _, owner := range OwnerFiles(path) {
		if _, err := os.Stat(owner); err == nil {
			return true, nil
		}
	}

	return tryLock(path)
}

// OwnerFiles returns the lock files spreadsheet applications drop beside an
// open document: "~$name" for Excel and ".~lock.name#" for LibreOffice.
// Excel trims the first two characters of long names.
func OwnerFiles(path string) []string {
	dir, base := filepath.Split(path)
	owners := []string{
		filepath.Join(dir, "~$"+base),
		filepath.Join(dir, ".~lock."+base+"#"),
	}
	if len(base) > 8 {
		owners = append(owners, filepath.Join(dir, "~$"+base[2:]))
	}
	return owners
}
