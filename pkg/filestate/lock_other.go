//go:build !unix

package filestate

import (
	"errors"
	"io/fs"
	"os"
)

// tryLock falls back to an exclusive open attempt where flock is missing.
func tryLock(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return true, nil
	}
	f.Close()
	return false, nil
}
