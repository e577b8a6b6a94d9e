package layout

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteAtomic writes data to path by writing to a sibling temp file
// and renaming it into place, mirroring the teacher's
// write-temp-then-rename idiom for HEAD/branch files (now generalized
// over afero.Fs instead of raw os calls).
func WriteAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	f, err := fs.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return err
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadFile reads the full contents of path, returning (nil, os error)
// if it does not exist.
func ReadFile(fs afero.Fs, path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}
