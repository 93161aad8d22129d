package sandbox

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// File permission constants for the virtual filesystem.
const (
	dirPermission  = 0o755
	filePermission = 0o644
)

// WriteFile stores content at path inside the runtime's private filesystem,
// creating the parent directory chain as needed. Repeat writes overwrite in
// place. Errors are wrapped naming the path so per-file staging failures
// read cleanly in request logs.
func (r *Runtime) WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := r.fs.MkdirAll(dir, dirPermission); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := afero.WriteFile(r.fs, path, []byte(content), filePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the content stored at path, or a wrapped error naming it.
func (r *Runtime) ReadFile(path string) (string, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
