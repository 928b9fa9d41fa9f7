// Package files provides the file helpers used by the logger's file
// output.
package files

import (
	"io"
	"os"
	"path/filepath"
)

// DefaultPerm is the file mode used when no permission is supplied.
const DefaultPerm os.FileMode = 0o644

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}

	return !info.IsDir()
}

// CreateAndOpenFile opens path/name for appending, creating it when it
// does not exist yet. The optional perm overrides DefaultPerm for a
// newly created file.
func CreateAndOpenFile(path string, name string, perm ...os.FileMode) (io.Writer, error) {
	mode := DefaultPerm
	if len(perm) != 0 {
		mode = perm[0]
	}

	return os.OpenFile(filepath.Join(path, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
}
