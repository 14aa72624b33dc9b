//go:build !windows

package retouch

import (
	"os"

	"github.com/google/renameio"
)

// writeFileAtomic replaces path with data so readers never see a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
