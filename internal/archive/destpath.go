package archive

import (
	"path"
	"strings"
)

// DestinationPath derives the on-disk restore path for an archived
// entry name: join destDir with the entry name after stripping the
// first stripCount path components, saturating at the full name
// (stripping more components than the name has yields just the base
// name, never an error or an empty/relative escape).
func DestinationPath(destDir, entryName string, stripCount int) string {
	clean := strings.TrimPrefix(path.Clean(entryName), "/")
	if clean == "." || clean == "" {
		return destDir
	}

	parts := strings.Split(clean, "/")
	if stripCount >= len(parts) {
		stripCount = len(parts) - 1
	}
	if stripCount < 0 {
		stripCount = 0
	}
	remainder := strings.Join(parts[stripCount:], "/")
	return path.Join(destDir, remainder)
}
