//go:build linux

package driver

import (
	"os"
	"syscall"

	"github.com/vaultarc/vaultarc/internal/core"
)

// mknod creates a device/fifo/socket node at path as recorded by info.
// No third-party device-node library is a good fit for this, so this
// is a direct syscall.Mknod call -- see DESIGN.md.
func mknod(path string, info core.FileInfo) error {
	var mode uint32
	switch info.SpecialKind {
	case core.SpecialCharDevice:
		mode = syscall.S_IFCHR
	case core.SpecialBlockDevice:
		mode = syscall.S_IFBLK
	case core.SpecialFifo:
		mode = syscall.S_IFIFO
	case core.SpecialSocket:
		mode = syscall.S_IFSOCK
	default:
		mode = syscall.S_IFREG
	}
	mode |= uint32(info.Mode.Perm())
	dev := int(syscall.Mkdev(info.Major, info.Minor))
	if err := syscall.Mknod(path, mode, dev); err != nil {
		if err == syscall.EEXIST {
			return nil
		}
		return &os.PathError{Op: "mknod", Path: path, Err: err}
	}
	return nil
}
