//go:build !linux

package driver

import (
	"fmt"
	"runtime"

	"github.com/vaultarc/vaultarc/internal/core"
)

func mknod(path string, info core.FileInfo) error {
	return fmt.Errorf("driver: special-file restore is not supported on %s", runtime.GOOS)
}
