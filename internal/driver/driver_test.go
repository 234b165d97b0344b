package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/config"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/fragment"
	"github.com/vaultarc/vaultarc/internal/storage"
)

// writeTruncatedFileArchive writes a File entry whose declared size
// exceeds the bytes actually written before the eof_data marker, so
// the fragment ledger never reaches completeness for it.
func writeTruncatedFileArchive(t *testing.T, archivePath, name string, declaredSize uint64, partial []byte) {
	t.Helper()
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	defer f.Close()

	wh := archive.NewWriteHandle(f)
	entry := &core.Entry{
		Kind: core.KindFile,
		File: &core.FileEntry{
			Path:     name,
			Info:     core.FileInfo{Size: declaredSize},
			Fragment: core.Fragment{Offset: 0, Size: uint64(len(partial))},
		},
	}
	cur, err := wh.NewEntry(entry, fragment.NewLedger())
	require.NoError(t, err)
	require.NoError(t, cur.WriteData(core.Fragment{Offset: 0, Size: uint64(len(partial))}, partial))
	require.NoError(t, cur.WriteData(core.Fragment{Offset: uint64(len(partial)), Size: 0}, nil))
	require.NoError(t, cur.CloseEntry())
}

func TestRunReportsIncompleteEntryAtEndOfOperation(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.bin")
	name := "dir/report.txt"
	writeTruncatedFileArchive(t, archivePath, name, 11, []byte("hello"))

	st := storage.NewLocal(dir)
	job := newTestJob(t, "test", st, []string{"archive.bin"})

	res := Run(context.Background(), job)

	require.ErrorIs(t, res.FailError, core.ErrEntryIncomplete)
	require.Len(t, res.Incomplete, 1)
	assert.Equal(t, name, res.Incomplete[0])
}

func TestRunSkipsIncompleteCheckWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.bin")
	name := "dir/report.txt"
	writeTruncatedFileArchive(t, archivePath, name, 11, []byte("hello"))

	st := storage.NewLocal(dir)
	job := newTestJob(t, "test", st, []string{"archive.bin"})
	job.Config.Options.NoFragmentsCheck = true

	res := Run(context.Background(), job)

	assert.NoError(t, res.FailError)
	assert.Empty(t, res.Incomplete)
}
