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

// writeSingleFileArchive builds a minimal archive containing one
// KindFile entry naming livePath, with body content.
func writeSingleFileArchive(t *testing.T, archivePath, livePath string, content []byte) {
	t.Helper()
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	defer f.Close()

	wh := archive.NewWriteHandle(f)
	entry := &core.Entry{
		Kind: core.KindFile,
		File: &core.FileEntry{
			Path:     livePath,
			Info:     core.FileInfo{Size: uint64(len(content))},
			Fragment: core.Fragment{Offset: 0, Size: uint64(len(content))},
		},
	}
	cur, err := wh.NewEntry(entry, fragment.NewLedger())
	require.NoError(t, err)
	require.NoError(t, cur.WriteData(core.Fragment{Offset: 0, Size: uint64(len(content))}, content))
	require.NoError(t, cur.WriteData(core.Fragment{Offset: uint64(len(content)), Size: 0}, nil))
	require.NoError(t, cur.CloseEntry())
}

func newTestJob(t *testing.T, operation string, st storage.Storage, storages []string) *Job {
	t.Helper()
	cfg := &config.JobConfig{
		Operation: operation,
		Storages:  storages,
		Compress:  config.CompressConfig{Algorithm: "none"},
	}
	global := &config.GlobalConfig{TempDir: t.TempDir(), MaxThreads: 1}
	job, err := NewJob(operation, cfg, global, st, nil, nil)
	require.NoError(t, err)
	return job
}

func TestCompareReportsFirstDifferingOffset(t *testing.T) {
	dir := t.TempDir()
	livePath := filepath.Join(dir, "live.txt")
	require.NoError(t, os.WriteFile(livePath, []byte("hello xorld"), 0o644))

	archivePath := filepath.Join(dir, "archive.bin")
	writeSingleFileArchive(t, archivePath, livePath, []byte("hello world"))

	st := storage.NewLocal(dir)
	job := newTestJob(t, "compare", st, []string{"archive.bin"})

	res := Run(context.Background(), job)

	require.ErrorIs(t, res.FailError, core.ErrEntriesDiffer)
	require.Len(t, res.Differences, 1)
	assert.Equal(t, livePath, res.Differences[0].Name)
	assert.Equal(t, uint64(6), res.Differences[0].Offset)
}

func TestCompareMatchingContentReportsNoDifference(t *testing.T) {
	dir := t.TempDir()
	livePath := filepath.Join(dir, "live.txt")
	require.NoError(t, os.WriteFile(livePath, []byte("hello world"), 0o644))

	archivePath := filepath.Join(dir, "archive.bin")
	writeSingleFileArchive(t, archivePath, livePath, []byte("hello world"))

	st := storage.NewLocal(dir)
	job := newTestJob(t, "compare", st, []string{"archive.bin"})

	res := Run(context.Background(), job)

	assert.NoError(t, res.FailError)
	assert.Empty(t, res.Differences)
}
