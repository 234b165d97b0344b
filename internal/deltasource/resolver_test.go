package deltasource

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/codec"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/storage"
)

func writeTestArchive(t *testing.T, path string, name string, data []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	h := archive.NewWriteHandle(f)
	entry := &core.Entry{Kind: core.KindFile, File: &core.FileEntry{Path: name, Info: core.FileInfo{Size: uint64(len(data))}}}
	cur, err := h.NewEntry(entry, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := cur.WriteData(core.Fragment{Offset: 0, Size: uint64(len(data))}, data); err != nil {
		t.Fatal(err)
	}
	if err := cur.WriteData(core.Fragment{Offset: uint64(len(data)), Size: 0}, nil); err != nil {
		t.Fatal(err)
	}
	cur.CloseEntry()
}

func TestResolverOpenFindsEntryAcrossCandidates(t *testing.T) {
	dir := t.TempDir()
	archivePath := dir + "/base.archive"
	writeTestArchive(t, archivePath, "data/source.bin", []byte("source content"))

	st := storage.NewLocal(dir)
	r := NewResolver(dir, st, "none", 0, nil)

	h, err := r.Open(context.Background(), "data/source.bin", []Candidate{{StorageName: "base.archive"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	block, err := h.GetBlock(0, len("source content"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(block, []byte("source content")) {
		t.Fatalf("got %q want %q", block, "source content")
	}
}

// writeCompressedTestArchive writes a single file entry whose body was
// compressed with the "zip" (flate) algorithm, mirroring what Create
// would produce for a job with compression enabled.
func writeCompressedTestArchive(t *testing.T, path string, name string, plaintext []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	stack, err := codec.NewEncodeStack(codec.Options{CompressAlgorithm: "zip", CompressLevel: 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := stack.Feed(plaintext); err != nil {
		t.Fatal(err)
	}
	encoded := stack.Result()

	h := archive.NewWriteHandle(f)
	entry := &core.Entry{Kind: core.KindFile, File: &core.FileEntry{Path: name, Info: core.FileInfo{Size: uint64(len(plaintext))}}}
	cur, err := h.NewEntry(entry, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := cur.WriteData(core.Fragment{Offset: 0, Size: uint64(len(plaintext))}, encoded); err != nil {
		t.Fatal(err)
	}
	if err := cur.WriteData(core.Fragment{Offset: uint64(len(plaintext)), Size: 0}, nil); err != nil {
		t.Fatal(err)
	}
	cur.CloseEntry()
}

func TestResolverDecodesCompressedCandidate(t *testing.T) {
	dir := t.TempDir()
	archivePath := dir + "/base.archive"
	plaintext := []byte("source content that compresses down to something smaller on the wire")
	writeCompressedTestArchive(t, archivePath, "data/source.bin", plaintext)

	st := storage.NewLocal(dir)
	r := NewResolver(dir, st, "zip", 6, nil)

	h, err := r.Open(context.Background(), "data/source.bin", []Candidate{{StorageName: "base.archive"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	block, err := h.GetBlock(0, len(plaintext))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(block, plaintext) {
		t.Fatalf("scratch copy not decoded: got %q want %q", block, plaintext)
	}
}

func TestResolverOpenFallsThroughToNotFound(t *testing.T) {
	dir := t.TempDir()
	st := storage.NewLocal(dir)
	r := NewResolver(dir, st, "none", 0, nil)

	_, err := r.Open(context.Background(), "missing.bin", []Candidate{{StorageName: "no-such-archive"}})
	if err == nil {
		t.Fatal("expected error when no candidate resolves")
	}
}
