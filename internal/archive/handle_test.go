package archive

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/fragment"
)

func TestWriteReadFileEntryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ledgerW := fragment.NewLedger()

	wh := NewWriteHandle(&buf)
	entry := &core.Entry{
		Kind: core.KindFile,
		File: &core.FileEntry{
			Path: "dir/report.txt",
			Info: core.FileInfo{Size: 10, ModTime: time.Unix(1000, 0), Mode: os.FileMode(0o644)},
		},
	}
	cursor, err := wh.NewEntry(entry, ledgerW)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if err := cursor.WriteData(core.Fragment{Offset: 0, Size: 10}, []byte("0123456789")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := cursor.WriteData(core.Fragment{Offset: 10, Size: 0}, nil); err != nil {
		t.Fatalf("WriteData eof marker: %v", err)
	}
	if err := cursor.CloseEntry(); err != nil {
		t.Fatalf("CloseEntry: %v", err)
	}
	if !ledgerW.IsComplete("dir/report.txt") {
		t.Fatal("expected ledger to report the file complete after write")
	}

	rh := NewReadHandle(bytes.NewReader(buf.Bytes()))
	ledgerR := fragment.NewLedger()
	kind, err := rh.PeekNextKind()
	if err != nil {
		t.Fatalf("PeekNextKind: %v", err)
	}
	if kind != core.KindFile {
		t.Fatalf("got kind %v, want KindFile", kind)
	}

	gotEntry, cur, err := rh.ReadEntry(ledgerR)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if gotEntry.File.Path != "dir/report.txt" || gotEntry.File.Info.Size != 10 {
		t.Fatalf("decoded entry mismatch: %+v", gotEntry.File)
	}

	var gotData []byte
	for !cur.EOFData() {
		_, data, err := cur.ReadData()
		if err != nil {
			t.Fatalf("ReadData: %v", err)
		}
		gotData = append(gotData, data...)
	}
	if !bytes.Equal(gotData, []byte("0123456789")) {
		t.Fatalf("got data %q, want %q", gotData, "0123456789")
	}
	if !ledgerR.IsComplete("dir/report.txt") {
		t.Fatal("expected ledger to report the file complete after read")
	}
	if err := cur.CloseEntry(); err != nil {
		t.Fatalf("CloseEntry on read side: %v", err)
	}
}
