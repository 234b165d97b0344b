package storage

import (
	"io"
	"os"
	"testing"
)

func TestLocalWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	w, err := l.OpenWrite("sub/file.txt")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := l.OpenRead("sub/file.txt")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q want %q", data, "hello")
	}
}

func TestLocalDirectoryList(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	if err := os.WriteFile(dir+"/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/b.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dl, err := l.OpenDirectoryList(".")
	if err != nil {
		t.Fatalf("OpenDirectoryList: %v", err)
	}
	defer dl.CloseDirectoryList()

	var names []string
	for {
		name, err := dl.ReadDirectoryList()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2: %v", len(names), names)
	}
}

func TestLocalRename(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	w, _ := l.OpenWrite("old.tmp")
	w.Write([]byte("data"))
	w.Close()

	if err := l.Rename("old.tmp", "new.archive"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(dir + "/new.archive"); err != nil {
		t.Fatalf("expected renamed file to exist: %v", err)
	}
}
