package driver

import (
	"fmt"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
)

// testVisitor implements the Test operation: read each
// entry body and discard it, checking only that decompression and
// decryption succeed end-to-end.
type testVisitor struct{ job *Job }

func (t *testVisitor) VisitFile(w *Worker, e *core.FileEntry, cur *archive.Cursor) error {
	_, err := readEntryBody(w, e.DeltaSourceName, e.Crypt, cur)
	t.report(e.Path, err)
	return err
}

func (t *testVisitor) VisitImage(w *Worker, e *core.ImageEntry, cur *archive.Cursor) error {
	_, err := readEntryBody(w, "", e.Crypt, cur)
	t.report(e.DevicePath, err)
	return err
}

func (t *testVisitor) VisitHardLink(w *Worker, e *core.HardLinkEntry, cur *archive.Cursor) error {
	_, err := readEntryBody(w, "", e.Crypt, cur)
	t.report(e.Paths[0], err)
	return err
}

func (t *testVisitor) VisitDirectory(w *Worker, e *core.DirectoryEntry) error {
	t.report(e.Path, nil)
	return nil
}

func (t *testVisitor) VisitLink(w *Worker, e *core.LinkEntry) error {
	t.report(e.LinkPath, nil)
	return nil
}

func (t *testVisitor) VisitSpecial(w *Worker, e *core.SpecialEntry) error {
	t.report(e.Path, nil)
	return nil
}

func (t *testVisitor) report(name string, err error) {
	l := log.GetLogger()
	if l == nil {
		return
	}
	if err != nil {
		l.Info(fmt.Sprintf("Test file '%s'...FAIL!", name))
		return
	}
	l.Info(fmt.Sprintf("Test file '%s'...OK", name))
}
