package driver

import (
	"bytes"
	"sync"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/codec"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/storage"
)

// convertVisitor implements the Convert operation: decode
// each entry through a read-side codec stack and re-encode it through a
// write-side stack built from the job's (possibly different) compress/
// crypt options, wired back-to-back without ever touching the
// filesystem. Output entries are written to a temporary archive that is
// atomically promoted over the original name once the source archive
// is fully consumed -- storage.Local.Rename is the only promotion
// strategy that can't leave a half-written archive visible under the
// final name.
//
// Convert performs no delta re-encoding of its own: the source entry is
// fully decoded to plaintext (following whatever delta source it
// originally named), and the rewritten entry carries no delta source --
// re-chaining a delta relationship across a convert would tie the new
// archive's validity to the old one's delta source outliving it, which
// the convert operation does not ask for.
//
// All writes to the shared output archive.Handle are serialized by mu;
// the (CPU-bound) decode/encode work that produces the bytes happens
// outside the lock.
type convertVisitor struct {
	job *Job

	mu        sync.Mutex
	out       *archive.Handle
	w         storage.Writer
	tmpName   string
	finalName string
}

func newConvertVisitor(job *Job) (*convertVisitor, error) {
	return &convertVisitor{job: job}, nil
}

func (c *convertVisitor) BeginArchive(storageName string) error {
	tmp, err := c.job.Storage.GetTmpFileName("vaultarc-convert-")
	if err != nil {
		return err
	}
	w, err := c.job.Storage.OpenWrite(tmp)
	if err != nil {
		return err
	}
	c.tmpName = tmp
	c.finalName = storageName
	c.w = w
	c.out = archive.NewWriteHandle(w)
	return nil
}

func (c *convertVisitor) EndArchive(storageName string) error {
	if c.w == nil {
		return nil
	}
	if err := c.w.Close(); err != nil {
		return err
	}
	return c.job.Storage.Rename(c.tmpName, c.finalName)
}

// emitBody writes one decoded-then-reencoded entry+body, discarding its
// fragment ledger node once complete -- restore/convert free nodes
// early to bound memory.
func (c *convertVisitor) emitBody(name string, e *core.Entry, frag core.Fragment, stack *codec.Stack, plaintext []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, err := c.out.NewEntry(e, c.job.ledger)
	if err != nil {
		return err
	}
	src := bytes.NewReader(plaintext)
	if err := writeEntryBody(c.job, name, uint64(len(plaintext)), stack, src, frag, cur); err != nil {
		return err
	}
	if err := cur.CloseEntry(); err != nil {
		return err
	}
	if c.job.ledger.IsComplete(name) {
		c.job.ledger.Discard(name)
	}
	return nil
}

func (c *convertVisitor) emitHeaderOnly(e *core.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, err := c.out.NewEntry(e, c.job.ledger)
	if err != nil {
		return err
	}
	return cur.CloseEntry()
}

func (c *convertVisitor) VisitFile(w *Worker, e *core.FileEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, e.DeltaSourceName, e.Crypt, cur)
	if err != nil {
		return err
	}
	stack, crypt, err := encodeStackFor(c.job, nil)
	if err != nil {
		return err
	}
	out := &core.FileEntry{Path: e.Path, Info: e.Info, Fragment: e.Fragment, Crypt: crypt}
	return c.emitBody(e.Path, &core.Entry{Kind: core.KindFile, File: out}, e.Fragment, stack, body)
}

func (c *convertVisitor) VisitImage(w *Worker, e *core.ImageEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		return err
	}
	stack, crypt, err := encodeStackFor(c.job, nil)
	if err != nil {
		return err
	}
	out := &core.ImageEntry{
		DevicePath:     e.DevicePath,
		Device:         e.Device,
		FragmentBlocks: e.FragmentBlocks,
		FileSystemKind: e.FileSystemKind,
		Crypt:          crypt,
	}
	return c.emitBody(e.DevicePath, &core.Entry{Kind: core.KindImage, Image: out}, e.ByteFragment(), stack, body)
}

func (c *convertVisitor) VisitHardLink(w *Worker, e *core.HardLinkEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		return err
	}
	stack, crypt, err := encodeStackFor(c.job, nil)
	if err != nil {
		return err
	}
	out := &core.HardLinkEntry{Paths: append([]string(nil), e.Paths...), Info: e.Info, Fragment: e.Fragment, Crypt: crypt}
	name := e.Paths[0]
	return c.emitBody(name, &core.Entry{Kind: core.KindHardLink, HardLink: out}, e.Fragment, stack, body)
}

func (c *convertVisitor) VisitDirectory(w *Worker, e *core.DirectoryEntry) error {
	out := &core.DirectoryEntry{Path: e.Path, Info: e.Info}
	return c.emitHeaderOnly(&core.Entry{Kind: core.KindDirectory, Directory: out})
}

func (c *convertVisitor) VisitLink(w *Worker, e *core.LinkEntry) error {
	out := &core.LinkEntry{LinkPath: e.LinkPath, TargetPath: e.TargetPath, Info: e.Info}
	return c.emitHeaderOnly(&core.Entry{Kind: core.KindLink, Link: out})
}

func (c *convertVisitor) VisitSpecial(w *Worker, e *core.SpecialEntry) error {
	out := &core.SpecialEntry{Path: e.Path, Info: e.Info}
	return c.emitHeaderOnly(&core.Entry{Kind: core.KindSpecial, Special: out})
}
