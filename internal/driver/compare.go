package driver

import (
	"fmt"
	"os"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
)

// compareVisitor implements the Compare operation: read
// each entry body, read the corresponding filesystem bytes, and
// compare byte-for-byte within the entry's fragment window. The first
// differing byte is reported with its absolute offset within the
// logical file.
type compareVisitor struct{ job *Job }

func (c *compareVisitor) compareFragment(path string, frag core.Fragment, declaredSize uint64, body []byte) error {
	fi, err := os.Stat(path)
	if err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}
	if uint64(fi.Size()) != declaredSize {
		return c.fail(path, fmt.Errorf("%w: '%s' size mismatch (archive %d, disk %d)",
			core.ErrEntriesDiffer, path, declaredSize, fi.Size()))
	}

	f, err := os.Open(path)
	if err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}
	defer f.Close()

	live := make([]byte, len(body))
	if _, err := f.ReadAt(live, int64(frag.Offset)); err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}

	if idx := firstDiff(body, live); idx >= 0 {
		absolute := frag.Offset + uint64(idx)
		c.job.recordDifference(path, absolute)
		c.report(path, false)
		return fmt.Errorf("%w: '%s' differ at offset %d", core.ErrEntriesDiffer, path, absolute)
	}
	c.report(path, true)
	return nil
}

func firstDiff(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}

func (c *compareVisitor) fail(path string, err error) error {
	c.report(path, false)
	return err
}

func (c *compareVisitor) VisitFile(w *Worker, e *core.FileEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, e.DeltaSourceName, e.Crypt, cur)
	if err != nil {
		return c.fail(e.Path, err)
	}
	return c.compareFragment(e.Path, e.Fragment, e.Info.Size, body)
}

func (c *compareVisitor) VisitImage(w *Worker, e *core.ImageEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		return c.fail(e.DevicePath, err)
	}
	frag := e.ByteFragment()
	return c.compareImageFragment(e.DevicePath, frag, e.Device.TotalSize, body, e.FileSystemKind)
}

// compareImageFragment is compareFragment's Image-entry counterpart:
// unless raw_images is set, block-aligned runs of body bytes that look
// like unallocated free space are skipped rather than compared, since
// the live disk's free blocks are free to have been reused for
// something else since the image was taken.
func (c *compareVisitor) compareImageFragment(path string, frag core.Fragment, declaredSize uint64, body []byte, fsKind string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}
	if uint64(fi.Size()) != declaredSize {
		return c.fail(path, fmt.Errorf("%w: '%s' size mismatch (archive %d, disk %d)",
			core.ErrEntriesDiffer, path, declaredSize, fi.Size()))
	}

	f, err := os.Open(path)
	if err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}
	defer f.Close()

	live := make([]byte, len(body))
	if _, err := f.ReadAt(live, int64(frag.Offset)); err != nil {
		return c.fail(path, fmt.Errorf("%w: %v", core.ErrEntriesDiffer, err))
	}

	rawImages := c.job.Config.Options.RawImages
	blockSize := c.job.Config.Options.BlockSize
	if blockSize == 0 {
		blockSize = 512
	}
	for off := uint64(0); off < uint64(len(body)); off += blockSize {
		end := off + blockSize
		if end > uint64(len(body)) {
			end = uint64(len(body))
		}
		block := body[off:end]
		if !blockIsUsed(fsKind, rawImages, block) {
			continue
		}
		if idx := firstDiff(block, live[off:end]); idx >= 0 {
			absolute := frag.Offset + off + uint64(idx)
			c.job.recordDifference(path, absolute)
			c.report(path, false)
			return fmt.Errorf("%w: '%s' differ at offset %d", core.ErrEntriesDiffer, path, absolute)
		}
	}
	c.report(path, true)
	return nil
}

func (c *compareVisitor) VisitHardLink(w *Worker, e *core.HardLinkEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		return c.fail(e.Paths[0], err)
	}
	for _, p := range e.Paths {
		if err := c.compareFragment(p, e.Fragment, e.Info.Size, body); err != nil {
			return err
		}
	}
	return nil
}

// VisitDirectory/VisitLink/VisitSpecial: Compare checks content only,
// not permissions or timestamps -- directories and special nodes report
// OK once the entry passes the include/exclude filter, and a link
// reports OK only if its live target path equals the archived one.
func (c *compareVisitor) VisitDirectory(w *Worker, e *core.DirectoryEntry) error {
	c.report(e.Path, true)
	return nil
}

func (c *compareVisitor) VisitLink(w *Worker, e *core.LinkEntry) error {
	target, err := os.Readlink(e.LinkPath)
	if err != nil || target != e.TargetPath {
		return c.fail(e.LinkPath, fmt.Errorf("%w: '%s' link target mismatch", core.ErrEntriesDiffer, e.LinkPath))
	}
	c.report(e.LinkPath, true)
	return nil
}

func (c *compareVisitor) VisitSpecial(w *Worker, e *core.SpecialEntry) error {
	c.report(e.Path, true)
	return nil
}

func (c *compareVisitor) report(name string, ok bool) {
	l := log.GetLogger()
	if l == nil {
		return
	}
	if ok {
		l.Info(fmt.Sprintf("Compare file '%s'...OK", name))
	} else {
		l.Info(fmt.Sprintf("Compare file '%s'...FAIL!", name))
	}
}
