package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
)

// restoreVisitor implements the Restore operation: decode each entry
// body and materialize it onto the filesystem at its destination path
// (strip-count-then-join), re-creating directories, links, hardlinks
// and special nodes.
//
// seen tracks which entry names this visitor has already written to
// in this run, so the overwrite_files gate only applies to a name's
// first fragment -- later fragments of the same file are always
// allowed to land (see DESIGN.md's "restore overwrite policy" note).
// It also records each (name, fragment range) pair restored, so an
// exact duplicate of a range is skipped.
type restoreVisitor struct {
	job  *Job
	seen sync.Map // name, or name+"\x00"+range -> struct{}
}

func (r *restoreVisitor) destPath(name string) string {
	opts := r.job.Config.Options
	return archive.DestinationPath(opts.DestinationDir, name, opts.StripCount)
}

func (r *restoreVisitor) firstTouch(name string) bool {
	_, loaded := r.seen.LoadOrStore(name, struct{}{})
	return !loaded
}

// mayWrite reports whether the fragment at [frag.Offset, frag.End())
// of name should be materialized: a duplicate of a range already
// restored this run is silently skipped (re-written harmlessly would
// just waste I/O); a first-time fragment of a name whose destination
// already exists on disk is skipped (with a warning) unless
// overwrite_files is set.
func (r *restoreVisitor) mayWrite(name, path string, frag core.Fragment) bool {
	// The job ledger already holds this fragment's range once its body
	// has been read, so duplicates are tracked here instead.
	rangeKey := fmt.Sprintf("%s\x00%d-%d", name, frag.Offset, frag.End())
	if _, dup := r.seen.LoadOrStore(rangeKey, struct{}{}); dup {
		return false
	}
	if r.firstTouch(name) && !r.job.Config.Options.OverwriteFiles {
		if _, err := os.Stat(path); err == nil {
			r.job.recordWarning(fmt.Sprintf("Warning: '%s' already exists, not overwritten", path))
			return false
		}
	}
	return true
}

func (r *restoreVisitor) applyMeta(path string, info core.FileInfo) {
	opts := r.job.Config.Options
	uid, gid := info.UID, info.GID
	if opts.OwnerUID != nil {
		uid = *opts.OwnerUID
	}
	if opts.OwnerGID != nil {
		gid = *opts.OwnerGID
	}
	if err := os.Chown(path, int(uid), int(gid)); err != nil {
		r.warnf("chown '%s' (error: %v)", path, err)
	}
	if err := os.Chmod(path, info.Mode); err != nil {
		r.warnf("chmod '%s' (error: %v)", path, err)
	}
	if err := os.Chtimes(path, info.AccessTime, info.ModTime); err != nil {
		r.warnf("chtimes '%s' (error: %v)", path, err)
	}
}

func (r *restoreVisitor) warnf(format string, args ...interface{}) {
	msg := "Warning: " + fmt.Sprintf(format, args...)
	r.job.recordWarning(msg)
	if l := log.GetLogger(); l != nil {
		l.Warn(msg)
	}
}

func (r *restoreVisitor) report(name string, err error) {
	l := log.GetLogger()
	if l == nil {
		return
	}
	if err != nil {
		l.Info(fmt.Sprintf("Restore file '%s'...FAIL!", name))
		return
	}
	l.Info(fmt.Sprintf("Restore file '%s'...OK", name))
}

func (r *restoreVisitor) VisitFile(w *Worker, e *core.FileEntry, cur *archive.Cursor) error {
	path := r.destPath(e.Path)
	body, err := readEntryBody(w, e.DeltaSourceName, e.Crypt, cur)
	if err != nil {
		r.report(e.Path, err)
		return err
	}
	err = r.writeFragment(path, e.Fragment, e.Info, body, e.Path)
	r.report(e.Path, err)
	return err
}

func (r *restoreVisitor) VisitImage(w *Worker, e *core.ImageEntry, cur *archive.Cursor) error {
	path := r.destPath(e.DevicePath)
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		r.report(e.DevicePath, err)
		return err
	}
	frag := e.ByteFragment()
	info := core.FileInfo{Size: e.Device.TotalSize, Mode: 0644}
	err = r.writeImageFragment(path, frag, info, body, e.DevicePath, e.FileSystemKind)
	r.report(e.DevicePath, err)
	return err
}

func (r *restoreVisitor) VisitHardLink(w *Worker, e *core.HardLinkEntry, cur *archive.Cursor) error {
	body, err := readEntryBody(w, "", e.Crypt, cur)
	if err != nil {
		r.report(e.Paths[0], err)
		return err
	}
	primary := r.destPath(e.Paths[0])
	if err := r.writeFragment(primary, e.Fragment, e.Info, body, e.Paths[0]); err != nil {
		r.report(e.Paths[0], err)
		return err
	}
	if r.job.Config.Options.DryRun {
		r.report(e.Paths[0], nil)
		return nil
	}
	for _, p := range e.Paths[1:] {
		linkPath := r.destPath(p)
		if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
			r.report(p, err)
			return err
		}
		if r.job.Config.Options.OverwriteFiles {
			os.Remove(linkPath)
		}
		if err := os.Link(primary, linkPath); err != nil {
			r.report(p, err)
			return err
		}
	}
	r.report(e.Paths[0], nil)
	return nil
}

// writeFragment creates parent directories, writes body at frag's
// offset within path, and (once the ledger reports the whole logical
// entry complete) truncates to the declared size and applies ownership
// and permission metadata.
func (r *restoreVisitor) writeFragment(path string, frag core.Fragment, info core.FileInfo, body []byte, name string) error {
	if r.job.Config.Options.DryRun {
		return nil
	}
	if !r.mayWrite(name, path, frag) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, info.Mode.Perm()|0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(body, int64(frag.Offset)); err != nil {
		return err
	}
	if r.job.ledger.IsComplete(name) {
		if err := f.Truncate(int64(info.Size)); err != nil {
			return err
		}
		f.Close()
		r.applyMeta(path, info)
	}
	return nil
}

// writeImageFragment is writeFragment's Image-entry counterpart: unless
// raw_images is set, it skips WriteAt for any block-aligned run of body
// bytes that looks like unallocated free space, leaving the
// corresponding hole in the destination file sparse instead of copying
// free-space filler byte for byte.
func (r *restoreVisitor) writeImageFragment(path string, frag core.Fragment, info core.FileInfo, body []byte, name, fsKind string) error {
	if r.job.Config.Options.DryRun {
		return nil
	}
	if !r.mayWrite(name, path, frag) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, info.Mode.Perm()|0600)
	if err != nil {
		return err
	}
	defer f.Close()

	rawImages := r.job.Config.Options.RawImages
	blockSize := r.job.Config.Options.BlockSize
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
		if _, err := f.WriteAt(block, int64(frag.Offset+off)); err != nil {
			return err
		}
	}

	if r.job.ledger.IsComplete(name) {
		if err := f.Truncate(int64(info.Size)); err != nil {
			return err
		}
		f.Close()
		r.applyMeta(path, info)
	}
	return nil
}

func (r *restoreVisitor) VisitDirectory(w *Worker, e *core.DirectoryEntry) error {
	path := r.destPath(e.Path)
	if r.job.Config.Options.DryRun {
		r.report(path, nil)
		return nil
	}
	if err := os.MkdirAll(path, e.Info.Mode.Perm()|0700); err != nil {
		r.report(path, err)
		return err
	}
	r.applyMeta(path, e.Info)
	r.report(path, nil)
	return nil
}

func (r *restoreVisitor) VisitLink(w *Worker, e *core.LinkEntry) error {
	path := r.destPath(e.LinkPath)
	if r.job.Config.Options.DryRun {
		r.report(path, nil)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.report(path, err)
		return err
	}
	if r.job.Config.Options.OverwriteFiles {
		os.Remove(path)
	}
	if err := os.Symlink(e.TargetPath, path); err != nil && !os.IsExist(err) {
		r.report(path, err)
		return err
	}
	r.report(path, nil)
	return nil
}

func (r *restoreVisitor) VisitSpecial(w *Worker, e *core.SpecialEntry) error {
	path := r.destPath(e.Path)
	if r.job.Config.Options.DryRun {
		r.report(path, nil)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.report(path, err)
		return err
	}
	if err := mknod(path, e.Info); err != nil {
		r.report(path, err)
		return err
	}
	r.applyMeta(path, e.Info)
	r.report(path, nil)
	return nil
}
