package driver

import (
	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/pattern"
)

// Visitor is the EntryVisitor: one method per ArchiveEntryKind,
// implemented once per operation and dispatched via a type switch over
// core.Entry.Kind rather than virtual dispatch, since the entry-kind
// set is closed and stable. File/Image/HardLink carry a body (the
// Cursor); Directory/Link/Special do not.
type Visitor interface {
	VisitFile(w *Worker, e *core.FileEntry, cur *archive.Cursor) error
	VisitImage(w *Worker, e *core.ImageEntry, cur *archive.Cursor) error
	VisitDirectory(w *Worker, e *core.DirectoryEntry) error
	VisitLink(w *Worker, e *core.LinkEntry) error
	VisitHardLink(w *Worker, e *core.HardLinkEntry, cur *archive.Cursor) error
	VisitSpecial(w *Worker, e *core.SpecialEntry) error
}

// dispatch routes one decoded entry to the matching Visitor method: a
// single type switch on entry kind, shared by every operation.
func dispatch(w *Worker, v Visitor, e *core.Entry, cur *archive.Cursor) error {
	switch e.Kind {
	case core.KindFile:
		return v.VisitFile(w, e.File, cur)
	case core.KindImage:
		return v.VisitImage(w, e.Image, cur)
	case core.KindDirectory:
		return v.VisitDirectory(w, e.Directory)
	case core.KindLink:
		return v.VisitLink(w, e.Link)
	case core.KindHardLink:
		return v.VisitHardLink(w, e.HardLink, cur)
	case core.KindSpecial:
		return v.VisitSpecial(w, e.Special)
	case core.KindMeta, core.KindSignature:
		return nil
	default:
		return nil
	}
}

// included reports whether name passes job's include lists for kind:
// it matches if the list is empty or any pattern in it matches -- a
// kind with no configured include list at all is treated as an empty
// list, i.e. always included.
func (j *Job) included(kind core.EntryKind, name string) bool {
	had := false
	for _, lst := range j.includeLists {
		if lst.Kind != kind {
			continue
		}
		had = true
		if lst.Match(name, pattern.Any) {
			return true
		}
	}
	return !had
}

// excluded reports whether name matches any configured exclude pattern.
func (j *Job) excluded(name string) bool {
	if j.excludeList == nil {
		return false
	}
	return j.excludeList.Match(name, pattern.Any)
}

// passesFilter combines included/excluded into the single admit/reject
// decision the driver applies before dispatching an entry to a visitor.
func (j *Job) passesFilter(kind core.EntryKind, name string) bool {
	if j.excluded(name) {
		return false
	}
	return j.included(kind, name)
}
