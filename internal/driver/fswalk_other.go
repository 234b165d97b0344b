//go:build !linux

package driver

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vaultarc/vaultarc/internal/core"
)

// walkedEntry is one filesystem entry discovered by walkSources, paired
// with the source path to read its body from (empty for entries with
// no body: directory/link/special).
type walkedEntry struct {
	entry    *core.Entry
	kind     core.EntryKind
	name     string
	readPath string
}

// walkSources is a reduced, non-Linux fallback: it has no access to
// syscall.Stat_t's Ino/Nlink/Uid/Gid/Rdev fields (their layout is
// platform-specific), so hardlink grouping and device major/minor
// numbers are unavailable here -- every regular file is archived as an
// independent File entry.
func walkSources(job *Job) ([]*walkedEntry, error) {
	var out []*walkedEntry
	for _, root := range job.Config.Sources {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return handleWalkErr(job, path, err)
			}
			info, err := d.Info()
			if err != nil {
				return handleWalkErr(job, path, err)
			}
			kind := entryKindOf(info)
			if !job.passesFilter(kind, path) {
				return nil
			}
			fi := fileInfoFrom(info)
			switch {
			case info.IsDir():
				out = append(out, &walkedEntry{entry: &core.Entry{Kind: core.KindDirectory, Directory: &core.DirectoryEntry{Path: path, Info: fi}}, kind: core.KindDirectory, name: path})
			case info.Mode()&os.ModeSymlink != 0:
				target, err := os.Readlink(path)
				if err != nil {
					return handleWalkErr(job, path, err)
				}
				out = append(out, &walkedEntry{entry: &core.Entry{Kind: core.KindLink, Link: &core.LinkEntry{LinkPath: path, TargetPath: target, Info: fi}}, kind: core.KindLink, name: path})
			case info.Mode()&(os.ModeCharDevice|os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
				out = append(out, &walkedEntry{entry: &core.Entry{Kind: core.KindSpecial, Special: &core.SpecialEntry{Path: path, Info: fi}}, kind: core.KindSpecial, name: path})
			default:
				out = append(out, &walkedEntry{entry: &core.Entry{Kind: core.KindFile, File: &core.FileEntry{Path: path, Info: fi}}, kind: core.KindFile, name: path, readPath: path})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func handleWalkErr(job *Job, path string, err error) error {
	if job.Config.Options.SkipUnreadable {
		job.recordWarning("Warning: skip unreadable '" + path + "'")
		return nil
	}
	return err
}

func entryKindOf(info fs.FileInfo) core.EntryKind {
	switch {
	case info.IsDir():
		return core.KindDirectory
	case info.Mode()&os.ModeSymlink != 0:
		return core.KindLink
	case info.Mode()&(os.ModeCharDevice|os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
		return core.KindSpecial
	default:
		return core.KindFile
	}
}

func fileInfoFrom(info fs.FileInfo) core.FileInfo {
	return core.FileInfo{
		Size:       uint64(info.Size()),
		ModTime:    info.ModTime(),
		AccessTime: info.ModTime(),
		ChangeTime: info.ModTime(),
		Mode:       info.Mode(),
	}
}
