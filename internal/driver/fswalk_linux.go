//go:build linux

package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/log"
)

func statTime(ts syscall.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// walkedEntry is one filesystem entry discovered by walkSources, paired
// with the source path to read its body from (empty for entries with
// no body: directory/link/special).
type walkedEntry struct {
	entry    *core.Entry
	kind     core.EntryKind
	name     string
	readPath string
}

// walkSources enumerates job.Config.Sources for Create, applying the
// job's include/exclude filters per entry and grouping files that share
// an inode into a single HardLinkEntry with multiple Paths -- the
// create-side counterpart of restore.go's VisitHardLink. No third-party
// filesystem walker library is used beyond stdlib filepath.WalkDir;
// hardlink/device-node detection uses syscall.Stat_t directly (see
// DESIGN.md).
func walkSources(job *Job) ([]*walkedEntry, error) {
	var out []*walkedEntry
	type fileRecord struct {
		path string
		info fs.FileInfo
		fi   core.FileInfo
	}
	var files []fileRecord

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
				out = append(out, &walkedEntry{
					entry: &core.Entry{Kind: core.KindDirectory, Directory: &core.DirectoryEntry{Path: path, Info: fi}},
					kind:  core.KindDirectory, name: path,
				})
			case info.Mode()&os.ModeSymlink != 0:
				target, err := os.Readlink(path)
				if err != nil {
					return handleWalkErr(job, path, err)
				}
				out = append(out, &walkedEntry{
					entry: &core.Entry{Kind: core.KindLink, Link: &core.LinkEntry{LinkPath: path, TargetPath: target, Info: fi}},
					kind:  core.KindLink, name: path,
				})
			case info.Mode()&(os.ModeCharDevice|os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
				out = append(out, &walkedEntry{
					entry: &core.Entry{Kind: core.KindSpecial, Special: &core.SpecialEntry{Path: path, Info: fi}},
					kind:  core.KindSpecial, name: path,
				})
			case info.Mode().IsRegular():
				files = append(files, fileRecord{path: path, info: info, fi: fi})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	inodeGroup := map[uint64][]string{}
	inodeRecord := map[uint64]fileRecord{}
	for _, r := range files {
		st, ok := r.info.Sys().(*syscall.Stat_t)
		if ok && st.Nlink > 1 {
			inodeGroup[st.Ino] = append(inodeGroup[st.Ino], r.path)
			if _, seen := inodeRecord[st.Ino]; !seen {
				inodeRecord[st.Ino] = r
			}
			continue
		}
		if !job.passesFilter(core.KindFile, r.path) {
			continue
		}
		out = append(out, &walkedEntry{
			entry:    &core.Entry{Kind: core.KindFile, File: &core.FileEntry{Path: r.path, Info: r.fi}},
			kind:     core.KindFile,
			name:     r.path,
			readPath: r.path,
		})
	}
	for ino, paths := range inodeGroup {
		r := inodeRecord[ino]
		out = append(out, &walkedEntry{
			entry:    &core.Entry{Kind: core.KindHardLink, HardLink: &core.HardLinkEntry{Paths: paths, Info: r.fi}},
			kind:     core.KindHardLink,
			name:     paths[0],
			readPath: r.path,
		})
	}
	return out, nil
}

func handleWalkErr(job *Job, path string, err error) error {
	if job.Config.Options.SkipUnreadable {
		msg := fmt.Sprintf("Warning: skip unreadable '%s' (error: %v)", path, err)
		job.recordWarning(msg)
		if l := log.GetLogger(); l != nil {
			l.Warn(msg)
		}
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
	fi := core.FileInfo{
		Size:       uint64(info.Size()),
		ModTime:    info.ModTime(),
		AccessTime: info.ModTime(),
		ChangeTime: info.ModTime(),
		Mode:       info.Mode(),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		fi.UID = st.Uid
		fi.GID = st.Gid
		fi.AccessTime = statTime(st.Atim)
		fi.ChangeTime = statTime(st.Ctim)
		if info.Mode()&(os.ModeCharDevice|os.ModeDevice) != 0 {
			fi.Major = uint32((st.Rdev >> 8) & 0xfff)
			fi.Minor = uint32(st.Rdev&0xff | ((st.Rdev >> 12) & 0xfff00))
		}
		switch {
		case info.Mode()&os.ModeCharDevice != 0:
			fi.SpecialKind = core.SpecialCharDevice
		case info.Mode()&os.ModeDevice != 0:
			fi.SpecialKind = core.SpecialBlockDevice
		case info.Mode()&os.ModeNamedPipe != 0:
			fi.SpecialKind = core.SpecialFifo
		case info.Mode()&os.ModeSocket != 0:
			fi.SpecialKind = core.SpecialSocket
		}
	}
	return fi
}
