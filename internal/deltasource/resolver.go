// Package deltasource resolves a file entry's delta-source candidate
// list into a seekable local handle: for each (candidate storage, entry
// name) pair the matching entry is lazily restored once into a scratch
// file in the job's scratch directory, then reused for later lookups of
// that same entry name. The candidate storage itself is not copied
// locally; it is read again for each distinct entry name.
package deltasource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/vaultarc/vaultarc/internal/archive"
	"github.com/vaultarc/vaultarc/internal/codec"
	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/storage"
)

// SourceHandle is a seekable local copy of one delta-source candidate,
// positioned for internal/codec's SourceGetBlock callback.
type SourceHandle struct {
	file *os.File
}

// GetBlock implements codec.SourceGetBlock against the local copy.
func (h *SourceHandle) GetBlock(offset uint64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := h.file.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// FullBytes reads the entire local copy, for Create's encode-side
// xdelta stage (internal/codec.NewXDeltaEncoder needs the whole source
// up front to build its match index, unlike the decode side's
// block-at-a-time GetBlock).
func (h *SourceHandle) FullBytes() ([]byte, error) {
	if _, err := h.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(h.file)
}

func (h *SourceHandle) Close() error { return h.file.Close() }

// Candidate names one delta-source storage specifier to try, in order.
type Candidate struct {
	StorageName string
}

// Resolver lazily materializes delta-source entries under scratchDir,
// one scratch file per distinct (candidate storage, entry name) pair,
// holding only that entry's content. The scratch copy always holds plaintext: a candidate
// entry is decoded through the same read-side codec stack (internal/
// codec.Stack, §4.4/§4.6) the rest of the driver uses, not copied
// straight off the wire, since a source archive built with compression
// or encryption enabled would otherwise poison the xdelta match index
// with the still-encoded bytes.
type Resolver struct {
	scratchDir string
	storage    storage.Storage

	compressAlgorithm string
	compressLevel     int
	password          storage.PasswordFunc

	mu    sync.Mutex
	ready map[string]string // cache key -> local scratch path
	locks map[string]*sync.Mutex

	pwOnce  sync.Once
	pwBytes []byte
	pwErr   error
}

// NewResolver builds a resolver that decodes candidate entries using
// compressAlgorithm/compressLevel and, if a candidate entry turns out
// to be encrypted, pw -- the same codec configuration the current job
// uses for its own entries, since the wire format carries no per-archive
// algorithm tag of its own (only a per-entry CryptHeader).
func NewResolver(scratchDir string, st storage.Storage, compressAlgorithm string, compressLevel int, pw storage.PasswordFunc) *Resolver {
	return &Resolver{
		scratchDir:        scratchDir,
		storage:           st,
		compressAlgorithm: compressAlgorithm,
		compressLevel:     compressLevel,
		password:          pw,
		ready:             make(map[string]string),
		locks:             make(map[string]*sync.Mutex),
	}
}

func (r *Resolver) resolvePassword() ([]byte, error) {
	r.pwOnce.Do(func() {
		if r.password == nil {
			r.pwErr = fmt.Errorf("deltasource: archive requires a password but none was configured")
			return
		}
		r.pwBytes, r.pwErr = r.password("password: ", storage.PasswordModeDecrypt)
	})
	return r.pwBytes, r.pwErr
}

func cacheKey(storageName string) string {
	h := xxhash.Sum64String(storageName)
	return fmt.Sprintf("%016x", h)
}

func (r *Resolver) creationLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.locks[key] = l
	return l
}

// Open resolves entryName against each candidate in order, returning
// the first that yields a usable local copy. It returns
// core.ErrDeltaSourceNotFound if every candidate fails.
func (r *Resolver) Open(ctx context.Context, entryName string, candidates []Candidate) (*SourceHandle, error) {
	for _, cand := range candidates {
		path, err := r.localCopyPath(ctx, cand.StorageName, entryName)
		if err != nil {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		return &SourceHandle{file: f}, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrDeltaSourceNotFound, entryName)
}

func (r *Resolver) localCopyPath(ctx context.Context, storageName, entryName string) (string, error) {
	key := cacheKey(storageName + "|" + entryName)

	r.mu.Lock()
	if path, ok := r.ready[key]; ok {
		r.mu.Unlock()
		return path, nil
	}
	r.mu.Unlock()

	lock := r.creationLock(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if path, ok := r.ready[key]; ok {
		r.mu.Unlock()
		return path, nil
	}
	r.mu.Unlock()

	scratchPath := filepath.Join(r.scratchDir, key+".src")
	if err := r.restoreEntry(ctx, storageName, entryName, scratchPath); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.ready[key] = scratchPath
	r.mu.Unlock()
	return scratchPath, nil
}

// restoreEntry opens storageName as an archive and restores the single
// entry named entryName into destPath, via internal/archive's read
// path with a one-element include list.
func (r *Resolver) restoreEntry(ctx context.Context, storageName, entryName, destPath string) error {
	src, err := r.storage.OpenRead(storageName)
	if err != nil {
		return err
	}
	defer src.Close()

	h := archive.NewReadHandle(src)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, cursor, err := h.ReadEntry(nil)
		if err != nil {
			return fmt.Errorf("%w: %s", core.ErrDeltaSourceNotFound, entryName)
		}
		if entry.Name() != entryName {
			drainEntry(cursor)
			continue
		}
		if entry.Kind != core.KindFile {
			return fmt.Errorf("deltasource: %q is not a file entry", entryName)
		}
		return r.decodeEntryBody(entry.File.Crypt, cursor, destPath)
	}
}

func drainEntry(c *archive.Cursor) {
	for !c.EOFData() {
		if _, _, err := c.ReadData(); err != nil {
			return
		}
	}
}

// decodeEntryBody streams cursor's body through the read-side codec
// stack one wire chunk at a time, writing each window's decoded
// plaintext at its declared logical offset -- the same per-window
// shape internal/driver's readEntryBody uses, so the scratch copy
// holds exactly what the candidate entry's own restore would produce.
func (r *Resolver) decodeEntryBody(crypt core.CryptHeader, c *archive.Cursor, destPath string) error {
	opts := codec.Options{
		CompressAlgorithm: r.compressAlgorithm,
		CompressLevel:     r.compressLevel,
	}
	if crypt.Mode != core.CryptModeNone {
		pw, err := r.resolvePassword()
		if err != nil {
			return err
		}
		opts.CryptEnabled = true
		opts.CryptPassword = pw
		opts.CryptSalt = crypt.Salt
	}
	stack, err := codec.NewDecodeStack(opts)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	for !c.EOFData() {
		frag, data, err := c.ReadData()
		if err != nil {
			return err
		}
		if frag.Size == 0 {
			continue
		}
		if err := stack.Feed(data); err != nil {
			return err
		}
		if _, err := out.WriteAt(stack.Result(), int64(frag.Offset)); err != nil {
			return err
		}
	}
	return nil
}
