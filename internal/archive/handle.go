package archive

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/fragment"
)

// State is the per-entry state machine: an entry moves Initial ->
// Header -> Body (zero or more data chunks) -> Drained (all body data
// has been read/written) -> Closed. Directory/Link/Special entries
// have no body and go straight Header -> Drained.
type State int

const (
	StateInitial State = iota
	StateHeader
	StateBody
	StateDrained
	StateClosed
)

// Handle is an open archive, bound to one underlying stream (read or
// write).
type Handle struct {
	w      io.Writer
	r      io.Reader
	reader *reader
}

func NewWriteHandle(w io.Writer) *Handle { return &Handle{w: w} }
func NewReadHandle(r io.Reader) *Handle  { return &Handle{r: r, reader: newReader(r)} }

// Cursor tracks the state machine for one in-flight entry.
type Cursor struct {
	h        *Handle
	kind     core.EntryKind
	state    State
	name     string
	total    uint64
	lastHi   uint64
	ledger   *fragment.Ledger
}

// NewEntry begins writing a new entry: the type-tag and header chunks
// are emitted immediately (directories, links and specials carry no
// body and are immediately Drained).
func (h *Handle) NewEntry(e *core.Entry, ledger *fragment.Ledger) (*Cursor, error) {
	if h.w == nil {
		return nil, fmt.Errorf("archive: handle is not open for writing")
	}

	payload, err := encodeEntryHeader(e)
	if err != nil {
		return nil, err
	}
	if _, err := h.w.Write(WriteChunk(ChunkEntryKind, []byte{byte(e.Kind)})); err != nil {
		return nil, err
	}
	if _, err := h.w.Write(WriteChunk(ChunkHeader, payload)); err != nil {
		return nil, err
	}

	c := &Cursor{h: h, kind: e.Kind, name: e.Name(), ledger: ledger, state: StateHeader}
	switch e.Kind {
	case core.KindFile:
		c.total = e.File.Info.Size
	case core.KindHardLink:
		c.total = e.HardLink.Info.Size
	case core.KindImage:
		c.total = e.Image.ByteFragment().Size
	default:
		c.state = StateDrained
		return c, nil
	}
	c.state = StateBody
	return c, nil
}

// WriteData writes one body chunk at the given fragment offset. A
// zero-size fragment is the eof_data marker: it carries no bytes but
// tells the reader no more data chunks follow for this entry.
func (c *Cursor) WriteData(frag core.Fragment, data []byte) error {
	if c.state != StateBody {
		return fmt.Errorf("archive: WriteData called outside body state for %q", c.name)
	}

	e := NewEncoder(16 + len(data))
	e.WriteU64(frag.Offset)
	e.WriteU64(frag.Size)
	e.WriteBytes(data)
	if _, err := c.h.w.Write(WriteChunk(ChunkData, e.Bytes())); err != nil {
		return err
	}

	if frag.Size == 0 {
		c.state = StateDrained
		return nil
	}
	if c.ledger != nil {
		c.ledger.Add(c.name, c.total, frag.Offset, frag.End())
	}
	c.lastHi = frag.End()
	return nil
}

// CloseEntry finalizes the entry. Closing a Body-state entry without
// ever reaching Drained is not a hard error here -- the caller
// (internal/driver) decides whether to surface it as Result.Incomplete
// rather than failing the whole operation, consistent with
// core.ErrEntryIncomplete being a soft/reported condition, not fatal.
func (c *Cursor) CloseEntry() error {
	if c.state == StateClosed {
		return fmt.Errorf("archive: entry %q already closed", c.name)
	}
	c.state = StateClosed
	return nil
}

// TotalSize returns the entry's declared body size in bytes (a File or
// HardLink's FileInfo.Size, or an Image's byte-converted fragment
// size).
func (c *Cursor) TotalSize() uint64 { return c.total }

// Name returns the logical name this cursor's entry was opened with.
func (c *Cursor) Name() string { return c.name }

// Kind returns the EntryKind this cursor was opened for.
func (c *Cursor) Kind() core.EntryKind { return c.kind }

// IsComplete reports whether the body data written/read so far
// reconciles with the entry's declared total size, via the fragment
// ledger.
func (c *Cursor) IsComplete() bool {
	if c.ledger == nil {
		return c.state == StateDrained || c.state == StateClosed
	}
	return c.ledger.IsComplete(c.name)
}

func encodeEntryHeader(e *core.Entry) ([]byte, error) {
	enc := NewEncoder(64)
	switch e.Kind {
	case core.KindFile:
		f := e.File
		if err := enc.WriteString(f.Path); err != nil {
			return nil, err
		}
		if err := enc.WriteString(f.DeltaSourceName); err != nil {
			return nil, err
		}
		writeFileInfo(enc, f.Info)
		enc.WriteU64(f.Fragment.Offset)
		enc.WriteU64(f.Fragment.Size)
		writeCryptHeader(enc, f.Crypt)
	case core.KindImage:
		img := e.Image
		if err := enc.WriteString(img.DevicePath); err != nil {
			return nil, err
		}
		if err := enc.WriteString(img.FileSystemKind); err != nil {
			return nil, err
		}
		enc.WriteU64(img.Device.TotalSize)
		enc.WriteU64(img.Device.BlockSize)
		enc.WriteU64(img.FragmentBlocks.Offset)
		enc.WriteU64(img.FragmentBlocks.Size)
		writeCryptHeader(enc, img.Crypt)
	case core.KindDirectory:
		if err := enc.WriteString(e.Directory.Path); err != nil {
			return nil, err
		}
		writeFileInfo(enc, e.Directory.Info)
	case core.KindLink:
		if err := enc.WriteString(e.Link.LinkPath); err != nil {
			return nil, err
		}
		if err := enc.WriteString(e.Link.TargetPath); err != nil {
			return nil, err
		}
		writeFileInfo(enc, e.Link.Info)
	case core.KindHardLink:
		enc.WriteU32(uint32(len(e.HardLink.Paths)))
		for _, p := range e.HardLink.Paths {
			if err := enc.WriteString(p); err != nil {
				return nil, err
			}
		}
		writeFileInfo(enc, e.HardLink.Info)
		enc.WriteU64(e.HardLink.Fragment.Offset)
		enc.WriteU64(e.HardLink.Fragment.Size)
		writeCryptHeader(enc, e.HardLink.Crypt)
	case core.KindSpecial:
		if err := enc.WriteString(e.Special.Path); err != nil {
			return nil, err
		}
		writeFileInfo(enc, e.Special.Info)
	case core.KindMeta, core.KindSignature:
		// Opaque boundary markers: no payload beyond the
		// type-tag chunk itself.
	default:
		return nil, fmt.Errorf("archive: unsupported entry kind %v", e.Kind)
	}
	return enc.Bytes(), nil
}

func writeFileInfo(enc *Encoder, info core.FileInfo) {
	enc.WriteU64(info.Size)
	enc.WriteU64(uint64(info.ModTime.Unix()))
	enc.WriteU64(uint64(info.AccessTime.Unix()))
	enc.WriteU64(uint64(info.ChangeTime.Unix()))
	enc.WriteU32(info.UID)
	enc.WriteU32(info.GID)
	enc.WriteU32(uint32(info.Mode))
	enc.WriteU32(info.Major)
	enc.WriteU32(info.Minor)
	enc.WriteU8(byte(info.SpecialKind))
}

// writeCryptHeader/readCryptHeader carry the per-entry crypt
// salt and mode tag in the header so an independent reader can
// reconstruct the key schedule from the user's password alone, even
// when this entry itself is unencrypted (Mode == core.CryptModeNone).
func writeCryptHeader(enc *Encoder, c core.CryptHeader) {
	enc.WriteBytes(c.Salt[:])
	enc.WriteU8(byte(c.Mode))
}

func readCryptHeader(d *Decoder) (core.CryptHeader, error) {
	var c core.CryptHeader
	salt, err := d.ReadBytes(16)
	if err != nil {
		return c, err
	}
	copy(c.Salt[:], salt)
	mode, err := d.ReadU8()
	if err != nil {
		return c, err
	}
	c.Mode = core.CryptMode(mode)
	return c, nil
}

func readFileInfo(d *Decoder) (core.FileInfo, error) {
	var info core.FileInfo
	size, err := d.ReadU64()
	if err != nil {
		return info, err
	}
	modT, err := d.ReadU64()
	if err != nil {
		return info, err
	}
	accT, err := d.ReadU64()
	if err != nil {
		return info, err
	}
	chgT, err := d.ReadU64()
	if err != nil {
		return info, err
	}
	uid, err := d.ReadU32()
	if err != nil {
		return info, err
	}
	gid, err := d.ReadU32()
	if err != nil {
		return info, err
	}
	mode, err := d.ReadU32()
	if err != nil {
		return info, err
	}
	major, err := d.ReadU32()
	if err != nil {
		return info, err
	}
	minor, err := d.ReadU32()
	if err != nil {
		return info, err
	}
	sk, err := d.ReadU8()
	if err != nil {
		return info, err
	}

	info.Size = size
	info.ModTime = time.Unix(int64(modT), 0)
	info.AccessTime = time.Unix(int64(accT), 0)
	info.ChangeTime = time.Unix(int64(chgT), 0)
	info.UID = uid
	info.GID = gid
	info.Mode = os.FileMode(mode)
	info.Major = major
	info.Minor = minor
	info.SpecialKind = core.SpecialKind(sk)
	return info, nil
}
