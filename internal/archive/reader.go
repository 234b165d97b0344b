package archive

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vaultarc/vaultarc/internal/core"
	"github.com/vaultarc/vaultarc/internal/fragment"
)

// reader buffers the underlying stream and exposes one-chunk-at-a-time
// reads, since chunk boundaries (not byte counts) are the unit the rest
// of the package reasons about.
type reader struct {
	br          *bufio.Reader
	pendingKind core.EntryKind
	havePending bool
}

func newReader(r io.Reader) *reader { return &reader{br: bufio.NewReaderSize(r, 64*1024)} }

func (rd *reader) readChunk() (ChunkKind, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(rd.br, header); err != nil {
		return 0, nil, err
	}
	d := NewDecoder(header)
	kind, _ := d.ReadU8()
	n, _ := d.ReadU32()
	payload := make([]byte, n)
	if _, err := io.ReadFull(rd.br, payload); err != nil {
		return 0, nil, err
	}
	return ChunkKind(kind), payload, nil
}

// PeekNextKind reports the EntryKind of the next entry in the stream
// without consuming it past the type-tag chunk, or io.EOF if the
// archive is exhausted.
func (h *Handle) PeekNextKind() (core.EntryKind, error) {
	if h.reader == nil {
		return 0, fmt.Errorf("archive: handle is not open for reading")
	}
	kind, payload, err := h.reader.readChunk()
	if err != nil {
		return 0, err
	}
	if kind != ChunkEntryKind || len(payload) != 1 {
		return 0, fmt.Errorf("archive: expected entry-kind chunk")
	}
	h.reader.pendingKind = core.EntryKind(payload[0])
	h.reader.havePending = true
	return h.reader.pendingKind, nil
}

// ReadEntry reads the header chunk following a PeekNextKind call (or,
// if PeekNextKind was not called, reads the type-tag chunk itself
// first) and returns the decoded Entry plus a Cursor for its body.
func (h *Handle) ReadEntry(ledger *fragment.Ledger) (*core.Entry, *Cursor, error) {
	if h.reader == nil {
		return nil, nil, fmt.Errorf("archive: handle is not open for reading")
	}

	var kind core.EntryKind
	if h.reader.havePending {
		kind = h.reader.pendingKind
		h.reader.havePending = false
	} else {
		k, err := h.PeekNextKind()
		if err != nil {
			return nil, nil, err
		}
		kind = k
	}

	hkind, payload, err := h.reader.readChunk()
	if err != nil {
		return nil, nil, err
	}
	if hkind != ChunkHeader {
		return nil, nil, fmt.Errorf("archive: expected header chunk")
	}

	e, err := decodeEntryHeader(kind, payload)
	if err != nil {
		return nil, nil, err
	}

	c := &Cursor{h: h, kind: kind, name: e.Name(), ledger: ledger, state: StateHeader}
	switch kind {
	case core.KindFile:
		c.total = e.File.Info.Size
		c.state = StateBody
	case core.KindHardLink:
		c.total = e.HardLink.Info.Size
		c.state = StateBody
	case core.KindImage:
		c.total = e.Image.ByteFragment().Size
		c.state = StateBody
	default:
		c.state = StateDrained
	}
	return e, c, nil
}

// ReadData reads the next body chunk. EOFData reports whether this
// call's chunk was the eof_data marker (zero-size fragment); the
// Cursor transitions to Drained when it is.
func (c *Cursor) ReadData() (core.Fragment, []byte, error) {
	if c.state != StateBody {
		return core.Fragment{}, nil, fmt.Errorf("archive: ReadData called outside body state for %q", c.name)
	}

	kind, payload, err := c.h.reader.readChunk()
	if err != nil {
		return core.Fragment{}, nil, err
	}
	if kind != ChunkData {
		return core.Fragment{}, nil, fmt.Errorf("archive: expected data chunk")
	}

	d := NewDecoder(payload)
	offset, err := d.ReadU64()
	if err != nil {
		return core.Fragment{}, nil, err
	}
	size, err := d.ReadU64()
	if err != nil {
		return core.Fragment{}, nil, err
	}
	data, err := d.ReadBytes(int(size))
	if err != nil {
		return core.Fragment{}, nil, err
	}

	frag := core.Fragment{Offset: offset, Size: size}
	if size == 0 {
		c.state = StateDrained
		return frag, nil, nil
	}
	if c.ledger != nil {
		c.ledger.Add(c.name, c.total, offset, frag.End())
	}
	c.lastHi = frag.End()
	return frag, data, nil
}

// EOFData reports whether the entry's body has been fully drained.
func (c *Cursor) EOFData() bool { return c.state == StateDrained }

func decodeEntryHeader(kind core.EntryKind, payload []byte) (*core.Entry, error) {
	d := NewDecoder(payload)
	e := &core.Entry{Kind: kind}

	switch kind {
	case core.KindFile:
		path, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		deltaSrc, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		info, err := readFileInfo(d)
		if err != nil {
			return nil, err
		}
		fragOff, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		fragSize, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		crypt, err := readCryptHeader(d)
		if err != nil {
			return nil, err
		}
		e.File = &core.FileEntry{
			Path: path, DeltaSourceName: deltaSrc, Info: info,
			Fragment: core.Fragment{Offset: fragOff, Size: fragSize},
			Crypt:    crypt,
		}
	case core.KindImage:
		devPath, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		fsKind, err := d.ReadString(1 << 10)
		if err != nil {
			return nil, err
		}
		totalSize, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		blockSize, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		fragOff, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		fragSize, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		crypt, err := readCryptHeader(d)
		if err != nil {
			return nil, err
		}
		e.Image = &core.ImageEntry{
			DevicePath:     devPath,
			FileSystemKind: fsKind,
			Device:         core.DeviceInfo{TotalSize: totalSize, BlockSize: blockSize},
			FragmentBlocks: core.Fragment{Offset: fragOff, Size: fragSize},
			Crypt:          crypt,
		}
	case core.KindDirectory:
		path, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		info, err := readFileInfo(d)
		if err != nil {
			return nil, err
		}
		e.Directory = &core.DirectoryEntry{Path: path, Info: info}
	case core.KindLink:
		linkPath, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		targetPath, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		info, err := readFileInfo(d)
		if err != nil {
			return nil, err
		}
		e.Link = &core.LinkEntry{LinkPath: linkPath, TargetPath: targetPath, Info: info}
	case core.KindHardLink:
		count, err := d.ReadU32()
		if err != nil {
			return nil, err
		}
		paths := make([]string, count)
		for i := range paths {
			p, err := d.ReadString(1 << 20)
			if err != nil {
				return nil, err
			}
			paths[i] = p
		}
		info, err := readFileInfo(d)
		if err != nil {
			return nil, err
		}
		fragOff, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		fragSize, err := d.ReadU64()
		if err != nil {
			return nil, err
		}
		crypt, err := readCryptHeader(d)
		if err != nil {
			return nil, err
		}
		e.HardLink = &core.HardLinkEntry{
			Paths: paths, Info: info,
			Fragment: core.Fragment{Offset: fragOff, Size: fragSize},
			Crypt:    crypt,
		}
	case core.KindSpecial:
		path, err := d.ReadString(1 << 20)
		if err != nil {
			return nil, err
		}
		info, err := readFileInfo(d)
		if err != nil {
			return nil, err
		}
		e.Special = &core.SpecialEntry{Path: path, Info: info}
	case core.KindMeta, core.KindSignature:
		// No payload to decode: the type tag alone is the
		// marker.
	default:
		return nil, fmt.Errorf("archive: unsupported entry kind %v", kind)
	}
	return e, nil
}
