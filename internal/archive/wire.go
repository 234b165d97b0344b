// Package archive implements the archive entry pipeline: reading and
// writing the chunk-framed wire format that carries entry headers and
// file/image body data.
package archive

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads little-endian primitives from a byte slice. Grounded
// on the storage-server corpus's wire codec idiom (little-endian,
// length-prefixed strings, explicit remaining-byte checks) rather than
// encoding/gob or JSON, since the archive format must stay a stable
// byte-for-byte wire layout across versions.
type Decoder struct {
	b []byte
	o int
}

func NewDecoder(b []byte) *Decoder { return &Decoder{b: b} }

func (d *Decoder) Remaining() int { return len(d.b) - d.o }

func (d *Decoder) ReadU8() (byte, error) {
	if d.Remaining() < 1 {
		return 0, fmt.Errorf("archive: need 1 byte")
	}
	v := d.b[d.o]
	d.o++
	return v, nil
}

func (d *Decoder) ReadU32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, fmt.Errorf("archive: need 4 bytes")
	}
	v := binary.LittleEndian.Uint32(d.b[d.o : d.o+4])
	d.o += 4
	return v, nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	if d.Remaining() < 8 {
		return 0, fmt.Errorf("archive: need 8 bytes")
	}
	v := binary.LittleEndian.Uint64(d.b[d.o : d.o+8])
	d.o += 8
	return v, nil
}

func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("archive: need %d bytes", n)
	}
	v := d.b[d.o : d.o+n]
	d.o += n
	return v, nil
}

// ReadString reads a u32 length-prefixed string, bounded by maxLen.
func (d *Decoder) ReadString(maxLen uint32) (string, error) {
	n, err := d.ReadU32()
	if err != nil {
		return "", err
	}
	if n > maxLen {
		return "", fmt.Errorf("archive: string length %d exceeds limit %d", n, maxLen)
	}
	b, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encoder builds little-endian wire records.
type Encoder struct {
	b []byte
}

func NewEncoder(capacity int) *Encoder {
	if capacity < 0 {
		capacity = 0
	}
	return &Encoder{b: make([]byte, 0, capacity)}
}

func (e *Encoder) Bytes() []byte { return e.b }

func (e *Encoder) WriteU8(v byte) { e.b = append(e.b, v) }

func (e *Encoder) WriteU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.b = append(e.b, tmp[:]...)
}

func (e *Encoder) WriteU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.b = append(e.b, tmp[:]...)
}

func (e *Encoder) WriteBytes(b []byte) { e.b = append(e.b, b...) }

func (e *Encoder) WriteString(s string) error {
	b := []byte(s)
	if uint64(len(b)) > 1<<32-1 {
		return fmt.Errorf("archive: string too long: %d", len(b))
	}
	e.WriteU32(uint32(len(b)))
	e.WriteBytes(b)
	return nil
}

// ChunkKind tags the type of chunk that follows in the wire stream:
// one chunk carries the entry's type tag, one carries its header
// fields, and zero or more carry body data.
type ChunkKind uint8

const (
	ChunkEntryKind ChunkKind = iota
	ChunkHeader
	ChunkData
)

// WriteChunk frames payload with a 1-byte kind tag and a u32 length
// prefix, so a reader can always skip an unrecognized or malformed
// chunk without losing stream alignment.
func WriteChunk(kind ChunkKind, payload []byte) []byte {
	e := NewEncoder(len(payload) + 5)
	e.WriteU8(byte(kind))
	e.WriteU32(uint32(len(payload)))
	e.WriteBytes(payload)
	return e.Bytes()
}

// ReadChunk reads one kind+length-prefixed chunk from d.
func ReadChunk(d *Decoder) (ChunkKind, []byte, error) {
	k, err := d.ReadU8()
	if err != nil {
		return 0, nil, err
	}
	n, err := d.ReadU32()
	if err != nil {
		return 0, nil, err
	}
	payload, err := d.ReadBytes(int(n))
	if err != nil {
		return 0, nil, err
	}
	return ChunkKind(k), payload, nil
}
