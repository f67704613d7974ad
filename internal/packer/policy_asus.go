package packer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"example.com/logopack/internal/imgsniff"
)

const (
	asusSignatureSize = 32
	asusRecordSize    = 32
	asusExtraSize     = 24
	asusRelOffset     = 0x20
	asusStride        = 4
)

var (
	asusSignature = [asusSignatureSize]byte{
		0x00, 0x00, 0x00, 0x00, 0x20, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00,
	}
	// asusSentinel sits in the 16 bytes ahead of every payload.
	asusSentinel = [16]byte{
		0x00, 0x00, 0x00, 0x00, 0x30, 0x00, 0x09, 0x04,
	}
	// Extra patterns observed in sampled dumps. Only used when the decoded
	// pattern is unavailable.
	asusFirstExtra = [asusExtraSize]byte{
		0xFF, 0xFF, 0x0A, 0x00, 0xFF, 0xFF, 0x00, 0x40,
		0x00, 0x00, 0x00, 0x00, 0x30, 0x00, 0x09, 0x04,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	asusLaterExtra = [asusExtraSize]byte{
		0x00, 0xFF, 0xFF, 0x0A, 0x00, 0xFF, 0xFF, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x30, 0x00, 0x09, 0x04,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// asusPolicy decodes the 32-byte signature format. Each entry record is
// size(4) rel(4) extra(24) and the payload is aligned to 4 bytes.
type asusPolicy struct{}

func (asusPolicy) Variant() Variant { return VariantASUS }

func (asusPolicy) Stride() int { return asusStride }

func (asusPolicy) PackDir(n int) string { return fmt.Sprintf("asus_pack_%d", n) }

func (asusPolicy) Header() []byte { return bytes.Clone(asusSignature[:]) }

// Trailer is a record with zero size and rel.
func (asusPolicy) Trailer() []byte { return make([]byte, 8) }

func (asusPolicy) Find(buf []byte, from int) int {
	if from < 0 || from >= len(buf) {
		return -1
	}
	idx := bytes.Index(buf[from:], asusSignature[:])
	if idx < 0 {
		return -1
	}
	return from + idx
}

func (asusPolicy) Decode(buf []byte, start int) (Container, int, error) {
	c := Container{Variant: VariantASUS, Start: start}
	if start < 0 || start+asusSignatureSize > len(buf) {
		return c, start + 1, fmt.Errorf("%w: signature at 0x%08X truncated", ErrBoundsExceeded, start)
	}
	c.Header = buf[start : start+asusSignatureSize]
	head := start + asusSignatureSize
	var stop error
	for {
		if head+8 > len(buf) {
			stop = fmt.Errorf("%w: record at 0x%08X truncated", ErrBoundsExceeded, head)
			break
		}
		size := int(binary.LittleEndian.Uint32(buf[head : head+4]))
		rel := int(binary.LittleEndian.Uint32(buf[head+4 : head+8]))
		if size == 0 || rel == 0 {
			stop = fmt.Errorf("%w: size %d rel %d at 0x%08X", ErrScanTerminated, size, rel, head)
			break
		}
		if head+asusRecordSize > len(buf) {
			stop = fmt.Errorf("%w: record at 0x%08X truncated", ErrBoundsExceeded, head)
			break
		}
		// A sentinel window outside the dump cannot match.
		check := head + rel - len(asusSentinel)
		if check < 0 || check+len(asusSentinel) > len(buf) {
			stop = fmt.Errorf("%w: sentinel window of record at 0x%08X rel 0x%X out of range", ErrScanTerminated, head, rel)
			break
		}
		if !bytes.Equal(buf[check:check+len(asusSentinel)], asusSentinel[:]) {
			stop = fmt.Errorf("%w: no sentinel ahead of 0x%08X", ErrScanTerminated, head+rel)
			break
		}
		off := head + rel
		if off+size > len(buf) {
			stop = fmt.Errorf("%w: payload 0x%08X+%d past %d", ErrBoundsExceeded, off, size, len(buf))
			break
		}
		payload := buf[off : off+size]
		c.Entries = append(c.Entries, Entry{
			Index:        len(c.Entries),
			MetaOffset:   head,
			Offset:       off,
			DeclaredSize: size,
			Metadata:     buf[head : head+asusRecordSize],
			Extra:        buf[head+8 : head+asusRecordSize],
			Payload:      payload,
			Type:         imgsniff.Sniff(payload),
		})
		head += asusRecordSize + size + padding(size, asusStride)
	}
	// Padding of the last payload may be cut off by the end of the dump.
	if head > len(buf) {
		head = len(buf)
	}
	c.Length = head - start
	c.Stop = stop
	return c, head, stop
}

// EncodeMetadata keeps the stored extra pattern. It falls back to the bytes
// at the recorded metadata offset and then to the observed constants.
func (asusPolicy) EncodeMetadata(host []byte, e Entry, size int) []byte {
	rec := make([]byte, asusRecordSize)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(size))
	binary.LittleEndian.PutUint32(rec[4:8], asusRelOffset)
	switch {
	case len(e.Extra) == asusExtraSize:
		copy(rec[8:], e.Extra)
	case e.MetaOffset > 0 && e.MetaOffset+asusRecordSize <= len(host):
		copy(rec[8:], host[e.MetaOffset+8:e.MetaOffset+asusRecordSize])
	case e.Index == 0:
		copy(rec[8:], asusFirstExtra[:])
	default:
		copy(rec[8:], asusLaterExtra[:])
	}
	return rec
}
