package packer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"example.com/logopack/internal/imgsniff"
)

const msiHeaderSize = 12

var msiSignature = [4]byte{'$', 'M', 's', 'I'}

// msiPolicy decodes runs of 12-byte headers:
// signature(4) sector(1) layer(1) number(1) reserved(1) size(4).
// Payloads follow their header without alignment.
type msiPolicy struct{}

func (msiPolicy) Variant() Variant { return VariantMSI }

func (msiPolicy) Stride() int { return 1 }

func (msiPolicy) PackDir(n int) string { return fmt.Sprintf("msi_pack_%d", n) }

func (msiPolicy) Header() []byte { return nil }

func (msiPolicy) Trailer() []byte { return nil }

func (msiPolicy) Find(buf []byte, from int) int {
	if from < 0 || from >= len(buf) {
		return -1
	}
	idx := bytes.Index(buf[from:], msiSignature[:])
	if idx < 0 {
		return -1
	}
	return from + idx
}

func (msiPolicy) Decode(buf []byte, start int) (Container, int, error) {
	c := Container{Variant: VariantMSI, Start: start}
	if start < 0 || start >= len(buf) {
		return c, start + 1, fmt.Errorf("%w: start 0x%08X", ErrBoundsExceeded, start)
	}
	head := start
	var stop error
	for {
		if head+len(msiSignature) > len(buf) || !bytes.Equal(buf[head:head+len(msiSignature)], msiSignature[:]) {
			stop = fmt.Errorf("%w: no header at 0x%08X", ErrScanTerminated, head)
			break
		}
		if head+msiHeaderSize > len(buf) {
			stop = fmt.Errorf("%w: header at 0x%08X truncated", ErrBoundsExceeded, head)
			break
		}
		size := int(binary.LittleEndian.Uint32(buf[head+8 : head+12]))
		off := head + msiHeaderSize
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
			Metadata:     buf[head:off],
			Payload:      payload,
			Type:         imgsniff.Sniff(payload),
		})
		head = off + size
	}
	c.Length = head - start
	c.Stop = stop
	if len(c.Entries) == 0 {
		return c, start + 1, stop
	}
	return c, head, stop
}

// EncodeMetadata copies signature, sector, layer, number and reserved bytes
// from the stored header and writes the new size.
func (msiPolicy) EncodeMetadata(host []byte, e Entry, size int) []byte {
	hdr := make([]byte, msiHeaderSize)
	switch {
	case len(e.Metadata) >= 8:
		copy(hdr[0:8], e.Metadata[0:8])
	case e.MetaOffset >= 0 && e.MetaOffset+8 <= len(host):
		copy(hdr[0:8], host[e.MetaOffset:e.MetaOffset+8])
	default:
		copy(hdr[0:4], msiSignature[:])
		hdr[6] = byte(e.Index)
	}
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(size))
	return hdr
}
