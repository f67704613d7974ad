package imgsniff

import (
	"bytes"
	"encoding/binary"
)

var (
	pngSignature = [8]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	// IEND has no data, so its CRC is always AE 42 60 82.
	pngTrailer = [8]byte{'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82}
)

const ihdrLength = 13

// PNGInfo carries the IHDR fields.
type PNGInfo struct {
	Width     uint32
	Height    uint32
	BitDepth  uint8
	ColorType uint8
}

func scanPNG(buf []byte, off int) (int, bool) {
	from := off + len(pngSignature)
	idx := bytes.Index(buf[from:], pngTrailer[:])
	if idx < 0 {
		return 0, false
	}
	return from + idx + len(pngTrailer), true
}

// PNGHeader reads the IHDR chunk of the PNG at start. It reports false when
// the signature is absent or the first chunk is not a complete IHDR.
func PNGHeader(buf []byte, start int) (PNGInfo, bool) {
	if start < 0 || !hasPrefixAt(buf, start, pngSignature[:]) {
		return PNGInfo{}, false
	}
	chunk := start + len(pngSignature)
	if chunk+8+ihdrLength > len(buf) {
		return PNGInfo{}, false
	}
	if binary.BigEndian.Uint32(buf[chunk:chunk+4]) != ihdrLength || string(buf[chunk+4:chunk+8]) != "IHDR" {
		return PNGInfo{}, false
	}
	data := buf[chunk+8 : chunk+8+ihdrLength]
	return PNGInfo{
		Width:     binary.BigEndian.Uint32(data[0:4]),
		Height:    binary.BigEndian.Uint32(data[4:8]),
		BitDepth:  data[8],
		ColorType: data[9],
	}, true
}
