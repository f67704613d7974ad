package imgsniff

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/image/bmp"
)

var bmpMagic = [2]byte{'B', 'M'}

// BMPInfo carries the file size field and the DIB dimensions.
type BMPInfo struct {
	Size   uint32
	Width  int
	Height int
}

// scanBMP trusts the file header size field only within sane limits, since
// "BM" turns up inside arbitrary data.
func scanBMP(buf []byte, off int) (int, bool) {
	size, ok := bmpFileSize(buf, off)
	if !ok {
		return 0, false
	}
	return off + int(size), true
}

func bmpFileSize(buf []byte, off int) (uint32, bool) {
	if off+6 > len(buf) {
		return 0, false
	}
	size := binary.LittleEndian.Uint32(buf[off+2 : off+6])
	if size < MinBMPSize || size > MaxBMPSize {
		return 0, false
	}
	if uint64(off)+uint64(size) > uint64(len(buf)) {
		return 0, false
	}
	return size, true
}

// BMPHeader validates the size field and decodes the DIB header. Width and
// height stay zero for DIB variants the decoder does not support.
func BMPHeader(payload []byte) (BMPInfo, bool) {
	if !hasPrefixAt(payload, 0, bmpMagic[:]) {
		return BMPInfo{}, false
	}
	size, ok := bmpFileSize(payload, 0)
	if !ok {
		return BMPInfo{}, false
	}
	info := BMPInfo{Size: size}
	if cfg, err := bmp.DecodeConfig(bytes.NewReader(payload[:size])); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	return info, true
}
