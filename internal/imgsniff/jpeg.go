package imgsniff

import (
	"bytes"
	"image/jpeg"
)

var (
	jpegSOI = [3]byte{0xFF, 0xD8, 0xFF}
	jpegEOI = [2]byte{0xFF, 0xD9}
)

// scanJPEG looks for the first FF D9 after the SOI marker. The walk ignores
// segment structure, so an EOI-like pair inside entropy-coded data ends the
// image early. Container entries carry a declared size that callers should
// prefer over this end offset.
func scanJPEG(buf []byte, off int) (int, bool) {
	from := off + 2
	idx := bytes.Index(buf[from:], jpegEOI[:])
	if idx < 0 {
		return 0, false
	}
	return from + idx + len(jpegEOI), true
}

// JPEGHeader returns the frame dimensions of a JPEG payload.
func JPEGHeader(payload []byte) (int, int, bool) {
	if !hasPrefixAt(payload, 0, jpegSOI[:]) {
		return 0, 0, false
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
