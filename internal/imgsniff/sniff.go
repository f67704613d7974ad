package imgsniff

import (
	"strings"
)

// Type identifies the image family stored in a payload.
type Type int

const (
	Unknown Type = iota
	PNG
	JPEG
	BMP
)

const (
	MinBMPSize = 100
	MaxBMPSize = 50 << 20
)

func (t Type) String() string {
	switch t {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case BMP:
		return "bmp"
	default:
		return "unknown"
	}
}

// Ext returns the file extension used when the payload is written to disk.
func (t Type) Ext() string {
	switch t {
	case PNG:
		return "png"
	case JPEG:
		return "jpg"
	case BMP:
		return "bmp"
	default:
		return "bin"
	}
}

// TypeFromExt maps a file extension, with or without the leading dot, to a Type.
func TypeFromExt(ext string) Type {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return PNG
	case "jpg", "jpeg":
		return JPEG
	case "bmp":
		return BMP
	default:
		return Unknown
	}
}

type format struct {
	typ  Type
	sig  []byte
	scan func(buf []byte, off int) (int, bool)
}

var formats = []format{
	{typ: PNG, sig: pngSignature[:], scan: scanPNG},
	{typ: JPEG, sig: jpegSOI[:], scan: scanJPEG},
	{typ: BMP, sig: bmpMagic[:], scan: scanBMP},
}

// Classify identifies the image starting at off and returns the offset just
// past its last byte. When nothing matches, it returns (Unknown, off).
func Classify(buf []byte, off int) (Type, int) {
	if off < 0 || off >= len(buf) {
		return Unknown, off
	}
	for _, f := range formats {
		if !hasPrefixAt(buf, off, f.sig) {
			continue
		}
		if end, ok := f.scan(buf, off); ok {
			return f.typ, end
		}
	}
	return Unknown, off
}

// Sniff classifies a standalone payload.
func Sniff(payload []byte) Type {
	t, _ := Classify(payload, 0)
	return t
}

// Info holds the header fields reported for a payload.
type Info struct {
	Type   Type
	Width  int
	Height int
}

// Describe classifies payload and reads its dimensions when the header allows it.
func Describe(payload []byte) Info {
	t, end := Classify(payload, 0)
	info := Info{Type: t}
	switch t {
	case PNG:
		if hdr, ok := PNGHeader(payload, 0); ok {
			info.Width, info.Height = int(hdr.Width), int(hdr.Height)
		}
	case JPEG:
		if w, h, ok := JPEGHeader(payload[:end]); ok {
			info.Width, info.Height = w, h
		}
	case BMP:
		if hdr, ok := BMPHeader(payload[:end]); ok {
			info.Width, info.Height = hdr.Width, hdr.Height
		}
	}
	return info
}

func hasPrefixAt(buf []byte, off int, sig []byte) bool {
	if off+len(sig) > len(buf) {
		return false
	}
	for i, b := range sig {
		if buf[off+i] != b {
			return false
		}
	}
	return true
}
